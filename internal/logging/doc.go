// Package logging provides structured logging utilities for kbatch-proxy.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - Credential masking for forwarded JupyterHub tokens
//   - Host/URL sanitization for security
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "job.create")
//	logger.Info("creating job",
//	    logging.Namespace("kbatch-alice"),
//	    logging.ResourceName("pi-"))
//
// # Security Considerations
//
//   - API tokens are never logged directly; use SanitizeToken
//   - API server URLs have IP addresses redacted to prevent topology leakage
package logging
