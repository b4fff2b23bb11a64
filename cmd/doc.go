// Package cmd provides the command-line interface for kbatch-proxy.
//
// This package implements a Cobra-based CLI with multiple subcommands:
//   - serve: Starts the kbatch API server (default behavior when no
//     subcommand is provided)
//   - version: Displays the application version
//
// The CLI maintains backwards compatibility by running the serve command when
// no subcommand is specified, so the container entrypoint can stay a bare
// "kbatch-proxy".
//
// Command Structure:
//
//	kbatch-proxy [flags]                 # Starts the API server (default)
//	kbatch-proxy serve [flags]           # Explicitly starts the API server
//	kbatch-proxy version                 # Shows version information
//	kbatch-proxy help [command]          # Shows help information
//
// The serve command's flags cover process-level concerns: listen addresses,
// kubeconfig selection, in-cluster authentication, API rate limiting and log
// format. The kbatch API itself is configured through KBATCH_* environment
// variables, optionally seeded from an env file named by
// KBATCH_SETTINGS_PATH, matching what the kbatch helm chart renders:
//
//	kbatch-proxy serve --in-cluster                  # Production deployment
//	kbatch-proxy serve --kubeconfig ~/.kube/config   # Local development
//	kbatch-proxy serve --debug --text-logs           # Readable local logging
package cmd
