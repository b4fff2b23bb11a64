// Package middleware provides HTTP middleware for the kbatch API server:
// request metrics with bounded-cardinality path labels, and baseline
// security headers.
package middleware
