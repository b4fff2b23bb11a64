// Package instrumentation provides OpenTelemetry instrumentation for the
// kbatch proxy.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, Kubernetes operations, and submissions
//   - Distributed tracing for the submission pipeline and Kubernetes API calls
//   - Prometheus metrics export via a /metrics endpoint
//   - OTLP export support for traces
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_log_streams: Gauge of log streams currently being relayed
//
// Kubernetes operation metrics:
//   - kubernetes_operations_total: Counter of K8s operations by operation and status
//   - kubernetes_operation_duration_seconds: Histogram of K8s operation durations
//
// Submission metrics:
//   - kbatch_submissions_total: Counter of submissions by kind and result
//   - kbatch_submission_duration_seconds: Histogram of end-to-end submission durations
//
// Authentication metrics:
//   - jupyterhub_auth_lookups_total: Counter of Hub token lookups by result
//
// # Cardinality Considerations
//
// The proxy creates one namespace per user, so namespace and resource_type
// labels on Kubernetes operation metrics are only recorded when detailed
// labels are enabled. On deployments with many users, leave detailed labels
// off and use traces for per-namespace debugging instead. Usernames are
// never used as metric labels; span attributes carry the user's domain
// unless full usernames are explicitly enabled.
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: false)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, stdout, none, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: kbatch-proxy)
//   - METRICS_DETAILED_LABELS: Include namespace/resource_type labels (default: false)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordHTTPRequest(ctx, "POST", "/jobs/", 202, time.Since(start))
//	recorder.RecordSubmission(ctx, "Job", instrumentation.StatusSuccess, time.Since(start))
package instrumentation
