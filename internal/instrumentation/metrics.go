package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	// Common attributes (reused across metrics)
	attrMethod       = "method"
	attrPath         = "path"
	attrStatus       = "status"
	attrOperation    = "operation"
	attrResourceType = "resource_type"
	attrNamespace    = "namespace"
	attrResult       = "result"
	attrKind         = "kind"
)

// Metrics provides methods for recording observability metrics. The zero
// value is a valid no-op recorder; every method checks for uninitialized
// instruments, so a disabled provider can hand out &Metrics{} safely.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	activeLogStreams    metric.Int64UpDownCounter

	// Kubernetes operation metrics
	k8sOperationsTotal   metric.Int64Counter
	k8sOperationDuration metric.Float64Histogram

	// Submission pipeline metrics
	submissionsTotal   metric.Int64Counter
	submissionDuration metric.Float64Histogram

	// JupyterHub authentication metrics
	authLookupsTotal metric.Int64Counter

	// Configuration
	// detailedLabels controls whether high-cardinality labels (namespace, resource_type)
	// are included in Kubernetes operation metrics
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.activeLogStreams, err = meter.Int64UpDownCounter(
		"active_log_streams",
		metric.WithDescription("Number of pod log streams currently being relayed"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_log_streams gauge: %w", err)
	}

	// Kubernetes Operation Metrics
	m.k8sOperationsTotal, err = meter.Int64Counter(
		"kubernetes_operations_total",
		metric.WithDescription("Total number of Kubernetes operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes_operations_total counter: %w", err)
	}

	m.k8sOperationDuration, err = meter.Float64Histogram(
		"kubernetes_operation_duration_seconds",
		metric.WithDescription("Kubernetes operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes_operation_duration_seconds histogram: %w", err)
	}

	// Submission Metrics
	m.submissionsTotal, err = meter.Int64Counter(
		"kbatch_submissions_total",
		metric.WithDescription("Total number of job submissions"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kbatch_submissions_total counter: %w", err)
	}

	m.submissionDuration, err = meter.Float64Histogram(
		"kbatch_submission_duration_seconds",
		metric.WithDescription("End-to-end submission pipeline duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kbatch_submission_duration_seconds histogram: %w", err)
	}

	// Authentication Metrics
	m.authLookupsTotal, err = meter.Int64Counter(
		"jupyterhub_auth_lookups_total",
		metric.WithDescription("Total number of JupyterHub token lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create jupyterhub_auth_lookups_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordK8sOperation records a Kubernetes operation with operation type, resource type,
// namespace, status, and duration.
//
// CARDINALITY NOTE: When detailedLabels is false (default), only operation and status
// labels are recorded to avoid cardinality explosion. The proxy creates one namespace
// per user, so the namespace label grows with the user base; keep detailedLabels
// disabled on busy hubs and use traces for per-namespace debugging instead.
func (m *Metrics) RecordK8sOperation(ctx context.Context, operation, resourceType, namespace, status string, duration time.Duration) {
	if m.k8sOperationsTotal == nil || m.k8sOperationDuration == nil {
		return // Instrumentation not initialized
	}

	// Always include operation and status (low cardinality)
	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels {
		attrs = append(attrs,
			attribute.String(attrResourceType, resourceType),
			attribute.String(attrNamespace, namespace),
		)
	}

	m.k8sOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.k8sOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSubmission records one pass through the submission pipeline.
// Kind is "Job" or "CronJob"; result should be StatusSuccess or StatusError.
func (m *Metrics) RecordSubmission(ctx context.Context, kind, result string, duration time.Duration) {
	if m.submissionsTotal == nil || m.submissionDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrKind, kind),
		attribute.String(attrResult, result),
	}

	m.submissionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.submissionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAuthLookup records a JupyterHub token lookup with its result.
// Result should be one of the AuthResult constants.
func (m *Metrics) RecordAuthLookup(ctx context.Context, result string) {
	if m.authLookupsTotal == nil {
		return // Instrumentation not initialized
	}

	m.authLookupsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// IncrementActiveLogStreams increments the active log streams counter.
func (m *Metrics) IncrementActiveLogStreams(ctx context.Context) {
	if m.activeLogStreams == nil {
		return // Instrumentation not initialized
	}

	m.activeLogStreams.Add(ctx, 1)
}

// DecrementActiveLogStreams decrements the active log streams counter.
func (m *Metrics) DecrementActiveLogStreams(ctx context.Context) {
	if m.activeLogStreams == nil {
		return // Instrumentation not initialized
	}

	m.activeLogStreams.Add(ctx, -1)
}
