package instrumentation

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is the name of the service (default: kbatch-proxy)
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled determines if instrumentation is active (default: false for zero overhead)
	// Set to true via INSTRUMENTATION_ENABLED=true to enable metrics and tracing
	Enabled bool

	// MetricsExporter specifies the metrics exporter type
	// Options: "prometheus", "stdout", "none" (default: "prometheus")
	MetricsExporter string

	// TracingExporter specifies the tracing exporter type
	// Options: "otlp", "stdout", "none" (default: "none")
	TracingExporter string

	// OTLPEndpoint is the OTLP collector endpoint
	// Example: "http://localhost:4318"
	OTLPEndpoint string

	// OTLPInsecure controls whether to use insecure HTTP for OTLP export.
	// When false (default), uses TLS for secure transport. Set to true only
	// for local development with unencrypted endpoints; spans carry resource
	// names and usernames' domains and should be encrypted in transit.
	OTLPInsecure bool

	// TraceSamplingRate is the sampling rate for traces (0.0 to 1.0, default: 0.1)
	TraceSamplingRate float64

	// PrometheusEndpoint is the path for the Prometheus metrics endpoint (default: "/metrics")
	PrometheusEndpoint string

	// DetailedMetricsLabels controls whether high-cardinality labels
	// (namespace, resource_type) are recorded on Kubernetes operation
	// metrics. The proxy creates one namespace per user, so leave this
	// off on deployments with many users.
	DetailedMetricsLabels bool
}

// DefaultConfig returns a Config with sensible defaults based on environment variables.
func DefaultConfig() Config {
	return Config{
		ServiceName:           getEnvOrDefault("OTEL_SERVICE_NAME", "kbatch-proxy"),
		ServiceVersion:        "unknown",
		Enabled:               getEnvBoolOrDefault("INSTRUMENTATION_ENABLED", false),
		MetricsExporter:       getEnvOrDefault("METRICS_EXPORTER", "prometheus"),
		TracingExporter:       getEnvOrDefault("TRACING_EXPORTER", "none"),
		OTLPEndpoint:          getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:          getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate:     getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		PrometheusEndpoint:    getEnvOrDefault("PROMETHEUS_ENDPOINT", "/metrics"),
		DetailedMetricsLabels: getEnvBoolOrDefault("METRICS_DETAILED_LABELS", false),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0.0 || c.TraceSamplingRate > 1.0 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %v", c.TraceSamplingRate)
	}
	switch c.MetricsExporter {
	case "", "prometheus", "stdout", "none":
	default:
		return fmt.Errorf("unsupported metrics exporter %q (supported: prometheus, stdout, none)", c.MetricsExporter)
	}
	switch c.TracingExporter {
	case "", "otlp", "stdout", "none":
	default:
		return fmt.Errorf("unsupported tracing exporter %q (supported: otlp, stdout, none)", c.TracingExporter)
	}
	if c.TracingExporter == "otlp" && c.OTLPEndpoint == "" {
		return fmt.Errorf("otlp tracing requires an endpoint, set OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return nil
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the boolean value of an environment variable or a default value.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// getEnvFloatOrDefault returns the float64 value of an environment variable or a default value.
func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// Constants for metric label values.
const (
	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnknown = "unknown"

	// Hub auth lookup results
	AuthResultSuccess = "success"
	AuthResultCached  = "cached"
	AuthResultInvalid = "invalid"
	AuthResultDenied  = "denied"
	AuthResultError   = "error"

	// Operation types
	OperationGet    = "get"
	OperationList   = "list"
	OperationCreate = "create"
	OperationDelete = "delete"
	OperationPatch  = "patch"
	OperationLogs   = "logs"

	// Metric recording intervals
	DefaultMetricInterval = 10 * time.Second
)
