package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Provider owns the OpenTelemetry meter and tracer providers for the
// process. When the configuration disables instrumentation the Provider is
// inert: Metrics() returns a no-op recorder, no exporters are created, and
// Shutdown does nothing.
type Provider struct {
	config         Config
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	promHandler    http.Handler
	metrics        *Metrics
}

// NewProvider creates a Provider from the given configuration and installs
// the resulting meter and tracer providers as the process-wide defaults.
func NewProvider(ctx context.Context, config Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instrumentation config: %w", err)
	}

	p := &Provider{
		config:  config,
		metrics: &Metrics{},
	}
	if !config.Enabled {
		return p, nil
	}

	res := sdkresource.NewSchemaless(
		attribute.String("service.name", config.ServiceName),
		attribute.String("service.version", config.ServiceVersion),
	)

	if err := p.setupMetrics(res); err != nil {
		return nil, err
	}
	if err := p.setupTracing(ctx, res); err != nil {
		// The meter provider may already hold an exporter; release it.
		if p.meterProvider != nil {
			_ = p.meterProvider.Shutdown(ctx)
		}
		return nil, err
	}

	if p.meterProvider != nil {
		metrics, err := NewMetrics(p.meterProvider.Meter(TracerName), config.DetailedMetricsLabels)
		if err != nil {
			return nil, err
		}
		p.metrics = metrics
		otel.SetMeterProvider(p.meterProvider)
	}
	if p.tracerProvider != nil {
		otel.SetTracerProvider(p.tracerProvider)
	}

	return p, nil
}

func (p *Provider) setupMetrics(res *sdkresource.Resource) error {
	switch p.config.MetricsExporter {
	case "none":
		return nil
	case "prometheus", "":
		registry := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		p.promHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		return nil
	case "stdout":
		exporter, err := stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(DefaultMetricInterval))),
		)
		return nil
	default:
		return fmt.Errorf("unsupported metrics exporter %q", p.config.MetricsExporter)
	}
}

func (p *Provider) setupTracing(ctx context.Context, res *sdkresource.Resource) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch p.config.TracingExporter {
	case "none", "":
		return nil
	case "otlp":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpointURL(p.config.OTLPEndpoint),
		}
		if p.config.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	case "stdout":
		exporter, err = stdouttrace.New()
	default:
		return fmt.Errorf("unsupported tracing exporter %q", p.config.TracingExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s trace exporter: %w", p.config.TracingExporter, err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(p.config.TraceSamplingRate))),
	)
	return nil
}

// Enabled reports whether instrumentation is active.
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}

// Config returns the configuration the Provider was built from.
func (p *Provider) Config() Config {
	return p.config
}

// Metrics returns the metrics recorder. Never nil; when instrumentation is
// disabled the recorder's methods are no-ops.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// PrometheusHandler returns the HTTP handler serving the Prometheus
// scrape endpoint, or nil when the prometheus exporter is not in use.
func (p *Provider) PrometheusHandler() http.Handler {
	return p.promHandler
}

// Shutdown flushes and stops the exporters. Safe to call on a disabled
// provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down tracer provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
