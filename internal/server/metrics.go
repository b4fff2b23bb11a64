package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kbatch-dev/kbatch-proxy/internal/instrumentation"
)

// DefaultMetricsAddr is the default listen address for the metrics server.
const DefaultMetricsAddr = ":9090"

// MetricsServerConfig holds the configuration for the metrics server.
type MetricsServerConfig struct {
	// Addr is the address to listen on; empty means DefaultMetricsAddr.
	Addr string

	// InstrumentationProvider supplies the Prometheus handler. Required.
	InstrumentationProvider *instrumentation.Provider
}

// MetricsServer serves Prometheus metrics on a dedicated listener, kept off
// the API port so scrapes never compete with user traffic and the metrics
// endpoint is not exposed through the Hub proxy.
type MetricsServer struct {
	addr       string
	httpServer *http.Server
}

// NewMetricsServer creates a metrics server exposing /metrics and /healthz.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	if config.InstrumentationProvider == nil {
		return nil, fmt.Errorf("instrumentation provider is required")
	}

	addr := config.Addr
	if addr == "" {
		addr = DefaultMetricsAddr
	}

	mux := http.NewServeMux()
	if handler := config.InstrumentationProvider.PrometheusHandler(); handler != nil {
		mux.Handle("/metrics", handler)
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "prometheus exporter is not enabled", http.StatusNotFound)
		})
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &MetricsServer{
		addr: addr,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

// Addr returns the address the server listens on.
func (s *MetricsServer) Addr() string {
	return s.addr
}

// Start serves until Shutdown. Returns http.ErrServerClosed after a clean
// shutdown, like http.Server.
func (s *MetricsServer) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server. Safe to call without Start.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
