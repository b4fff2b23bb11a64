package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kbatch-dev/kbatch-proxy/internal/auth"
	"github.com/kbatch-dev/kbatch-proxy/internal/config"
	"github.com/kbatch-dev/kbatch-proxy/internal/instrumentation"
	"github.com/kbatch-dev/kbatch-proxy/internal/k8s"
	"github.com/kbatch-dev/kbatch-proxy/internal/logging"
	"github.com/kbatch-dev/kbatch-proxy/internal/profiles"
	"github.com/kbatch-dev/kbatch-proxy/internal/server"
	"github.com/kbatch-dev/kbatch-proxy/internal/submit"
)

// shutdownTimeout bounds the drain of in-flight requests, including open log
// streams, once a termination signal arrives.
const shutdownTimeout = 20 * time.Second

// serveOptions holds the flag values for the serve command. Flags cover the
// process-level knobs; everything about the kbatch API itself comes from
// KBATCH_* and JUPYTERHUB_* environment variables via config.Load.
type serveOptions struct {
	listenAddr  string
	metricsAddr string

	kubeconfigPath string
	kubeContext    string
	inCluster      bool
	qpsLimit       float32
	burstLimit     int

	debug    bool
	textLogs bool
}

// newServeCmd creates the Cobra command for starting the kbatch API server.
func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the kbatch API server",
		Long: `Start the kbatch API server.

The server authenticates requests against JupyterHub, so JUPYTERHUB_API_URL,
JUPYTERHUB_API_TOKEN and the service's access scopes must be set; the Hub
injects all of them when kbatch-proxy runs as a managed service. Settings
come from KBATCH_* environment variables, optionally seeded from an env file
named by KBATCH_SETTINGS_PATH. Flags override their env counterparts.

Cluster credentials come from the kubeconfig by default, or from the pod's
service account with --in-cluster.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.listenAddr, "listen-addr", server.DefaultListenAddr, "API listen address (overrides KBATCH_LISTEN_ADDR)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Prometheus metrics listen address")
	cmd.Flags().StringVar(&opts.kubeconfigPath, "kubeconfig", "", "Path to the kubeconfig file (default: standard loading rules)")
	cmd.Flags().StringVar(&opts.kubeContext, "kube-context", "", "Kubeconfig context to use (default: current context)")
	cmd.Flags().BoolVar(&opts.inCluster, "in-cluster", false, "Use in-cluster authentication (service account token) instead of kubeconfig")
	cmd.Flags().Float32Var(&opts.qpsLimit, "qps-limit", 0, "QPS limit for Kubernetes API calls (default: 20.0)")
	cmd.Flags().IntVar(&opts.burstLimit, "burst-limit", 0, "Burst limit for Kubernetes API calls (default: 30)")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&opts.textLogs, "text-logs", false, "Log in human-readable text instead of JSON")

	return cmd
}

// runServe wires settings, cluster client, Hub authentication and the HTTP
// servers together, then serves until a termination signal arrives.
func runServe(cmd *cobra.Command, opts serveOptions) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	if settings.InitLogging {
		logging.Init(opts.debug, !opts.textLogs)
	}
	logger := slog.Default()

	listenAddr := settings.ListenAddr
	if cmd.Flags().Changed("listen-addr") {
		listenAddr = opts.listenAddr
	}

	// Shut down on SIGINT and SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instrumentationConfig := instrumentation.DefaultConfig()
	instrumentationConfig.ServiceVersion = rootCmd.Version
	provider, err := instrumentation.NewProvider(ctx, instrumentationConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if shutdownErr := provider.Shutdown(context.Background()); shutdownErr != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(shutdownErr))
		}
	}()
	if provider.Enabled() {
		logger.Info("instrumentation enabled",
			slog.String("metrics_exporter", instrumentationConfig.MetricsExporter),
			slog.String("tracing_exporter", instrumentationConfig.TracingExporter))
	}

	client, err := k8s.NewClient(&k8s.ClientConfig{
		KubeconfigPath: opts.kubeconfigPath,
		Context:        opts.kubeContext,
		InCluster:      opts.inCluster,
		QPSLimit:       opts.qpsLimit,
		BurstLimit:     opts.burstLimit,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	scopes, err := auth.AccessScopesFromEnv()
	if err != nil {
		return err
	}
	hub := auth.NewHubClient(auth.HubClientConfig{
		APIURL:   settings.JupyterHubAPIURL,
		APIToken: settings.JupyterHubAPIToken,
	})
	authenticator, err := auth.NewAuthenticator(auth.AuthenticatorConfig{
		Hub:          hub,
		AccessScopes: scopes,
		Metrics:      provider.Metrics(),
	})
	if err != nil {
		return err
	}
	defer authenticator.Close()
	logger.Info("authenticating against JupyterHub", logging.Host(hub.APIURL()))

	template, err := config.LoadJobTemplate(settings.JobTemplateFile)
	if err != nil {
		return err
	}
	profileStore, err := profiles.Load(settings.ProfileFile)
	if err != nil {
		return err
	}

	submitter := submit.New(client,
		submit.WithNamespaceCreation(settings.CreateUserNamespace),
		submit.WithMetrics(provider.Metrics()),
	)

	srv, err := server.NewServer(server.Config{
		Authenticator:           authenticator,
		Client:                  client,
		Submitter:               submitter,
		Profiles:                profileStore,
		JobTemplate:             template,
		ExtraEnv:                settings.JobExtraEnv,
		JobTTL:                  settings.JobTTL(),
		RoutePrefix:             settings.RoutePrefix(),
		MaxCodeSize:             settings.MaxCodeSize,
		ListenAddr:              listenAddr,
		InstrumentationProvider: provider,
		Version:                 rootCmd.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("kbatch-proxy listening",
			slog.String("addr", srv.Addr()),
			slog.String("prefix", settings.RoutePrefix()),
			slog.String("version", rootCmd.Version))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	// The metrics listener stays off the API port so it is never reachable
	// through the Hub proxy.
	var metricsSrv *server.MetricsServer
	if provider.Enabled() && provider.PrometheusHandler() != nil {
		metricsSrv, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metricsAddr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		group.Go(func() error {
			logger.Info("metrics listening", slog.String("addr", metricsSrv.Addr()))
			if err := metricsSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		// Wakes on a signal or on the first server error, then drains both
		// listeners.
		<-groupCtx.Done()
		logger.Info("shutting down", logging.Duration(shutdownTimeout))

		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr := srv.Shutdown(drainCtx)
		if metricsSrv != nil {
			shutdownErr = errors.Join(shutdownErr, metricsSrv.Shutdown(drainCtx))
		}
		return shutdownErr
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
