package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kbatch-dev/kbatch-proxy/internal/auth"
	"github.com/kbatch-dev/kbatch-proxy/internal/instrumentation"
	"github.com/kbatch-dev/kbatch-proxy/internal/k8s"
	"github.com/kbatch-dev/kbatch-proxy/internal/profiles"
	"github.com/kbatch-dev/kbatch-proxy/internal/server/middleware"
	"github.com/kbatch-dev/kbatch-proxy/internal/submit"
)

// DefaultListenAddr is where the API listens when no address is configured.
const DefaultListenAddr = ":8000"

// DefaultMaxCodeSize caps the decoded size of a submission's code bundle.
const DefaultMaxCodeSize = 1 << 20

// readHeaderTimeout bounds how long a client may take to send headers.
const readHeaderTimeout = 10 * time.Second

// Config carries the dependencies and tunables of the API server.
type Config struct {
	// Authenticator resolves request tokens to JupyterHub users. Required.
	Authenticator *auth.Authenticator

	// Client performs all cluster operations. Required.
	Client k8s.Client

	// Submitter runs the submission pipeline. Required.
	Submitter *submit.Submitter

	// Profiles holds the presets served at /profiles/. Nil serves an empty
	// map.
	Profiles *profiles.Store

	// JobTemplate is the normalized admin template merged over every
	// submission, or nil.
	JobTemplate map[string]any

	// ExtraEnv is injected into every submission's main container.
	ExtraEnv map[string]string

	// JobTTL is stamped on every submitted workload; nil leaves the TTL to
	// the cluster.
	JobTTL *int32

	// RoutePrefix mounts the API under a path prefix. Empty serves from
	// the root.
	RoutePrefix string

	// MaxCodeSize caps the decoded code bundle size in bytes; zero means
	// DefaultMaxCodeSize.
	MaxCodeSize int64

	// ListenAddr is the listen address; empty means DefaultListenAddr.
	ListenAddr string

	// InstrumentationProvider supplies metrics recording; nil disables it.
	InstrumentationProvider *instrumentation.Provider

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Version is reported by the health endpoints.
	Version string
}

// Server is the kbatch API server.
type Server struct {
	authenticator *auth.Authenticator
	client        k8s.Client
	submitter     *submit.Submitter
	profiles      *profiles.Store
	template      map[string]any
	extraEnv      map[string]string
	jobTTL        *int32
	prefix        string
	maxCodeSize   int64
	provider      *instrumentation.Provider
	metrics       *instrumentation.Metrics
	logger        *slog.Logger
	health        *HealthChecker

	httpServer *http.Server
}

// NewServer validates config and builds the server, including its routes.
func NewServer(config Config) (*Server, error) {
	if config.Authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if config.Client == nil {
		return nil, fmt.Errorf("kubernetes client is required")
	}
	if config.Submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}

	s := &Server{
		authenticator: config.Authenticator,
		client:        config.Client,
		submitter:     config.Submitter,
		profiles:      config.Profiles,
		template:      config.JobTemplate,
		extraEnv:      config.ExtraEnv,
		jobTTL:        config.JobTTL,
		prefix:        normalizePrefix(config.RoutePrefix),
		maxCodeSize:   config.MaxCodeSize,
		provider:      config.InstrumentationProvider,
		metrics:       &instrumentation.Metrics{},
		logger:        config.Logger,
		health:        NewHealthChecker(config.Version),
	}
	if s.profiles == nil {
		s.profiles = profiles.New(nil)
	}
	if s.maxCodeSize <= 0 {
		s.maxCodeSize = DefaultMaxCodeSize
	}
	if s.provider != nil {
		s.metrics = s.provider.Metrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	addr := config.ListenAddr
	if addr == "" {
		addr = DefaultListenAddr
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

func normalizePrefix(prefix string) string {
	trimmed := strings.Trim(prefix, "/")
	if trimmed == "" {
		return ""
	}
	return "/" + trimmed
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the full HTTP handler: routes, health endpoints, and
// middleware. It is exposed for tests; Start serves it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	s.health.RegisterHealthEndpoints(mux)

	var handler http.Handler = mux
	handler = middleware.HTTPMetrics(s.provider)(handler)
	handler = middleware.SecurityHeaders()(handler)
	handler = s.recoverPanics(handler)
	return handler
}

func (s *Server) routes(mux *http.ServeMux) {
	p := s.prefix

	mux.HandleFunc("GET "+p+"/{$}", s.handleRoot)
	if p != "" {
		// Deployments behind a prefix still answer the bare root, so probes
		// and the Hub's service page get a response either way.
		mux.HandleFunc("GET /{$}", s.handleRoot)
	}
	mux.HandleFunc("GET "+p+"/profiles/{$}", s.handleProfiles)
	mux.Handle("GET "+p+"/authorized", s.requireUser(s.handleAuthorized))

	mux.Handle("POST "+p+"/jobs/{$}", s.requireUser(s.handleCreateJob))
	mux.Handle("GET "+p+"/jobs/{$}", s.requireUser(s.handleListJobs))
	mux.Handle("GET "+p+"/jobs/logs/{name}", s.requireUser(s.handleJobLogs))
	mux.Handle("GET "+p+"/jobs/logs/{name}/{$}", s.requireUser(s.handleJobLogs))
	mux.Handle("GET "+p+"/jobs/{name}", s.requireUser(s.handleGetJob))
	mux.Handle("DELETE "+p+"/jobs/{name}", s.requireUser(s.handleDeleteJob))

	mux.Handle("POST "+p+"/cronjobs/{$}", s.requireUser(s.handleCreateCronJob))
	mux.Handle("GET "+p+"/cronjobs/{$}", s.requireUser(s.handleListCronJobs))
	mux.Handle("GET "+p+"/cronjobs/{name}", s.requireUser(s.handleGetCronJob))
	mux.Handle("DELETE "+p+"/cronjobs/{name}", s.requireUser(s.handleDeleteCronJob))

	mux.Handle("GET "+p+"/pods/{$}", s.requireUser(s.handleListPods))
	mux.Handle("GET "+p+"/pods/logs/{name}", s.requireUser(s.handlePodLogs))
	mux.Handle("GET "+p+"/pods/logs/{name}/{$}", s.requireUser(s.handlePodLogs))
	mux.Handle("GET "+p+"/pods/{name}", s.requireUser(s.handleGetPod))
}

// Start listens on the configured address and serves until Shutdown. The
// readiness probe flips to ready once the listener is bound. Returns
// http.ErrServerClosed after a clean shutdown, like http.Server.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.health.SetReady(true)
	return s.httpServer.Serve(listener)
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	return s.httpServer.Shutdown(ctx)
}

// Health returns the server's health checker, so the serve command can tie
// readiness to its own lifecycle.
func (s *Server) Health() *HealthChecker {
	return s.health
}

type contextKey int

const userContextKey contextKey = 0

func withUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// userFrom returns the authenticated user placed on the context by
// requireUser. Handlers behind requireUser can rely on it being set.
func userFrom(ctx context.Context) *auth.User {
	user, _ := ctx.Value(userContextKey).(*auth.User)
	return user
}

// requireUser authenticates the request and makes the user available to the
// wrapped handler.
func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticator.Authenticate(r.Context(), r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			s.logger.Error("panic while serving request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Any("panic", v),
			)
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Status: http.StatusInternalServerError,
				Detail: "internal server error",
			})
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "kbatch"})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.profiles.All())
}

// userResponse is the /authorized body. Scopes stay server side.
type userResponse struct {
	Name   string   `json:"name"`
	Groups []string `json:"groups"`
}

func (s *Server) handleAuthorized(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	groups := user.Groups
	if groups == nil {
		groups = []string{}
	}
	writeJSON(w, http.StatusOK, userResponse{Name: user.Name, Groups: groups})
}
