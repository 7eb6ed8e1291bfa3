// Package server exposes the health probes over HTTP.
//
// Routes:
//
//	GET /, /healthz, /liveness   process liveness, always "OK"
//	GET /readyz, /readiness      full probe, text OK/UNHEALTHY
//	GET /health                  JSON report; ?kind=resource|dependency|full
//	GET /check_health            resource probe with optional threshold overrides
//	GET /check_<name>            dependency probe for each configured store
//	GET /metrics                 Prometheus metrics
//
// Probe routes sit behind optional JWT authentication. Dependency routes
// share a bulkhead so a burst of requests cannot open unbounded store
// connections.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/healthprobe/auth"
	"github.com/jonwraymond/healthprobe/health"
	"github.com/jonwraymond/healthprobe/observe"
	"github.com/jonwraymond/healthprobe/resilience"
)

// Config configures the HTTP server.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxConcurrentProbes caps in-flight dependency probes.
	// Default: 16
	MaxConcurrentProbes int

	// RateLimit is requests per second across all routes; 0 disables it.
	RateLimit float64
	RateBurst int
}

// Dependency is a store exposed at /check_<Name>.
type Dependency struct {
	Name       string
	Aggregator *health.Aggregator
	Factory    health.StoreFactory
}

// Probes wires the evaluators behind the routes.
type Probes struct {
	// Aggregator serves /check_health, /readyz and /health.
	Aggregator *health.Aggregator

	// Primary is the store that /readyz and /health verify. When nil they
	// run resource probes only.
	Primary health.StoreFactory

	Dependencies []Dependency

	// Authenticator guards probe routes when set.
	Authenticator *auth.JWTAuthenticator

	// RequiredRole is checked after authentication when non-empty.
	RequiredRole string

	// Metrics serves /metrics. Default: promhttp.Handler()
	Metrics http.Handler
}

// Server is the probe HTTP server.
type Server struct {
	config     Config
	router     *mux.Router
	httpServer *http.Server
	bulkhead   *resilience.Bulkhead
	logger     observe.Logger
}

// New builds the server and its routes.
func New(cfg Config, probes Probes, logger observe.Logger) (*Server, error) {
	if probes.Aggregator == nil {
		return nil, fmt.Errorf("server: %w", health.ErrEvaluatorNotConfigured)
	}
	if cfg.MaxConcurrentProbes <= 0 {
		cfg.MaxConcurrentProbes = 16
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	if probes.Metrics == nil {
		probes.Metrics = promhttp.Handler()
	}

	s := &Server{
		config:   cfg,
		router:   mux.NewRouter(),
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: cfg.MaxConcurrentProbes}),
		logger:   logger,
	}
	if err := s.routes(probes); err != nil {
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) routes(p Probes) error {
	chain := []func(http.Handler) http.Handler{
		Recovery(s.logger),
		RequestID,
		Logging(s.logger),
	}
	if s.config.RateLimit > 0 {
		rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: s.config.RateLimit, Burst: s.config.RateBurst})
		chain = append(chain, RateLimit(rl, s.logger))
	}
	s.router.Use(mux.MiddlewareFunc(Chain(chain...)))

	protect := func(h http.Handler) http.Handler { return h }
	if p.Authenticator != nil {
		guards := []func(http.Handler) http.Handler{auth.Middleware(p.Authenticator)}
		if p.RequiredRole != "" {
			guards = append(guards, auth.RequireRole(p.RequiredRole))
		}
		protect = Chain(guards...)
	}
	limit := Bulkhead(s.bulkhead, s.logger)

	live := health.LivenessHandler()
	for _, path := range []string{"/", "/healthz", "/liveness"} {
		s.router.Handle(path, live).Methods(http.MethodGet)
	}
	s.router.Handle("/metrics", p.Metrics).Methods(http.MethodGet)

	s.router.Handle("/check_health", protect(health.ResourceHandler(p.Aggregator))).Methods(http.MethodGet)
	ready := protect(limit(health.ReadinessHandler(p.Aggregator, p.Primary)))
	for _, path := range []string{"/readyz", "/readiness"} {
		s.router.Handle(path, ready).Methods(http.MethodGet)
	}
	s.router.Handle("/health", protect(limit(health.DetailedHandler(p.Aggregator, p.Primary)))).Methods(http.MethodGet)

	seen := make(map[string]bool, len(p.Dependencies))
	for _, d := range p.Dependencies {
		if d.Name == "" || d.Aggregator == nil {
			return fmt.Errorf("server: dependency %q: %w", d.Name, health.ErrEvaluatorNotConfigured)
		}
		if seen[d.Name] {
			return fmt.Errorf("server: duplicate dependency %q", d.Name)
		}
		seen[d.Name] = true
		h := health.DependencyHandler(d.Aggregator, d.Factory)
		s.router.Handle("/check_"+d.Name, protect(limit(h))).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "request", "endpoint not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "request", "method not allowed")
	})
	return nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "starting HTTP server", observe.Field{Key: "port", Value: s.config.Port})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight probes.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
