// Package server exposes the chat pipeline over a JSON HTTP API:
// ingest, ask, stats, reindex and session reset, plus health, readiness and
// Prometheus metrics. The server is started by the `ragchat serve` command.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/ragchat-go/internal/logging"
	"github.com/54b3r/ragchat-go/internal/orchestrator"
)

// New constructs a Server in front of orch.
func New(orch *orchestrator.Orchestrator, cfg *Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("server: orchestrator must not be nil")
	}
	return newServer(orch, cfg)
}

func newServer(p pipeline, cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		pipeline: p,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: API key not set, authentication disabled")
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stop

	// protected routes require the API key; limited routes also spend a
	// rate-limit token because they reach a model backend.
	protected := func(h http.HandlerFunc) http.Handler { return authMiddleware(cfg.APIKey, h) }
	limited := func(h http.HandlerFunc) http.Handler { return authMiddleware(cfg.APIKey, rl.middleware(h)) }

	mux := http.NewServeMux()
	s.route(mux, "POST /api/ask", "ask", limited(s.handleAsk))
	s.route(mux, "POST /api/ingest", "ingest", limited(s.handleIngest))
	s.route(mux, "POST /api/reindex", "reindex", limited(s.handleReindex))
	s.route(mux, "GET /api/stats", "stats", protected(s.handleStats))
	s.route(mux, "POST /api/session/clear", "session_clear", protected(s.handleClearSession))
	s.route(mux, "GET /api/health", "health", http.HandlerFunc(s.handleHealth))
	s.route(mux, "GET /api/ready", "ready", http.HandlerFunc(s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// route registers h under pattern, instrumented with the handler label name.
func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.Handler) {
	mux.Handle(pattern, s.instrument(name, h))
}

// Handler returns the server's root handler. Tests drive it through
// httptest without binding a port.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("server: stopped")
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
