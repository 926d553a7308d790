// Package web serves the status HTTP API: current ledger counts, the last
// detection run, and its violations. Read-only; mutation stays with the
// instrumented process.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/ledger"
	"github.com/hugo-lorenzo-mato/leakgate/internal/logging"
	"github.com/hugo-lorenzo-mato/leakgate/internal/report"
	"github.com/hugo-lorenzo-mato/leakgate/internal/watchdog"
)

// Config holds the server configuration.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	EnableCORS      bool
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:7711",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		EnableCORS:      false,
	}
}

// Server is the status HTTP server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	config     Config
	logger     *logging.Logger
	ledger     *ledger.Ledger
	watchdog   *watchdog.Watchdog
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithWatchdog exposes watchdog state and the last run on the API.
func WithWatchdog(w *watchdog.Watchdog) ServerOption {
	return func(s *Server) {
		s.watchdog = w
	}
}

// New creates a status server over led.
func New(cfg Config, led *ledger.Ledger, logger *logging.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		config: cfg,
		logger: logger.WithComponent("web"),
		ledger: led,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// setupRouter configures the Chi router with middleware and routes.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins: s.config.CORSOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		})
		r.Use(corsMiddleware.Handler)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/report", s.handleReport)
		r.Get("/violations", s.handleViolations)
	})

	return r
}

// loggingMiddleware logs HTTP requests using structured logging.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// statsResponse is the /api/v1/stats payload.
type statsResponse struct {
	OpenByType      map[string]int `json:"open_by_type"`
	RejectedDropped int64          `json:"rejected_dropped"`
	WatchdogState   string         `json:"watchdog_state,omitempty"`
	SkippedTicks    int64          `json:"skipped_ticks,omitempty"`
	LastRunID       string         `json:"last_run_id,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	// Read from the shard indices, not Snapshot: a snapshot drains the
	// rejected-release side channel, which belongs to the detectors.
	resp := statsResponse{
		OpenByType:      map[string]int{},
		RejectedDropped: s.ledger.RejectedDropped(),
	}
	for rt, n := range s.ledger.OpenCounts() {
		resp.OpenByType[string(rt)] = n
	}
	if s.watchdog != nil {
		resp.WatchdogState = string(s.watchdog.State())
		resp.SkippedTicks = s.watchdog.SkippedTicks()
		if set, ok := s.watchdog.LastSet(); ok {
			resp.LastRunID = set.RunID
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	set, ok := s.lastSet()
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no detection run yet"})
		return
	}
	s.writeJSON(w, http.StatusOK, report.Generate(set))
}

func (s *Server) handleViolations(w http.ResponseWriter, _ *http.Request) {
	set, ok := s.lastSet()
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no detection run yet"})
		return
	}
	r := report.Generate(set)
	if r.Violations == nil {
		r.Violations = []core.Violation{}
	}
	s.writeJSON(w, http.StatusOK, r.Violations)
}

func (s *Server) lastSet() (core.ViolationSet, bool) {
	if s.watchdog == nil {
		return core.ViolationSet{}, false
	}
	return s.watchdog.LastSet()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// Start starts the HTTP server in a non-blocking manner.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.httpServer.Addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router returns the underlying chi router.
func (s *Server) Router() chi.Router {
	return s.router
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
