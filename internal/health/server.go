// Package health exposes the HTTP health check and metrics endpoints.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"printrelay/internal/logging"
)

const (
	checkTimeout       = 2 * time.Second
	readHeaderTimeout  = 2 * time.Second
	healthListenPrefix = ":"

	statusOK       = "ok"
	statusError    = "error"
	statusDegraded = "degraded"
)

// Checker reports whether a dependency is usable.
type Checker interface {
	Ping(ctx context.Context) error
}

// Options configures the health server.
type Options struct {
	Port int
	// Storage must be writable for the relay to accept submissions.
	Storage Checker
	// Mongo is optional; it is only reported when configured.
	Mongo   Checker
	Metrics http.Handler
	Logger  *logrus.Entry
}

// Server hosts the health endpoint and owns the underlying HTTP server.
type Server struct {
	server  *http.Server
	logger  *logrus.Entry
	storage Checker
	mongo   Checker
}

type response struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
	Mongo   string `json:"mongo,omitempty"`
}

// NewServer constructs a server exposing GET /healthz and, when a metrics
// handler is supplied, GET /metrics.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger:  logger,
		storage: opts.Storage,
		mongo:   opts.Mongo,
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", srv.handleHealth)
	if opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s%d", healthListenPrefix, opts.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the health server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "health_listen",
		"addr":  s.server.Addr,
	}).Info("starting health server")

	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("event", "health_stopped").Info("health server stopped")
			return nil
		}

		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("health server stopped")
	return nil
}

// Shutdown gracefully stops the health server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: statusOK}

	resp.Storage = s.check(r.Context(), "storage", s.storage, true)
	if s.mongo != nil {
		resp.Mongo = s.check(r.Context(), "mongo", s.mongo, false)
	}

	if resp.Storage != statusOK || (resp.Mongo != "" && resp.Mongo != statusOK) {
		resp.Status = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}

func (s *Server) check(ctx context.Context, name string, checker Checker, required bool) string {
	if checker == nil {
		if required {
			s.logger.WithField("event", "health_"+name+"_missing").Warn(name + " checker is not configured for health endpoint")
		}
		return statusError
	}

	pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	err := checker.Ping(pingCtx)
	cancel()

	if err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "health_" + name + "_error",
		}).WithError(err).Warn(name + " check failed during health check")
		return statusError
	}

	return statusOK
}
