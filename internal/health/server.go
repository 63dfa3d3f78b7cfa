// Package health serves the HTTP liveness and diagnostics endpoints of the bot.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
	"github.com/rc4lifting/rc4-facilities-bot/internal/logging"
)

const (
	storeTimeout      = 2 * time.Second
	readHeaderTimeout = 2 * time.Second
)

// Store is the persistence surface inspected by the endpoints.
type Store interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (domain.Stats, error)
}

// Server hosts /healthz and /stats and owns the underlying HTTP server.
type Server struct {
	server *http.Server
	store  Store
	driver string
	logger *logrus.Entry
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Driver string `json:"driver,omitempty"`
}

// NewServer constructs a server listening on port. driver names the store
// backend in responses.
func NewServer(port int, store Store, driver string, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		store:  store,
		driver: driver,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /stats", srv.handleStats)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "health_listen",
		"addr":  s.server.Addr,
	}).Info("starting health server")

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("health server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: "ok", Driver: s.driver}
	code := http.StatusOK

	if err := s.ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Store = "error"
		code = http.StatusServiceUnavailable
		s.logger.WithField("event", "health_store_error").WithError(err).Warn("store ping failed during health check")
	}

	s.writeJSON(w, code, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store is not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.WithField("event", "stats_error").WithError(err).Warn("failed to collect store stats")
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "stats unavailable"})
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) ping(ctx context.Context) error {
	if s.store == nil {
		return errors.New("store is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return s.store.Ping(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}
