// Package api exposes the bridge's HTTP surface: the liveness probe and
// Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthReporter is the synchronous health query: 200 while the event
// stream subscription is up, 503 otherwise.
type HealthReporter interface {
	HealthStatus() int
}

// Server serves /health and /metrics.
type Server struct {
	addr   string
	health HealthReporter
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a Server.
func NewServer(addr string, health HealthReporter, logger *zap.Logger) *Server {
	return &Server{
		addr:   addr,
		health: health,
		logger: logger.Named("api"),
	}
}

// Start starts the HTTP server and blocks until the context is cancelled
// or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleHealth reports the bridge's subscription health. The status code is
// the contract; the body is informational.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	code := s.health.HealthStatus()
	status := "down"
	if code == http.StatusOK {
		status = "up"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
