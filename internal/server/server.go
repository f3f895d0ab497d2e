package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/quake-harvester/internal/api"
	"github.com/ethpandaops/quake-harvester/internal/config"
	"github.com/ethpandaops/quake-harvester/internal/handlers"
	"github.com/ethpandaops/quake-harvester/internal/middleware"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	logger     logrus.FieldLogger
}

// New creates a new HTTP server exposing health, metrics and harvester status.
// running backs the health check and may be nil.
func New(
	logger logrus.FieldLogger,
	cfg *config.Config,
	status api.StatusProvider,
	instanceID string,
	running func() bool,
) *Server {
	mux := http.NewServeMux()

	// Health endpoint
	mux.HandleFunc("GET /health", handlers.Health(running))
	logger.WithField("route", "GET /health").Info("Registered route")

	// Metrics endpoint (Prometheus format)
	mux.Handle("GET /metrics", promhttp.Handler())
	logger.WithField("route", "GET /metrics").Info("Registered route")

	// Harvester status
	mux.Handle("GET /api/v1/status", api.NewStatusHandler(status, instanceID, logger))
	logger.WithField("route", "GET /api/v1/status").Info("Registered route")

	// Apply middleware chain: Logging → Metrics → Recovery
	handler := middleware.Logging(logger)(mux)
	handler = middleware.Metrics()(handler)
	handler = middleware.Recovery(logger)(handler)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		logger:     logger,
	}
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server (blocking call).
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	return s.httpServer.Shutdown(ctx)
}
