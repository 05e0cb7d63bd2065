// Package http provides the REST API server.
package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reconforge/api/internal/config"
	"github.com/reconforge/api/internal/infra/http/handler"
	"github.com/reconforge/api/internal/infra/http/middleware"
	"github.com/reconforge/api/pkg/logger"
)

// Handlers groups the route handlers mounted by the server.
type Handlers struct {
	Health   *handler.HealthHandler
	ScanJobs *handler.ScanJobHandler
	Targets  *handler.TargetHandler

	// WS is mounted at /api/v1/ws when set.
	WS http.Handler
}

// Server is the HTTP API server.
type Server struct {
	server *http.Server
	logger *logger.Logger
}

// NewServer creates the server with the full middleware chain and
// route table.
func NewServer(cfg *config.Config, h Handlers, log *logger.Logger) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Logging(log, "/healthz", "/readyz", "/metrics"))
	r.Use(middleware.Metrics())
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		r.Use(limiter.Handler)
	}

	r.Get("/healthz", h.Health.Health)
	r.Get("/readyz", h.Health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/scan-jobs", func(r chi.Router) {
			r.Post("/", h.ScanJobs.Create)
			r.Get("/", h.ScanJobs.List)
			r.Get("/stats", h.ScanJobs.Stats)
			r.Get("/{id}", h.ScanJobs.Get)
			r.Post("/{id}/stop", h.ScanJobs.Stop)
		})
		r.Route("/targets", func(r chi.Router) {
			r.Post("/", h.Targets.Create)
			r.Get("/", h.Targets.List)
			r.Get("/{id}", h.Targets.Get)
		})
		if h.WS != nil {
			r.Handle("/ws", h.WS)
		}
	})

	return &Server{
		server: &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      r,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		logger: log,
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.server.Shutdown(ctx)
}
