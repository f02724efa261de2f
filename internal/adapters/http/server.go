// Package http exposes the pipeline, the memory service, the tool registry,
// and the operator surface over a chi router.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/longregen/cogito/internal/adapters/http/handlers"
	"github.com/longregen/cogito/internal/adapters/http/middleware"
	"github.com/longregen/cogito/internal/audit"
	"github.com/longregen/cogito/internal/config"
	"github.com/longregen/cogito/internal/memory"
	"github.com/longregen/cogito/internal/pipeline"
	"github.com/longregen/cogito/internal/registry"
	"github.com/longregen/cogito/internal/wall"
)

type Server struct {
	config      *config.Config
	router      *chi.Mux
	httpServer  *http.Server
	orch        *pipeline.Orchestrator
	memorySvc   *memory.Service
	reg         *registry.Registry
	wall        *wall.Wall
	auditLog    *audit.Log
	broadcaster *handlers.EventBroadcaster
	logger      *slog.Logger
}

func NewServer(
	cfg *config.Config,
	orch *pipeline.Orchestrator,
	memorySvc *memory.Service,
	reg *registry.Registry,
	w *wall.Wall,
	auditLog *audit.Log,
	broadcaster *handlers.EventBroadcaster,
	logger *slog.Logger,
) *Server {
	s := &Server{
		config:      cfg,
		orch:        orch,
		memorySvc:   memorySvc,
		reg:         reg,
		wall:        w,
		auditLog:    auditLog,
		broadcaster: broadcaster,
		logger:      logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.CORS(s.config.Server.CORSOrigins))
	r.Use(middleware.Metrics)

	r.Get("/health", handlers.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth)

		turnHandler := handlers.NewTurnHandler(s.orch)
		r.Post("/turns", turnHandler.HandleTurn)

		memoryHandler := handlers.NewMemoryHandler(s.memorySvc)
		r.Get("/memories/{userID}", memoryHandler.Recent)
		r.Post("/memories/{userID}/search", memoryHandler.Search)
		r.Delete("/memories/{userID}", memoryHandler.Forget)
		r.Get("/users/{userID}/profile", memoryHandler.Profile)

		toolsHandler := handlers.NewToolsHandler(s.reg)
		r.Get("/tools", toolsHandler.List)

		adminHandler := handlers.NewAdminHandler(s.wall, s.auditLog)
		r.Get("/admin/policy", adminHandler.GetPolicy)
		r.Post("/admin/policy", adminHandler.SetPolicy)
		r.Post("/admin/audit/rotate", adminHandler.RotateAudit)

		if s.broadcaster != nil {
			r.Get("/events", s.broadcaster.HandleEvents)
		}
	})

	s.router = r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket streaming needs no write timeout
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}
