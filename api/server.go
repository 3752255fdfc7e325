package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/better-analytics/better-analytics-go/analytics"
	"github.com/better-analytics/better-analytics-go/config"
	"github.com/better-analytics/better-analytics-go/ingest"
	"github.com/better-analytics/better-analytics-go/models"
)

// EventProcessor is the ingestion pipeline behind the collection endpoint.
type EventProcessor interface {
	Process(ctx context.Context, ev *analytics.Event, req ingest.RequestContext) (*models.ProcessedEvent, error)
	ProcessBatch(ctx context.Context, events []*analytics.Event, req ingest.RequestContext) ([]*models.ProcessedEvent, error)
}

// Server is the HTTP server for the collection API
type Server struct {
	cfg        config.Config
	router     *gin.Engine
	httpServer *http.Server
	processor  EventProcessor
}

// NewServer creates a new collection API server
func NewServer(cfg config.Config, processor EventProcessor) *Server {
	server := &Server{
		cfg:       cfg,
		router:    gin.New(),
		processor: processor,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes()

	return server
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupMiddleware adds middleware to the router
func (s *Server) setupMiddleware() {
	// Add request ID middleware
	s.router.Use(RequestIDMiddleware())

	// Add CORS middleware
	if s.cfg.CorsEnabled {
		s.router.Use(CORSMiddleware())
	}

	// Add recovery middleware
	s.router.Use(gin.Recovery())

	// Add logging middleware
	s.router.Use(LoggingMiddleware())
}

// setupRoutes defines the API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	api := s.router.Group("/api")
	{
		api.POST("/collect", s.collect)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        s.cfg.HTTPServerAddress,
		Handler:     s.router,
		ReadTimeout: s.cfg.HTTPServerTimeout,
	}

	log.Info().Msgf("HTTP server starting on %s", s.cfg.HTTPServerAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
