// Package api exposes the HTTP surface: flight CRUD, the composite health
// report, administrative cache invalidation, and the metrics endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flightops/flightops/internal/flights"
	"github.com/flightops/flightops/pkg/cache"
	"github.com/flightops/flightops/pkg/health"
	"github.com/flightops/flightops/pkg/observability"
	"github.com/flightops/flightops/pkg/tracking"
)

// ServerConfig configures the HTTP server
type ServerConfig struct {
	ListenAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	Environment   string
}

// Server wires the HTTP routes to the underlying subsystems
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	flightService *flights.Service
	gateway       cache.Gateway
	aggregator    *health.Aggregator
	tracker       *tracking.Tracker
	registry      *prometheus.Registry
	logger        observability.Logger
}

// NewServer creates the HTTP server and registers all routes
func NewServer(
	cfg ServerConfig,
	flightService *flights.Service,
	gateway cache.Gateway,
	aggregator *health.Aggregator,
	tracker *tracking.Tracker,
	registry *prometheus.Registry,
	logger observability.Logger,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	s := &Server{
		router:        gin.New(),
		flightService: flightService,
		gateway:       gateway,
		aggregator:    aggregator,
		tracker:       tracker,
		registry:      registry,
		logger:        logger.WithPrefix("api"),
	}
	s.router.Use(gin.Recovery())
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving; blocks until the listener fails or is shut down
func (s *Server) Start() error {
	s.logger.Info("http server starting", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains connections and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/health/liveness", s.handleLiveness)
	s.router.GET("/health/readiness", s.handleReadiness)

	if s.registry != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	admin := s.router.Group("/admin/cache")
	{
		admin.POST("/clear", s.handleCacheClear)
		admin.POST("/invalidate", s.handleCacheInvalidate)
		admin.GET("/stats", s.handleCacheStats)
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/flights", s.handleCreateFlight)
		v1.GET("/flights", s.handleListFlights)
		v1.GET("/flights/:id", s.handleGetFlight)
		v1.PUT("/flights/:id", s.handleUpdateFlight)
		v1.DELETE("/flights/:id", s.handleDeleteFlight)
	}
}
