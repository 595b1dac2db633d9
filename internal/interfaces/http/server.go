// Package http exposes the review services over a JSON API. The acting user is
// read from the X-User-Email header; authorization happens in the services.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/discussion-review/internal/application/service"
	"github.com/garyjia/discussion-review/internal/infrastructure/metrics"
)

type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Services bundles the application services served over HTTP
type Services struct {
	Discussions service.DiscussionService
	Annotations service.AnnotationService
	Consensus   service.ConsensusService
	Reconcile   service.ReconcileService
	Reports     service.ReportService
	Users       service.UserService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	metrics    *metrics.Metrics
	logger     Logger
}

// NewServer creates a new HTTP server with the given services.
// A nil metrics disables the /metrics endpoint and request counters.
func NewServer(config ServerConfig, services Services, m *metrics.Metrics, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		metrics:  m,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	if s.metrics != nil {
		s.router.Use(s.metricsMiddleware())
	}
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"actor", c.GetHeader(HeaderActor),
			"client_ip", c.ClientIP(),
		)
	}
}

// metricsMiddleware records request counts and latency by route template
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.metrics.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	s.router.GET("/health", h.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api")
	{
		api.GET("/discussions", h.ListDiscussions)
		api.POST("/discussions", h.ImportDiscussions)
		api.DELETE("/discussions", h.DeleteDiscussions)
		api.GET("/discussions/:id", h.GetDiscussion)

		task := api.Group("/discussions/:id/tasks/:task")
		{
			task.GET("/annotations", h.ListAnnotations)
			task.PUT("/annotations", h.SubmitAnnotation)
			task.GET("/consensus", h.GetConsensus)
			task.PUT("/consensus", h.SaveConsensus)
			task.POST("/consensus/override", h.OverrideConsensus)
			task.POST("/unlock-next", h.UnlockNextTask)
			task.POST("/rework", h.FlagRework)
			task.DELETE("/rework", h.ClearRework)
			task.GET("/report", h.GetTaskStatusReport)
			task.GET("/history", h.GetStatusHistory)
		}

		api.POST("/quality/evaluate", h.EvaluateQuality)
		api.POST("/admin/reconcile", h.Reconcile)

		api.GET("/reports/bottlenecks", h.GetBottleneckReport)
		api.GET("/reports/bottlenecks.xlsx", h.DownloadBottleneckReport)
		api.POST("/reports/bottlenecks/export", h.SaveBottleneckExport)

		api.GET("/users", h.ListUsers)
		api.POST("/users", h.AddUser)
		api.DELETE("/users/:email", h.RemoveUser)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router exposes the gin engine to httptest
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
