package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/tflitehelper/internal/errors"
	"github.com/tphakala/tflitehelper/internal/logger"
	"github.com/tphakala/tflitehelper/internal/observability"
)

// Server is the HTTP classification server.
type Server struct {
	echo    *echo.Echo
	config  *Config
	pool    *classifierPool
	metrics *observability.Metrics
	results *cache.Cache
	log     logger.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetrics exposes m on /metrics and records HTTP metrics to it.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger replaces the module logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// New creates a server that classifies with classifiers. Each classifier
// serves one request at a time.
func New(config *Config, classifiers []Classifier, opts ...ServerOption) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.New(fmt.Errorf("invalid server configuration: %w", err)).
			Category(errors.CategoryConfiguration).
			Build()
	}

	pool, err := newClassifierPool(classifiers)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:    config,
		pool:      pool,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}

	if config.CacheTTL > 0 {
		// Expired entries are purged by the server's own janitor in Start.
		s.results = cache.New(config.CacheTTL, 0)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Listen),
		logger.Int("classifiers", pool.size),
		logger.Bool("cache", s.results != nil),
		logger.Bool("rate_limit", config.RateLimit > 0))

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(requestID())
	if s.metrics != nil {
		s.echo.Use(s.metricsMiddleware())
	}
	s.echo.Use(requestLogger(s.log))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/api/v1/health", s.handleHealth)
	s.echo.GET("/api/v1/labels", s.handleLabels)

	classify := s.handleClassify
	if s.config.RateLimit > 0 {
		s.echo.POST("/api/v1/classify", classify, s.rateLimiter())
	} else {
		s.echo.POST("/api/v1/classify", classify)
	}

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// Start serves HTTP requests in a background goroutine and returns
// immediately. Use Shutdown to stop the server.
func (s *Server) Start() {
	if s.results != nil {
		s.wg.Go(s.cacheJanitor)
	}

	s.wg.Go(func() {
		s.log.Info("starting HTTP server", logger.String("address", s.config.Listen))
		if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", logger.Error(err))
		}
	})
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.wg.Wait()
	if s.results != nil {
		s.results.Flush()
	}

	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) cacheJanitor() {
	ticker := time.NewTicker(cacheCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.results.DeleteExpired()
		}
	}
}
