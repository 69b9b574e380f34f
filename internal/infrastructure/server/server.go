package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/userdirectory/core/docs"
	httpHandlers "github.com/userdirectory/core/internal/adapters/http"
	"github.com/userdirectory/core/internal/application/services"
	"github.com/userdirectory/core/internal/infrastructure/config"
	"github.com/userdirectory/core/internal/infrastructure/logger"
	"github.com/userdirectory/core/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *logger.Logger
	users  *services.UserService
}

// New creates a new server instance. The users document is loaded from store
// here, once, and kept for the life of the server.
func New(ctx context.Context, cfg *config.Config, store ports.DocumentStore, appLogger *logger.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}

	e := echo.New()
	e.Validator = httpHandlers.NewValidator()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	userService := services.NewUserService(ctx, store, appLogger)
	userHandler := httpHandlers.NewUserHandler(userService, appLogger)

	server := &Server{
		echo:   e,
		config: cfg,
		logger: appLogger,
		users:  userService,
	}

	server.setupMiddleware()

	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	server.setupRoutes(userHandler)

	return server, nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(userHandler *httpHandlers.UserHandler) {
	s.echo.GET("/", s.home)

	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	users := s.echo.Group("/api/users")
	users.GET("", userHandler.ListUsers)
	users.POST("", userHandler.CreateUser)
	users.GET("/city/:city", userHandler.UsersByCity)
	users.GET("/job/:job", userHandler.UsersByJob)
	users.GET("/:id", userHandler.GetUser)
	users.PUT("/:id", userHandler.UpdateUser)
	users.DELETE("/:id", userHandler.DeleteUser)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	usersTotal := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "users_total",
			Help: "Number of users currently stored",
		},
		func() float64 { return float64(s.users.Count()) },
	)

	registry.MustRegister(requestsTotal, requestDuration, usersTotal)

	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// The error is rendered here so the recorded status is final;
			// outer middleware only sees the committed response.
			if err := next(c); err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			requestsTotal.WithLabelValues(
				c.Request().Method,
				path,
				fmt.Sprintf("%d", c.Response().Status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				path,
			).Observe(time.Since(start).Seconds())

			return nil
		}
	})

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// home describes the API
func (s *Server) home(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": s.config.App.Name,
		"status":  "running",
		"version": s.config.App.Version,
		"endpoints": map[string]string{
			"GET /":                      "API information",
			"GET /health":                "Health check",
			"GET /api/users":             "Get all users",
			"GET /api/users/{id}":        "Get user by ID",
			"GET /api/users/city/{city}": "Get users by city",
			"GET /api/users/job/{job}":   "Get users by job",
			"POST /api/users":            "Create new user",
			"PUT /api/users/{id}":        "Update user by ID",
			"DELETE /api/users/{id}":     "Delete user by ID",
		},
	})
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   s.config.App.Name,
		"version":   s.config.App.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.users.Ready(c.Request().Context()); err != nil {
		s.logger.Warnw("Readiness check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "storage_unavailable",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ready",
		"users":  s.users.Count(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)
	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// customErrorHandler renders every error that reaches Echo as an error envelope
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			message = http.StatusText(code)
			if text, ok := he.Message.(string); ok && text != "" {
				message = text
			}
		}

		switch code {
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			code = http.StatusNotFound
			message = "Endpoint not found"
		case http.StatusInternalServerError:
			message = "Internal server error"
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		var sendErr error
		if c.Request().Method == http.MethodHead {
			sendErr = c.NoContent(code)
		} else {
			sendErr = c.JSON(code, httpHandlers.ErrorEnvelope(message, code))
		}
		if sendErr != nil {
			logger.Errorw("Error sending response", "error", sendErr)
		}
	}
}
