package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/1broseidon/sparkreport/internal/config"
	"github.com/1broseidon/sparkreport/internal/logging"
	"github.com/1broseidon/sparkreport/internal/report"
	"github.com/1broseidon/sparkreport/internal/storage"
)

const defaultRequestTimeout = 30 * time.Second

// Server represents the API server
type Server struct {
	app           *fiber.App
	config        *config.Config
	logger        *logging.Logger
	registry      *report.Registry
	source        storage.Source
	prometheusReg prometheus.Registerer
}

// NewServer creates a new API server exposing the reports in registry
func NewServer(cfg *config.Config, logger *logging.Logger, prometheusReg prometheus.Registerer, registry *report.Registry, source storage.Source) *Server {
	requestTimeout := cfg.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	// Create Fiber app with configuration
	app := fiber.New(fiber.Config{
		AppName:               "sparkreport v1.0",
		DisableStartupMessage: true,
		ServerHeader:          "sparkreport",
		ErrorHandler:          errorHandler(logger),
		ReadTimeout:           requestTimeout,
		WriteTimeout:          requestTimeout,
		IdleTimeout:           120 * time.Second,
		ReadBufferSize:        8192, // 8KB buffer for request headers
	})

	s := &Server{
		app:           app,
		config:        cfg,
		logger:        logger,
		registry:      registry,
		source:        source,
		prometheusReg: prometheusReg,
	}

	// Setup middleware
	s.setupMiddleware(requestTimeout)

	// Setup routes
	s.setupRoutes()

	return s
}

// setupMiddleware configures Fiber middleware
func (s *Server) setupMiddleware(requestTimeout time.Duration) {
	// Recovery middleware
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request logger middleware
	s.app.Use(logger.New(logger.Config{
		Format: "${time} | ${status} | ${latency} | ${method} ${path}\n",
	}))

	// CORS middleware
	corsOrigins := "*"
	if len(s.config.Server.CORSOrigins) > 0 {
		corsOrigins = strings.Join(s.config.Server.CORSOrigins, ",")
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Report queries run under the request context
	s.app.Use(timeout.NewWithContext(func(c *fiber.Ctx) error {
		return c.Next()
	}, requestTimeout))
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health and metrics endpoints
	s.app.Get("/health", s.healthHandler)
	s.app.Get("/ready", s.readyHandler)
	s.app.Get("/metrics", s.metricsHandler)

	// API v1 routes
	api := s.app.Group("/api/v1")

	api.Get("/config", s.getConfigHandler)
	api.Get("/reports", s.listReportsHandler)

	// Model endpoints
	api.Get("/models/:model/reports", s.runModelReportsHandler)
	api.Get("/models/:model/reports/:method", s.runReportHandler)
	api.Post("/models/:model/records", s.storeRecordHandler)
}

// Start starts the server
func (s *Server) Start() error {
	address := s.config.Server.Host + ":" + s.config.Server.Port

	s.logger.WithComponent(logging.ComponentAPI).
		WithEvent(logging.EventServerStart).
		WithFields(map[string]interface{}{
			"address": address,
		}).
		Info("Starting HTTP server")

	return s.app.Listen(address)
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.logger.WithComponent(logging.ComponentAPI).
		WithEvent(logging.EventServerStop).
		Info("Stopping HTTP server")
	return s.app.Shutdown()
}

// errorHandler handles Fiber errors
func errorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		// Check if it's a Fiber error
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		// Log the error
		logger.WithComponent(logging.ComponentAPI).
			WithFields(map[string]interface{}{
				"method": c.Method(),
				"path":   c.Path(),
				"status": code,
			}).
			WithError(err).
			Error("HTTP request error")

		// Return error response
		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": err.Error(),
		})
	}
}
