package api

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/1broseidon/sparkreport/internal/logging"
	"github.com/1broseidon/sparkreport/internal/report"
	"github.com/1broseidon/sparkreport/internal/storage"
	"github.com/1broseidon/sparkreport/pkg/models"
)

// healthHandler handles health check requests
func (s *Server) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "sparkreport",
		"version": "1.0.0",
	})
}

// readyHandler reports ready once the data source answers
func (s *Server) readyHandler(c *fiber.Ctx) error {
	if err := s.source.Ping(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
			"checks": fiber.Map{
				"config": "ok",
				"source": err.Error(),
			},
		})
	}

	return c.JSON(fiber.Map{
		"status": "ready",
		"checks": fiber.Map{
			"config": "ok",
			"source": "ok",
		},
	})
}

// metricsHandler handles Prometheus metrics endpoint
func (s *Server) metricsHandler(c *fiber.Ctx) error {
	// Set content type for Prometheus metrics
	c.Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Create a buffer to capture the metrics
	var buf bytes.Buffer

	// Create a fake HTTP request and response writer
	req, _ := http.NewRequest("GET", "/metrics", nil)
	rw := &responseWriter{Buffer: &buf, header: make(http.Header)}

	// Get the Prometheus handler for our custom registry and call it
	gatherer, ok := s.prometheusReg.(prometheus.Gatherer)
	if !ok {
		return c.Status(500).SendString("Error: registry does not implement Gatherer interface")
	}
	handler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	handler.ServeHTTP(rw, req)

	// Return the captured metrics
	return c.SendString(buf.String())
}

// responseWriter is a simple implementation of http.ResponseWriter for capturing metrics
type responseWriter struct {
	*bytes.Buffer
	header http.Header
}

func (rw *responseWriter) Header() http.Header {
	return rw.header
}

func (rw *responseWriter) WriteHeader(statusCode int) {}

func (rw *responseWriter) Write(data []byte) (int, error) {
	return rw.Buffer.Write(data)
}

// getConfigHandler returns current configuration (sanitized)
func (s *Server) getConfigHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"server": fiber.Map{
			"port": s.config.Server.Port,
			"host": s.config.Server.Host,
		},
		"metrics": s.config.Metrics,
		"logging": fiber.Map{
			"level":  s.config.Logging.Level,
			"format": s.config.Logging.Format,
		},
		"storage": fiber.Map{
			"backend": s.config.Storage.Backend,
		},
		"reporting": s.config.Reporting,
		"models":    len(s.config.Models),
	})
}

// listReportsHandler returns every registered report
func (s *Server) listReportsHandler(c *fiber.Ctx) error {
	descriptors := s.registry.Descriptors()
	if descriptors == nil {
		descriptors = []report.Descriptor{}
	}

	return c.JSON(fiber.Map{
		"reports": descriptors,
		"total":   len(descriptors),
	})
}

// runReportHandler runs one report, e.g.
// GET /api/v1/models/users/reports/registrations_report?where=plan:eq:pro
func (s *Server) runReportHandler(c *fiber.Ctx) error {
	model := c.Params("model")
	method := c.Params("method")

	filters, err := parseFilters(c)
	if err != nil {
		return s.reportError(c, model, method, err)
	}

	descriptor, err := s.registry.Describe(model, method)
	if err != nil {
		return s.reportError(c, model, method, err)
	}

	points, err := s.registry.Invoke(c.UserContext(), model, method, filters...)
	if err != nil {
		return s.reportError(c, model, method, err)
	}

	return c.JSON(newReportResponse(descriptor, points))
}

// runModelReportsHandler runs every report of a model with the same filter
func (s *Server) runModelReportsHandler(c *fiber.Ctx) error {
	model := c.Params("model")

	filters, err := parseFilters(c)
	if err != nil {
		return s.reportError(c, model, "", err)
	}

	descriptors, err := s.registry.ModelDescriptors(model)
	if err != nil {
		return s.reportError(c, model, "", err)
	}

	results, err := s.registry.RunAll(c.UserContext(), model, filters...)
	if err != nil {
		return s.reportError(c, model, "", err)
	}

	reports := make([]ReportResponse, 0, len(descriptors))
	for _, d := range descriptors {
		reports = append(reports, newReportResponse(d, results[d.Method]))
	}

	return c.JSON(fiber.Map{
		"model":   model,
		"reports": reports,
		"total":   len(reports),
	})
}

// storeRecordHandler writes one record to a source that accepts records
func (s *Server) storeRecordHandler(c *fiber.Ctx) error {
	model := c.Params("model")
	if !storage.ValidIdentifier(model) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"code":    "invalid_argument",
			"message": "model name must be a valid identifier",
		})
	}

	writer, ok := s.source.(storage.RecordWriter)
	if !ok {
		return notSupported(c)
	}

	var req RecordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"code":    "invalid_argument",
			"message": "Invalid request body",
			"detail":  err.Error(),
		})
	}
	if len(req.Attributes) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"code":    "invalid_argument",
			"message": "attributes are required",
		})
	}

	rec := &models.Record{ID: req.ID, Model: model, Attributes: req.Attributes}
	if err := writer.StoreRecord(c.UserContext(), rec); err != nil {
		if errors.Is(err, storage.ErrNotSupported) {
			return notSupported(c)
		}
		s.logger.WithComponent(logging.ComponentAPI).
			WithField("model", model).
			WithError(err).
			Error("Failed to store record")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   true,
			"code":    "source_error",
			"message": err.Error(),
		})
	}

	s.logger.WithComponent(logging.ComponentAPI).
		WithEvent(logging.EventRecordStored).
		WithFields(map[string]interface{}{
			"model": model,
			"id":    rec.ID,
		}).
		Debug("Record stored")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"record":  rec,
	})
}

func notSupported(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
		"error":   true,
		"code":    "not_supported",
		"message": "storage backend does not accept records",
	})
}

// parseFilters reads repeated where=column:op:value parameters into one filter
func parseFilters(c *fiber.Ctx) ([]models.Conditions, error) {
	raw := c.Context().QueryArgs().PeekMulti("where")
	if len(raw) == 0 {
		return nil, nil
	}

	filter := make(models.Conditions, 0, len(raw))
	for _, value := range raw {
		cond, err := models.ParseCondition(string(value))
		if err != nil {
			return nil, errors.Join(report.ErrInvalidArgument, err)
		}
		filter = append(filter, cond)
	}
	return []models.Conditions{filter}, nil
}

// errorStatus maps report errors to HTTP status codes
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, report.ErrInvalidArgument):
		return fiber.StatusBadRequest, "invalid_argument"
	case errors.Is(err, report.ErrReportNotFound):
		return fiber.StatusNotFound, "report_not_found"
	case errors.Is(err, report.ErrInvalidConfig):
		return fiber.StatusInternalServerError, "invalid_report_config"
	default:
		return fiber.StatusBadGateway, "source_error"
	}
}

func (s *Server) reportError(c *fiber.Ctx, model, method string, err error) error {
	status, code := errorStatus(err)

	if status >= fiber.StatusInternalServerError {
		s.logger.WithComponent(logging.ComponentAPI).
			WithFields(map[string]interface{}{
				"model":  model,
				"method": method,
				"code":   code,
			}).
			WithError(err).
			Error("Report request failed")
	}

	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"code":    code,
		"message": err.Error(),
	})
}

// API request and response models

// RecordRequest is the body of a record write
type RecordRequest struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

// PointResponse is one period of a report. Value marshals as a decimal
// string so sums are exact.
type PointResponse struct {
	Period string          `json:"period"`
	Value  decimal.Decimal `json:"value"`
}

// ReportResponse is a computed report
type ReportResponse struct {
	Model       string             `json:"model"`
	Report      string             `json:"report"`
	Grouping    models.Grouping    `json:"grouping"`
	Aggregation models.Aggregation `json:"aggregation"`
	Cumulative  bool               `json:"cumulative"`
	Points      []PointResponse    `json:"points"`
}

func newReportResponse(d report.Descriptor, points []models.PeriodPoint) ReportResponse {
	resp := ReportResponse{
		Model:       d.Model,
		Report:      d.Method,
		Grouping:    d.Config.Grouping,
		Aggregation: d.Config.Aggregation,
		Cumulative:  d.Cumulative,
		Points:      make([]PointResponse, len(points)),
	}
	for i, p := range points {
		resp.Points[i] = PointResponse{
			Period: p.Period.UTC().Format(time.RFC3339),
			Value:  p.Value,
		}
	}
	return resp
}
