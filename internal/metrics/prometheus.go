package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Report run statuses used as the status label
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all Prometheus metrics for sparkreport
type Metrics struct {
	// Counters
	ReportRunsTotal    *prometheus.CounterVec
	RecordsStoredTotal *prometheus.CounterVec

	// Gauges
	ReportPoints      *prometheus.GaugeVec
	ReportsRegistered *prometheus.GaugeVec
	LastConfigLoad    prometheus.Gauge

	// Histograms
	ReportDuration *prometheus.HistogramVec
	SourceDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReportRunsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparkreport_report_runs_total",
				Help: "Total number of report invocations",
			},
			[]string{"model", "report", "status"},
		),

		RecordsStoredTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparkreport_records_stored_total",
				Help: "Total number of records written through the ingestion endpoint",
			},
			[]string{"model"},
		),

		ReportPoints: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sparkreport_report_points",
				Help: "Number of points returned by the last successful run of a report",
			},
			[]string{"model", "report"},
		),

		ReportsRegistered: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sparkreport_reports_registered",
				Help: "Number of reports registered per model",
			},
			[]string{"model"},
		),

		LastConfigLoad: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "sparkreport_last_config_load_timestamp",
				Help: "Timestamp of the last configuration load",
			},
		),

		ReportDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sparkreport_report_duration_seconds",
				Help:    "Duration of report invocations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"model", "report"},
		),

		SourceDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sparkreport_source_query_duration_seconds",
				Help:    "Duration of aggregation queries against the data source in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"backend", "grouping"},
		),
	}

	return m
}

// RecordReportRun records one report invocation
func (m *Metrics) RecordReportRun(model, report string, points int, duration time.Duration, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}

	m.ReportRunsTotal.With(prometheus.Labels{
		"model":  model,
		"report": report,
		"status": status,
	}).Inc()

	m.ReportDuration.With(prometheus.Labels{
		"model":  model,
		"report": report,
	}).Observe(duration.Seconds())

	if err == nil {
		m.ReportPoints.With(prometheus.Labels{
			"model":  model,
			"report": report,
		}).Set(float64(points))
	}
}

// RecordSourceQuery records the latency of one aggregation query
func (m *Metrics) RecordSourceQuery(backend, grouping string, duration time.Duration) {
	m.SourceDuration.With(prometheus.Labels{
		"backend":  backend,
		"grouping": grouping,
	}).Observe(duration.Seconds())
}

// RecordStored records a record written for a model
func (m *Metrics) RecordStored(model string) {
	m.RecordsStoredTotal.With(prometheus.Labels{"model": model}).Inc()
}

// UpdateReportCounts sets the registered report count per model
func (m *Metrics) UpdateReportCounts(counts map[string]int) {
	m.ReportsRegistered.Reset()
	for model, count := range counts {
		m.ReportsRegistered.With(prometheus.Labels{"model": model}).Set(float64(count))
	}
}

// RecordConfigLoad records a configuration load
func (m *Metrics) RecordConfigLoad() {
	m.LastConfigLoad.SetToCurrentTime()
}
