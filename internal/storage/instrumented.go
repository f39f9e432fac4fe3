package storage

import (
	"context"
	"time"

	"github.com/1broseidon/sparkreport/internal/metrics"
	"github.com/1broseidon/sparkreport/pkg/models"
)

// InstrumentedSource records query latency for the wrapped source
type InstrumentedSource struct {
	Source
	metrics *metrics.Metrics
}

// Instrument wraps src so every Aggregate call is observed
func Instrument(src Source, m *metrics.Metrics) *InstrumentedSource {
	return &InstrumentedSource{Source: src, metrics: m}
}

// Aggregate delegates to the wrapped source and observes its duration
func (s *InstrumentedSource) Aggregate(ctx context.Context, q models.AggregateQuery) ([]models.PeriodPoint, error) {
	start := time.Now()
	points, err := s.Source.Aggregate(ctx, q)
	s.metrics.RecordSourceQuery(string(s.Source.Capabilities().Backend), string(q.Grouping), time.Since(start))
	return points, err
}

// StoreRecord delegates to the wrapped source when it accepts records
func (s *InstrumentedSource) StoreRecord(ctx context.Context, rec *models.Record) error {
	writer, ok := s.Source.(RecordWriter)
	if !ok {
		return ErrNotSupported
	}
	if err := writer.StoreRecord(ctx, rec); err != nil {
		return err
	}
	s.metrics.RecordStored(rec.Model)
	return nil
}
