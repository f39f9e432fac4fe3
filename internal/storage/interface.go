package storage

import (
	"context"
	"errors"

	"github.com/1broseidon/sparkreport/pkg/models"
)

// Source is the interface all data source backends must implement. A source
// answers exactly one query shape: records of a model, filtered by conditions
// and a half-open date range, grouped by a truncation of the date column.
type Source interface {
	// Aggregate returns one point per non-empty period, in any order.
	// Periods without matching records are absent.
	Aggregate(ctx context.Context, q models.AggregateQuery) ([]models.PeriodPoint, error)

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error

	// Capabilities reporting
	Capabilities() BackendCapabilities
}

// RecordWriter is implemented by schemaless backends that accept records
// through the ingestion endpoint and the seed tool
type RecordWriter interface {
	StoreRecord(ctx context.Context, rec *models.Record) error
}

// BackendCapabilities describes what features a storage backend supports
type BackendCapabilities struct {
	Backend             BackendType
	NativeGrouping      bool // periods are computed by the backend's query engine
	SupportsRecordWrite bool
	SupportsRetention   bool
	ReadOnly            bool
	InProcess           bool // data lives only as long as the process
}

var (
	// ErrNotSupported is returned when a backend doesn't support an operation
	ErrNotSupported = errors.New("operation not supported by this backend")

	// ErrInvalidQuery is returned when an aggregate query cannot be issued safely
	ErrInvalidQuery = errors.New("invalid aggregate query")
)
