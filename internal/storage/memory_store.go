package storage

import (
	"context"
	"sync"

	"github.com/1broseidon/sparkreport/pkg/models"
)

// MemoryStore keeps records in process. It backs tests, demos and the
// default configuration.
type MemoryStore struct {
	records map[string][]*models.Record
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory source
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]*models.Record),
	}
}

// StoreRecord stores a copy of rec, replacing any record of the same model
// with the same ID
func (ms *MemoryStore) StoreRecord(ctx context.Context, rec *models.Record) error {
	stored, err := prepareRecord(rec)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	records := ms.records[stored.Model]
	replaced := false
	for i, existing := range records {
		if existing.ID == stored.ID {
			records[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		ms.records[stored.Model] = append(records, stored)
	}

	rec.ID = stored.ID
	return nil
}

// Aggregate buckets the model's records in process
func (ms *MemoryStore) Aggregate(ctx context.Context, q models.AggregateQuery) ([]models.PeriodPoint, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return bucketRecords(ms.records[q.Model], q), nil
}

// Count returns the number of records stored for a model
func (ms *MemoryStore) Count(model string) int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.records[model])
}

// Ping always succeeds
func (ms *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close does nothing
func (ms *MemoryStore) Close() error {
	return nil
}

// Capabilities returns the capabilities of the in-memory backend
func (ms *MemoryStore) Capabilities() BackendCapabilities {
	return BackendCapabilities{
		Backend:             BackendMemory,
		SupportsRecordWrite: true,
		InProcess:           true,
	}
}
