// Package fixtures loads YAML record fixtures used to seed schemaless
// storage backends.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/sparkreport/internal/storage"
	"github.com/1broseidon/sparkreport/pkg/models"
)

// Fixture is the YAML document read by the seed tool
type Fixture struct {
	Records  []models.Record `yaml:"records"`
	Generate []Generator     `yaml:"generate"`
}

// Generator produces Count records of Model spread evenly over the Span
// ending at the seed time
type Generator struct {
	Model      string         `yaml:"model"`
	Count      int            `yaml:"count"`
	Span       time.Duration  `yaml:"span"`
	DateColumn string         `yaml:"dateColumn"`
	Attributes map[string]any `yaml:"attributes"`
}

// Load reads and validates a fixture file
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a fixture document
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	for i, rec := range f.Records {
		if !storage.ValidIdentifier(rec.Model) {
			return nil, fmt.Errorf("record %d: invalid model %q", i, rec.Model)
		}
	}

	for i, g := range f.Generate {
		if !storage.ValidIdentifier(g.Model) {
			return nil, fmt.Errorf("generator %d: invalid model %q", i, g.Model)
		}
		if g.Count <= 0 {
			return nil, fmt.Errorf("generator %d: count must be positive", i)
		}
		if g.Span < 0 {
			return nil, fmt.Errorf("generator %d: span cannot be negative", i)
		}
		if g.DateColumn != "" && !storage.ValidIdentifier(g.DateColumn) {
			return nil, fmt.Errorf("generator %d: invalid date column %q", i, g.DateColumn)
		}
	}

	return &f, nil
}

// Expand returns the literal records followed by the generated ones.
// Generated timestamps count back from now.
func (f *Fixture) Expand(now time.Time) []*models.Record {
	records := make([]*models.Record, 0, len(f.Records))
	for i := range f.Records {
		rec := f.Records[i]
		records = append(records, &models.Record{
			ID:         rec.ID,
			Model:      rec.Model,
			Attributes: copyAttributes(rec.Attributes),
		})
	}

	now = now.UTC()
	for _, g := range f.Generate {
		column := g.DateColumn
		if column == "" {
			column = "created_at"
		}

		step := time.Duration(0)
		if g.Count > 1 {
			step = g.Span / time.Duration(g.Count-1)
		}

		for i := 0; i < g.Count; i++ {
			attrs := copyAttributes(g.Attributes)
			attrs[column] = now.Add(-time.Duration(i) * step).Format(time.RFC3339)
			records = append(records, &models.Record{Model: g.Model, Attributes: attrs})
		}
	}

	return records
}

// ErrNotSeedable is returned for backends fixtures cannot be written to
var ErrNotSeedable = errors.New("storage backend cannot be seeded")

// Target returns the writer fixtures are applied to. Backends that do not
// accept records, or that keep them only in process, are rejected.
func Target(src storage.Source) (storage.RecordWriter, error) {
	caps := src.Capabilities()

	writer, ok := src.(storage.RecordWriter)
	if !ok || !caps.SupportsRecordWrite {
		return nil, fmt.Errorf("%w: %s does not accept records", ErrNotSeedable, caps.Backend)
	}
	if caps.InProcess {
		return nil, fmt.Errorf("%w: %s keeps records only in the seed process", ErrNotSeedable, caps.Backend)
	}
	return writer, nil
}

// Apply writes records and returns how many were stored per model
func Apply(ctx context.Context, w storage.RecordWriter, records []*models.Record) (map[string]int, error) {
	stored := make(map[string]int)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if err := w.StoreRecord(ctx, rec); err != nil {
			return stored, fmt.Errorf("failed to store %s record: %w", rec.Model, err)
		}
		stored[rec.Model]++
	}
	return stored, nil
}

func copyAttributes(attrs map[string]any) map[string]any {
	copied := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		copied[k] = v
	}
	return copied
}
