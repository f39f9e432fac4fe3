package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/1broseidon/sparkreport/internal/logging"
	"github.com/1broseidon/sparkreport/pkg/models"
)

func newTestLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewNopLogger()
}

func utc(s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return ts.UTC()
}

func countQuery(model string, grouping models.Grouping, since, until string) models.AggregateQuery {
	return models.AggregateQuery{
		Model:       model,
		DateColumn:  "created_at",
		Aggregation: models.AggregationCount,
		Grouping:    grouping,
		Since:       utc(since),
		Until:       utc(until),
	}
}

// fixtureRecords is the data set shared by the backend tests. 2026-10-12 is
// a Monday.
func fixtureRecords() []*models.Record {
	return []*models.Record{
		{Model: "users", Attributes: map[string]any{"created_at": "2026-10-12T09:00:00Z", "status": "active", "amount": 10.0}},
		{Model: "users", Attributes: map[string]any{"created_at": "2026-10-12T09:30:00Z", "status": "active", "amount": 5.5}},
		{Model: "users", Attributes: map[string]any{"created_at": "2026-10-14 23:59:59", "status": "inactive", "amount": 2.0}},
		{Model: "users", Attributes: map[string]any{"created_at": "2026-10-18T12:00:00+00:00", "status": "active", "amount": 1.0}},
		{Model: "users", Attributes: map[string]any{"created_at": "2026-10-19T00:00:00Z", "status": "active", "amount": 4.0}},
		{Model: "users", Attributes: map[string]any{"created_at": "2026-09-30T23:00:00Z", "status": "active", "amount": 7.0}},
	}
}

type expectedPoint struct {
	period string
	value  string
}

func assertPoints(t *testing.T, got []models.PeriodPoint, want []expectedPoint) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("expected %d points, got %d: %v", len(want), len(got), got)
	}

	for i, w := range want {
		if !got[i].Period.Equal(utc(w.period)) {
			t.Errorf("point %d: expected period %s, got %s", i, w.period, got[i].Period)
		}
		if !got[i].Value.Equal(decimal.RequireFromString(w.value)) {
			t.Errorf("point %d: expected value %s, got %s", i, w.value, got[i].Value)
		}
	}
}

// storeTwice writes the same record ID twice with different creation days
func storeTwice(t *testing.T, w RecordWriter) {
	t.Helper()

	for _, createdAt := range []string{"2026-10-10T08:00:00Z", "2026-10-12T08:00:00Z"} {
		rec := &models.Record{ID: "u1", Model: "users", Attributes: map[string]any{"created_at": createdAt}}
		if err := w.StoreRecord(context.Background(), rec); err != nil {
			t.Fatalf("StoreRecord returned error: %v", err)
		}
	}
}
