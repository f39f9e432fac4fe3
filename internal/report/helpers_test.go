package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/1broseidon/sparkreport/pkg/models"
)

// fakeSource returns canned points and remembers every query it receives
type fakeSource struct {
	mu      sync.Mutex
	points  []models.PeriodPoint
	err     error
	queries []models.AggregateQuery
}

func (f *fakeSource) Aggregate(ctx context.Context, q models.AggregateQuery) ([]models.PeriodPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.PeriodPoint(nil), f.points...), nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeSource) lastQuery(t *testing.T) models.AggregateQuery {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		t.Fatal("expected the source to be queried")
	}
	return f.queries[len(f.queries)-1]
}

func utc(s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return ts.UTC()
}

func fixedClock(s string) Option {
	now := utc(s)
	return WithClock(func() time.Time { return now })
}

func point(period string, value int64) models.PeriodPoint {
	return models.PeriodPoint{Period: utc(period), Value: decimal.NewFromInt(value)}
}

func newTestReport(cfg Config, src Source, now string) *Report {
	return New("users", "registrations", cfg, src, fixedClock(now))
}

func assertSeries(t *testing.T, got []models.PeriodPoint, want []models.PeriodPoint) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("expected %d points, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Period.Equal(want[i].Period) || !got[i].Value.Equal(want[i].Value) {
			t.Errorf("point %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func assertDense(t *testing.T, grouping models.Grouping, points []models.PeriodPoint, limit int) {
	t.Helper()

	if len(points) != limit {
		t.Fatalf("expected %d points, got %d", limit, len(points))
	}
	for i := 1; i < len(points); i++ {
		if expected := grouping.Add(points[i-1].Period, 1); !points[i].Period.Equal(expected) {
			t.Fatalf("point %d: expected period %s after %s, got %s", i, expected, points[i-1].Period, points[i].Period)
		}
	}
}
