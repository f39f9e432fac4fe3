package report

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/1broseidon/sparkreport/pkg/models"
)

func TestCumulatePrefixSums(t *testing.T) {
	in := []models.PeriodPoint{
		point("2026-10-11T00:00:00Z", 3),
		point("2026-10-12T00:00:00Z", 0),
		point("2026-10-13T00:00:00Z", 2),
		point("2026-10-14T00:00:00Z", 5),
	}

	got := Cumulate(in)

	assertSeries(t, got, []models.PeriodPoint{
		point("2026-10-11T00:00:00Z", 3),
		point("2026-10-12T00:00:00Z", 3),
		point("2026-10-13T00:00:00Z", 5),
		point("2026-10-14T00:00:00Z", 10),
	})

	// Input is left untouched
	if !in[3].Value.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected input to be unchanged, got %s", in[3].Value)
	}
}

func TestCumulateIsMonotonicForNonNegativeValues(t *testing.T) {
	values := []string{"0", "1.5", "0", "0", "12", "0.25"}
	in := make([]models.PeriodPoint, len(values))
	for i, v := range values {
		in[i] = models.PeriodPoint{
			Period: models.GroupingHour.Add(utc("2026-10-14T00:00:00Z"), i),
			Value:  decimal.RequireFromString(v),
		}
	}

	got := Cumulate(in)
	for i := 1; i < len(got); i++ {
		if got[i].Value.LessThan(got[i-1].Value) {
			t.Fatalf("point %d: %s decreased from %s", i, got[i].Value, got[i-1].Value)
		}
		if !got[i].Period.Equal(in[i].Period) {
			t.Fatalf("point %d: period changed from %s to %s", i, in[i].Period, got[i].Period)
		}
	}
	if !got[len(got)-1].Value.Equal(decimal.RequireFromString("13.75")) {
		t.Fatalf("expected total 13.75, got %s", got[len(got)-1].Value)
	}
}

func TestCumulateEmpty(t *testing.T) {
	if got := Cumulate(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestMakeReportCumulates(t *testing.T) {
	src := &fakeSource{points: []models.PeriodPoint{point("2026-10-12T00:00:00Z", 2)}}

	run := MakeReport("users", "total_users", Options{Grouping: models.GroupingDay, Limit: 3, Cumulate: true}, StandardDefaults(), src, fixedClock(now))
	points, err := run(context.Background())
	if err != nil {
		t.Fatalf("report returned error: %v", err)
	}

	assertSeries(t, points, []models.PeriodPoint{
		point("2026-10-12T00:00:00Z", 2),
		point("2026-10-13T00:00:00Z", 2),
		point("2026-10-14T00:00:00Z", 2),
	})
}

func TestMakeReportWithoutCumulate(t *testing.T) {
	src := &fakeSource{points: []models.PeriodPoint{point("2026-10-12T00:00:00Z", 2)}}

	run := MakeReport("users", "registrations", Options{Limit: 3}, StandardDefaults(), src, fixedClock(now))
	points, err := run(context.Background())
	if err != nil {
		t.Fatalf("report returned error: %v", err)
	}

	assertSeries(t, points, []models.PeriodPoint{
		point("2026-10-12T00:00:00Z", 2),
		point("2026-10-13T00:00:00Z", 0),
		point("2026-10-14T00:00:00Z", 0),
	})
}

func TestMakeReportCumulativePropagatesErrors(t *testing.T) {
	run := MakeReport("users", "total", Options{Aggregation: models.AggregationSum, Cumulate: true}, StandardDefaults(), &fakeSource{}, fixedClock(now))
	if _, err := run(context.Background()); err == nil {
		t.Fatal("expected configuration error from cumulative report")
	}
}
