package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestGroupingTruncate(t *testing.T) {
	// Wednesday
	ts := time.Date(2026, 10, 14, 15, 42, 7, 123, time.UTC)

	tests := []struct {
		grouping Grouping
		expected time.Time
	}{
		{GroupingHour, time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)},
		{GroupingDay, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)},
		{GroupingWeek, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{GroupingMonth, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.grouping), func(t *testing.T) {
			if got := tt.grouping.Truncate(ts); !got.Equal(tt.expected) {
				t.Fatalf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestGroupingTruncateWeekStartsOnMonday(t *testing.T) {
	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

	for offset := 0; offset < 7; offset++ {
		day := monday.AddDate(0, 0, offset).Add(23 * time.Hour)
		if got := GroupingWeek.Truncate(day); !got.Equal(monday) {
			t.Errorf("%s (%s): expected week start %s, got %s", day, day.Weekday(), monday, got)
		}
	}

	// Sunday belongs to the week that started six days earlier
	sunday := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	if got := GroupingWeek.Truncate(sunday); !got.Equal(monday) {
		t.Fatalf("expected Sunday to truncate to %s, got %s", monday, got)
	}

	nextMonday := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	if got := GroupingWeek.Truncate(nextMonday); !got.Equal(nextMonday) {
		t.Fatalf("expected Monday midnight to start its own week, got %s", got)
	}
}

func TestGroupingTruncateConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	ts := time.Date(2026, 10, 15, 1, 30, 0, 0, loc) // 2026-10-14 22:30 UTC

	got := GroupingDay.Truncate(ts)
	expected := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(expected) || got.Location() != time.UTC {
		t.Fatalf("expected %s in UTC, got %s", expected, got)
	}
}

func TestGroupingAdd(t *testing.T) {
	tests := []struct {
		name     string
		grouping Grouping
		start    time.Time
		n        int
		expected time.Time
	}{
		{"hour back across midnight", GroupingHour, time.Date(2026, 10, 14, 1, 0, 0, 0, time.UTC), -2, time.Date(2026, 10, 13, 23, 0, 0, 0, time.UTC)},
		{"day forward across month", GroupingDay, time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC), 1, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)},
		{"week back", GroupingWeek, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), -2, time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC)},
		{"month back across year", GroupingMonth, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), -3, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.grouping.Add(tt.start, tt.n); !got.Equal(tt.expected) {
				t.Fatalf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestGroupingRange(t *testing.T) {
	now := time.Date(2026, 1, 20, 8, 0, 0, 0, time.UTC)

	periods := GroupingMonth.Range(now, 3)
	expected := []time.Time{
		time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if len(periods) != len(expected) {
		t.Fatalf("expected %d periods, got %d", len(expected), len(periods))
	}
	for i := range expected {
		if !periods[i].Equal(expected[i]) {
			t.Errorf("period %d: expected %s, got %s", i, expected[i], periods[i])
		}
	}

	if got := GroupingDay.Range(now, 0); got != nil {
		t.Fatalf("expected nil range for limit 0, got %v", got)
	}
}

func TestGroupingValid(t *testing.T) {
	for _, g := range []Grouping{GroupingHour, GroupingDay, GroupingWeek, GroupingMonth} {
		if !g.Valid() {
			t.Errorf("expected %s to be valid", g)
		}
	}
	for _, g := range []Grouping{"", "minute", "year", "Day"} {
		if g.Valid() {
			t.Errorf("expected %q to be invalid", g)
		}
	}
}

func TestConditionsAndDoesNotAlias(t *testing.T) {
	base := make(Conditions, 1, 4)
	base[0] = Condition{Column: "status", Op: OpEq, Value: "active"}

	first := base.And(Conditions{{Column: "plan", Op: OpEq, Value: "pro"}})
	second := base.And(Conditions{{Column: "plan", Op: OpEq, Value: "free"}})

	if len(base) != 1 {
		t.Fatalf("expected base to keep one condition, got %d", len(base))
	}
	if first[1].Value != "pro" || second[1].Value != "free" {
		t.Fatalf("merged conditions share storage: first=%v second=%v", first, second)
	}
}

func TestConditionMatches(t *testing.T) {
	rec := &Record{Attributes: map[string]any{
		"status":     "active",
		"visits":     float64(12),
		"created_at": "2026-10-14T10:00:00Z",
		"admin":      false,
	}}

	tests := []struct {
		cond     Condition
		expected bool
	}{
		{Condition{"status", OpEq, "active"}, true},
		{Condition{"status", OpNe, "active"}, false},
		{Condition{"visits", OpGt, "10"}, true},
		{Condition{"visits", OpLte, 11}, false},
		{Condition{"visits", OpEq, "12.0"}, true},
		{Condition{"created_at", OpGte, "2026-10-14"}, true},
		{Condition{"created_at", OpLt, time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}, false},
		{Condition{"admin", OpEq, "false"}, true},
		{Condition{"missing", OpEq, "x"}, false},
		{Condition{"missing", OpNe, "x"}, true},
	}

	for _, tt := range tests {
		if got := tt.cond.Matches(rec); got != tt.expected {
			t.Errorf("%+v: expected %v, got %v", tt.cond, tt.expected, got)
		}
	}

	all := Conditions{{"status", OpEq, "active"}, {"visits", OpGte, 12}}
	if !all.Matches(rec) {
		t.Fatalf("expected conjunction to match")
	}
	if !(Conditions{}).Matches(rec) {
		t.Fatalf("expected empty conditions to match everything")
	}
}

func TestParseCondition(t *testing.T) {
	cond, err := ParseCondition("created_at:GTE:2026-10-01T00:00:00Z")
	if err != nil {
		t.Fatalf("ParseCondition returned error: %v", err)
	}
	if cond.Column != "created_at" || cond.Op != OpGte || cond.Value != "2026-10-01T00:00:00Z" {
		t.Fatalf("unexpected condition: %+v", cond)
	}

	for _, bad := range []string{"", "status", "status:eq", ":eq:x", "status:like:x"} {
		if _, err := ParseCondition(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestRecordHelpers(t *testing.T) {
	rec := &Record{Attributes: map[string]any{
		"created_at": "2026-10-14 10:00:00",
		"amount":     "19.99",
		"count":      3,
	}}

	ts, ok := rec.Time("created_at")
	if !ok || !ts.Equal(time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v %v", ts, ok)
	}

	amount, ok := rec.Number("amount")
	if !ok || !amount.Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("unexpected amount: %v %v", amount, ok)
	}

	if _, ok := rec.Time("amount"); ok {
		t.Fatalf("expected amount not to parse as time")
	}

	columns := rec.TimeColumns()
	if len(columns) != 1 || columns[0] != "created_at" {
		t.Fatalf("expected only created_at as time column, got %v", columns)
	}
}
