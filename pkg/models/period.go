package models

import "time"

// Grouping is the width of the periods records are bucketed into
type Grouping string

const (
	GroupingHour  Grouping = "hour"
	GroupingDay   Grouping = "day"
	GroupingWeek  Grouping = "week"
	GroupingMonth Grouping = "month"
)

// Valid reports whether the grouping is one of the supported units
func (g Grouping) Valid() bool {
	switch g {
	case GroupingHour, GroupingDay, GroupingWeek, GroupingMonth:
		return true
	}
	return false
}

// Truncate returns the start of the period containing t, in UTC.
// Weeks start on Monday.
func (g Grouping) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case GroupingHour:
		return t.Truncate(time.Hour)
	case GroupingDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GroupingWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GroupingMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// Add moves a period start n units forward (or backward when n is negative).
// period must already be truncated.
func (g Grouping) Add(period time.Time, n int) time.Time {
	switch g {
	case GroupingHour:
		return period.Add(time.Duration(n) * time.Hour)
	case GroupingDay:
		return period.AddDate(0, 0, n)
	case GroupingWeek:
		return period.AddDate(0, 0, 7*n)
	case GroupingMonth:
		return period.AddDate(0, n, 0)
	}
	return period
}

// Range returns the limit consecutive period starts ending with the period
// that contains now, oldest first.
func (g Grouping) Range(now time.Time, limit int) []time.Time {
	if limit <= 0 {
		return nil
	}
	latest := g.Truncate(now)
	periods := make([]time.Time, limit)
	for i := 0; i < limit; i++ {
		periods[i] = g.Add(latest, i-(limit-1))
	}
	return periods
}
