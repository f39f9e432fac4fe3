package storage

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/1broseidon/sparkreport/pkg/models"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be used as a model or column name.
// Identifiers are interpolated into SQL and key names, values never are.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// validateQuery rejects queries a backend must not execute
func validateQuery(q models.AggregateQuery) error {
	if !ValidIdentifier(q.Model) {
		return fmt.Errorf("%w: model %q is not a valid identifier", ErrInvalidQuery, q.Model)
	}
	if !ValidIdentifier(q.DateColumn) {
		return fmt.Errorf("%w: date column %q is not a valid identifier", ErrInvalidQuery, q.DateColumn)
	}
	if !q.Grouping.Valid() {
		return fmt.Errorf("%w: unsupported grouping %q", ErrInvalidQuery, q.Grouping)
	}
	switch q.Aggregation {
	case models.AggregationCount:
	case models.AggregationSum:
		if !ValidIdentifier(q.ValueColumn) {
			return fmt.Errorf("%w: value column %q is not a valid identifier", ErrInvalidQuery, q.ValueColumn)
		}
	default:
		return fmt.Errorf("%w: unsupported aggregation %q", ErrInvalidQuery, q.Aggregation)
	}
	if !q.Since.Before(q.Until) {
		return fmt.Errorf("%w: empty date range [%s, %s)", ErrInvalidQuery, q.Since, q.Until)
	}
	for _, cond := range q.Conditions {
		if !ValidIdentifier(cond.Column) {
			return fmt.Errorf("%w: condition column %q is not a valid identifier", ErrInvalidQuery, cond.Column)
		}
		if !cond.Op.Valid() {
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, cond.Op)
		}
	}
	return nil
}

// placeholderStyle selects how bound parameters are written
type placeholderStyle int

const (
	dollarPlaceholders   placeholderStyle = iota // $1, $2 (PostgreSQL)
	questionPlaceholders                         // ?, ? (SQLite, ClickHouse)
)

func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

// whereBuilder accumulates a conjunction of predicates and their arguments
type whereBuilder struct {
	style   placeholderStyle
	clauses []string
	args    []any
}

func (w *whereBuilder) placeholder() string {
	if w.style == dollarPlaceholders {
		return "$" + strconv.Itoa(len(w.args)+1)
	}
	return "?"
}

// add appends "expr op ?" binding value
func (w *whereBuilder) add(expr, op string, value any) {
	w.clauses = append(w.clauses, fmt.Sprintf("%s %s %s", expr, op, w.placeholder()))
	w.args = append(w.args, value)
}

func (w *whereBuilder) conditions(conds models.Conditions) {
	for _, cond := range conds {
		w.add(quoteIdentifier(cond.Column), cond.Op.SQL(), cond.Value)
	}
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return "1 = 1"
	}
	return strings.Join(w.clauses, " AND ")
}

// aggregateExpr returns the SQL that reduces one group, formatted by cast
func aggregateExpr(q models.AggregateQuery, cast func(string) string) string {
	if q.Aggregation == models.AggregationSum {
		return cast(fmt.Sprintf("COALESCE(SUM(%s), 0)", quoteIdentifier(q.ValueColumn)))
	}
	return cast("COUNT(*)")
}

// bucketRecords reduces records in process for backends that store raw
// records. Records outside the range, failing a condition or missing the
// date column are skipped. A missing value column contributes zero to a sum.
func bucketRecords(records []*models.Record, q models.AggregateQuery) []models.PeriodPoint {
	buckets := make(map[int64]decimal.Decimal)

	for _, rec := range records {
		if rec == nil {
			continue
		}
		ts, ok := rec.Time(q.DateColumn)
		if !ok || !q.InRange(ts) {
			continue
		}
		if !q.Conditions.Matches(rec) {
			continue
		}

		key := q.Grouping.Truncate(ts).Unix()
		current := buckets[key]
		switch q.Aggregation {
		case models.AggregationCount:
			buckets[key] = current.Add(decimal.NewFromInt(1))
		case models.AggregationSum:
			value, _ := rec.Number(q.ValueColumn)
			buckets[key] = current.Add(value)
		}
	}

	points := make([]models.PeriodPoint, 0, len(buckets))
	for key, value := range buckets {
		points = append(points, models.PeriodPoint{
			Period: unixUTC(key),
			Value:  value,
		})
	}
	sortPoints(points)
	return points
}

func unixUTC(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func sortPoints(points []models.PeriodPoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Period.Before(points[j].Period)
	})
}

// parseAggregateValue parses the textual aggregate SQL backends return.
// NULL sums arrive as an empty string.
func parseAggregateValue(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse aggregate value %q: %w", s, err)
	}
	return value, nil
}
