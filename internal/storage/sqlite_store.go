package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/1broseidon/sparkreport/internal/logging"
	"github.com/1broseidon/sparkreport/pkg/models"
)

// SQLiteStore implements Source over an operator-owned SQLite database.
// Date columns hold text timestamps in any layout strftime understands.
type SQLiteStore struct {
	db     *sqlx.DB
	path   string
	logger *logging.Logger
}

// sqliteRow is one group of the aggregation result. Both columns are TEXT so
// scanning does not depend on the column affinity of the source table.
type sqliteRow struct {
	Period string `db:"period"`
	Value  string `db:"value"`
}

// NewSQLiteStore opens the database at path
func NewSQLiteStore(ctx context.Context, path string, logger *logging.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Every connection to ":memory:" is a separate database
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	logger.WithComponent(logging.ComponentStorage).
		WithEvent(logging.EventSourceOpened).
		WithFields(map[string]interface{}{
			"backend": string(BackendSQLite),
			"path":    path,
		}).
		Info("SQLite source initialized")

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// sqliteBucket returns the strftime expression producing an RFC 3339 period
// start. Weeks move forward to Sunday and back six days to land on Monday.
func sqliteBucket(g models.Grouping, column string) string {
	switch g {
	case models.GroupingHour:
		return fmt.Sprintf("strftime('%%Y-%%m-%%dT%%H:00:00Z', %s)", column)
	case models.GroupingWeek:
		return fmt.Sprintf("strftime('%%Y-%%m-%%dT00:00:00Z', %s, 'weekday 0', '-6 days')", column)
	case models.GroupingMonth:
		return fmt.Sprintf("strftime('%%Y-%%m-01T00:00:00Z', %s)", column)
	default:
		return fmt.Sprintf("strftime('%%Y-%%m-%%dT00:00:00Z', %s)", column)
	}
}

// buildSQLiteQuery renders the grouped aggregation for q. The range is
// compared in unix seconds so time zone suffixes in stored text do not break
// the ordering.
func buildSQLiteQuery(q models.AggregateQuery) (string, []any) {
	date := quoteIdentifier(q.DateColumn)
	epoch := fmt.Sprintf("CAST(strftime('%%s', %s) AS INTEGER)", date)

	where := &whereBuilder{style: questionPlaceholders}
	where.add(epoch, ">=", q.Since.Unix())
	where.add(epoch, "<", q.Until.Unix())
	where.conditions(q.Conditions)

	value := aggregateExpr(q, func(expr string) string { return "CAST(" + expr + " AS TEXT)" })

	query := fmt.Sprintf(`
SELECT
    %s AS period,
    %s AS value
FROM %s
WHERE %s
GROUP BY period
ORDER BY period`, sqliteBucket(q.Grouping, date), value, quoteIdentifier(q.Model), where)

	return query, where.args
}

// Aggregate runs one strftime GROUP BY query
func (ss *SQLiteStore) Aggregate(ctx context.Context, q models.AggregateQuery) ([]models.PeriodPoint, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	query, args := buildSQLiteQuery(q)

	var rows []sqliteRow
	if err := ss.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Model, err)
	}

	points := make([]models.PeriodPoint, 0, len(rows))
	for _, row := range rows {
		period, err := time.Parse(time.RFC3339, row.Period)
		if err != nil {
			return nil, fmt.Errorf("failed to parse period %q: %w", row.Period, err)
		}

		value, err := parseAggregateValue(row.Value)
		if err != nil {
			return nil, err
		}

		points = append(points, models.PeriodPoint{Period: period.UTC(), Value: value})
	}

	return points, nil
}

// Ping checks the database handle
func (ss *SQLiteStore) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the database
func (ss *SQLiteStore) Close() error {
	ss.logger.WithComponent(logging.ComponentStorage).
		WithEvent(logging.EventSourceClosed).
		Info("Closing SQLite database")
	return ss.db.Close()
}

// Capabilities returns the capabilities of the SQLite backend
func (ss *SQLiteStore) Capabilities() BackendCapabilities {
	return BackendCapabilities{
		Backend:        BackendSQLite,
		NativeGrouping: true,
		ReadOnly:       true,
	}
}
