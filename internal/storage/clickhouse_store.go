package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/1broseidon/sparkreport/internal/logging"
	"github.com/1broseidon/sparkreport/pkg/models"
)

// ClickHouseStore implements Source over operator-owned ClickHouse tables
type ClickHouseStore struct {
	conn   driver.Conn
	db     DB
	logger *logging.Logger
}

// NewClickHouseStore connects to ClickHouse and verifies the connection
func NewClickHouseStore(ctx context.Context, addr []string, database, username, password string, logger *logging.Logger) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: addr,
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	// Verify connection
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	logger.WithComponent(logging.ComponentStorage).
		WithEvent(logging.EventSourceOpened).
		WithFields(map[string]interface{}{
			"backend":  string(BackendClickHouse),
			"database": database,
		}).
		Info("ClickHouse source initialized successfully")

	return &ClickHouseStore{
		conn:   conn,
		db:     &clickhouseDB{conn: conn},
		logger: logger,
	}, nil
}

// NewClickHouseStoreWithDB builds a source over an existing DB handle
func NewClickHouseStoreWithDB(db DB, logger *logging.Logger) *ClickHouseStore {
	return &ClickHouseStore{db: db, logger: logger}
}

// clickhouseBucket returns the truncation function for a grouping. toMonday
// matches the Monday week start used everywhere else.
func clickhouseBucket(g models.Grouping, column string) string {
	switch g {
	case models.GroupingHour:
		return fmt.Sprintf("toStartOfHour(%s, 'UTC')", column)
	case models.GroupingWeek:
		return fmt.Sprintf("toDateTime(toMonday(%s, 'UTC'), 'UTC')", column)
	case models.GroupingMonth:
		return fmt.Sprintf("toDateTime(toStartOfMonth(%s, 'UTC'), 'UTC')", column)
	default:
		return fmt.Sprintf("toDateTime(toStartOfDay(%s, 'UTC'), 'UTC')", column)
	}
}

// buildClickHouseQuery renders the grouped aggregation for q
func buildClickHouseQuery(q models.AggregateQuery) (string, []any) {
	date := quoteIdentifier(q.DateColumn)

	where := &whereBuilder{style: questionPlaceholders}
	where.add(date, ">=", q.Since)
	where.add(date, "<", q.Until)
	where.conditions(q.Conditions)

	value := aggregateExpr(q, func(expr string) string { return "toString(" + expr + ")" })

	query := fmt.Sprintf(`
SELECT
    %s AS period,
    %s AS value
FROM %s
WHERE %s
GROUP BY period
ORDER BY period`, clickhouseBucket(q.Grouping, date), value, quoteIdentifier(q.Model), where)

	return query, where.args
}

// Aggregate runs one GROUP BY query
func (cs *ClickHouseStore) Aggregate(ctx context.Context, q models.AggregateQuery) ([]models.PeriodPoint, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	query, args := buildClickHouseQuery(q)

	rows, err := cs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Model, err)
	}

	return scanPeriodRows(rows)
}

// Ping checks ClickHouse connectivity
func (cs *ClickHouseStore) Ping(ctx context.Context) error {
	if cs.conn == nil {
		return nil
	}
	return cs.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (cs *ClickHouseStore) Close() error {
	cs.logger.WithComponent(logging.ComponentStorage).
		WithEvent(logging.EventSourceClosed).
		Info("Closing ClickHouse connection")
	if cs.conn == nil {
		return nil
	}
	return cs.conn.Close()
}

// Capabilities returns the capabilities of the ClickHouse backend
func (cs *ClickHouseStore) Capabilities() BackendCapabilities {
	return BackendCapabilities{
		Backend:        BackendClickHouse,
		NativeGrouping: true,
		ReadOnly:       true,
	}
}

type clickhouseDB struct {
	conn driver.Conn
}

func (c *clickhouseDB) QueryContext(ctx context.Context, query string, args ...any) (RowScanner, error) {
	return c.conn.Query(ctx, query, args...)
}
