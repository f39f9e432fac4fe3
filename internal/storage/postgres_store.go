package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/1broseidon/sparkreport/internal/logging"
	"github.com/1broseidon/sparkreport/pkg/models"
)

// PostgresStore implements Source over operator-owned PostgreSQL tables.
// The model names the table; grouping is done with date_trunc.
type PostgresStore struct {
	pool   *pgxpool.Pool
	db     DB
	logger *logging.Logger
}

// NewPostgresStore creates a PostgreSQL-backed source
func NewPostgresStore(ctx context.Context, connString string, maxConns int32, logger *logging.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	// Connection pool settings
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	// date_trunc on timestamptz truncates in the session time zone
	config.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithComponent(logging.ComponentStorage).
		WithEvent(logging.EventSourceOpened).
		WithField("backend", string(BackendPostgres)).
		Info("PostgreSQL source initialized successfully")

	return &PostgresStore{
		pool:   pool,
		db:     NewPgxDB(pool),
		logger: logger,
	}, nil
}

// NewPostgresStoreWithDB builds a source over an existing DB handle
func NewPostgresStoreWithDB(db DB, logger *logging.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// buildPostgresQuery renders the grouped aggregation for q
func buildPostgresQuery(q models.AggregateQuery) (string, []any) {
	date := quoteIdentifier(q.DateColumn)

	where := &whereBuilder{style: dollarPlaceholders}
	where.add(date, ">=", q.Since)
	where.add(date, "<", q.Until)
	where.conditions(q.Conditions)

	value := aggregateExpr(q, func(expr string) string { return expr + "::text" })

	query := fmt.Sprintf(`
SELECT
    date_trunc('%s', %s) AS period,
    %s AS value
FROM %s
WHERE %s
GROUP BY 1
ORDER BY 1`, q.Grouping, date, value, quoteIdentifier(q.Model), where)

	return query, where.args
}

// Aggregate runs one date_trunc GROUP BY query
func (ps *PostgresStore) Aggregate(ctx context.Context, q models.AggregateQuery) ([]models.PeriodPoint, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	query, args := buildPostgresQuery(q)

	rows, err := ps.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Model, err)
	}

	return scanPeriodRows(rows)
}

// Ping checks database connectivity
func (ps *PostgresStore) Ping(ctx context.Context) error {
	if ps.pool == nil {
		return nil
	}
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool
func (ps *PostgresStore) Close() error {
	if ps.pool != nil {
		ps.pool.Close()
	}
	ps.logger.WithComponent(logging.ComponentStorage).
		WithEvent(logging.EventSourceClosed).
		Info("PostgreSQL connection pool closed")
	return nil
}

// Capabilities returns the capabilities of the PostgreSQL backend
func (ps *PostgresStore) Capabilities() BackendCapabilities {
	return BackendCapabilities{
		Backend:             BackendPostgres,
		NativeGrouping:      true,
		SupportsRecordWrite: false,
		SupportsRetention:   false,
		ReadOnly:            true,
	}
}
