package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/1broseidon/sparkreport/pkg/models"
)

// RowScanner is the subset of a driver's row cursor the SQL backends read
type RowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DB issues a query and returns a row cursor
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (RowScanner, error)
}

// scanPeriodRows reads (period timestamp, textual aggregate) rows
func scanPeriodRows(rows RowScanner) ([]models.PeriodPoint, error) {
	defer rows.Close()

	var points []models.PeriodPoint
	for rows.Next() {
		var period time.Time
		var raw string
		if err := rows.Scan(&period, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}

		value, err := parseAggregateValue(raw)
		if err != nil {
			return nil, err
		}

		points = append(points, models.PeriodPoint{Period: period.UTC(), Value: value})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read aggregate rows: %w", err)
	}

	return points, nil
}

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool {
	return r.rows.Next()
}

func (r *pgxRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *pgxRows) Err() error {
	return r.rows.Err()
}

func (r *pgxRows) Close() error {
	r.rows.Close()
	return nil
}

type pgxDB struct {
	pool *pgxpool.Pool
}

// NewPgxDB adapts a pgx pool to DB
func NewPgxDB(pool *pgxpool.Pool) DB {
	return &pgxDB{pool: pool}
}

func (p *pgxDB) QueryContext(ctx context.Context, query string, args ...any) (RowScanner, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}
