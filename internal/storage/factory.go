package storage

import (
	"context"
	"fmt"

	"github.com/1broseidon/sparkreport/internal/config"
	"github.com/1broseidon/sparkreport/internal/logging"
)

// BackendType represents the type of storage backend
type BackendType string

const (
	// BackendMemory keeps records in process
	BackendMemory BackendType = "memory"
	// BackendBadger uses BadgerDB for embedded storage
	BackendBadger BackendType = "badger"
	// BackendRedis keeps records and time indexes in Redis
	BackendRedis BackendType = "redis"
	// BackendSQLite reads operator-owned SQLite tables
	BackendSQLite BackendType = "sqlite"
	// BackendPostgres reads operator-owned PostgreSQL tables
	BackendPostgres BackendType = "postgres"
	// BackendClickHouse reads operator-owned ClickHouse tables
	BackendClickHouse BackendType = "clickhouse"
	// BackendInfluxDB uses InfluxDB for time-series storage
	BackendInfluxDB BackendType = "influxdb"
)

// NewStore creates a new data source based on configuration
func NewStore(ctx context.Context, cfg *config.StorageConfig, logger *logging.Logger) (Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	backendType := BackendType(cfg.Backend)
	if backendType == "" {
		backendType = BackendMemory
	}

	switch backendType {
	case BackendMemory:
		logger.Info("Using in-memory storage")
		return NewMemoryStore(), nil

	case BackendBadger:
		logger.Info("Using BadgerDB storage")
		return NewBadgerStore(cfg.Badger.Path, cfg.Badger.RetentionDays, logger)

	case BackendRedis:
		logger.Info("Using Redis storage")
		return NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix, logger)

	case BackendSQLite:
		logger.Info("Using SQLite source")
		return NewSQLiteStore(ctx, cfg.SQLite.Path, logger)

	case BackendPostgres:
		logger.Info("Using PostgreSQL source")
		connString := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.Database,
			cfg.Postgres.SSLMode,
		)

		return NewPostgresStore(ctx, connString, cfg.Postgres.MaxConns, logger)

	case BackendClickHouse:
		logger.Info("Using ClickHouse source")
		return NewClickHouseStore(
			ctx,
			cfg.ClickHouse.Addr,
			cfg.ClickHouse.Database,
			cfg.ClickHouse.Username,
			cfg.ClickHouse.Password,
			logger,
		)

	case BackendInfluxDB:
		logger.Info("Using InfluxDB storage")
		return NewInfluxDBStore(
			cfg.InfluxDB.URL,
			cfg.InfluxDB.Token,
			cfg.InfluxDB.Org,
			cfg.InfluxDB.Bucket,
			cfg.InfluxDB.TimeColumn,
			logger,
		)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (valid options: memory, badger, redis, sqlite, postgres, clickhouse, influxdb)", cfg.Backend)
	}
}
