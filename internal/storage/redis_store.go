package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/1broseidon/sparkreport/internal/logging"
	"github.com/1broseidon/sparkreport/pkg/models"
)

// RedisStore keeps records in a hash per model and a sorted set per
// timestamp attribute, scored by unix milliseconds
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *logging.Logger
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string, logger *logging.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithComponent(logging.ComponentStorage).
		WithEvent(logging.EventSourceOpened).
		WithFields(map[string]interface{}{
			"backend": string(BackendRedis),
			"addr":    addr,
			"db":      db,
		}).
		Info("Redis storage initialized")

	return NewRedisStoreWithClient(client, prefix, logger), nil
}

// NewRedisStoreWithClient builds a store over an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string, logger *logging.Logger) *RedisStore {
	if prefix == "" {
		prefix = "sparkreport"
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// {prefix}:records:{model}
func (rs *RedisStore) recordsKey(model string) string {
	return fmt.Sprintf("%s:records:%s", rs.prefix, model)
}

// {prefix}:idx:{model}:{column}
func (rs *RedisStore) indexKey(model, column string) string {
	return fmt.Sprintf("%s:idx:%s:%s", rs.prefix, model, column)
}

// StoreRecord writes the record and its index entries in one MULTI/EXEC
func (rs *RedisStore) StoreRecord(ctx context.Context, rec *models.Record) error {
	stored, err := prepareRecord(rec)
	if err != nil {
		return err
	}

	value, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, rs.recordsKey(stored.Model), stored.ID, value)
		for _, column := range stored.TimeColumns() {
			ts, _ := stored.Time(column)
			pipe.ZAdd(ctx, rs.indexKey(stored.Model, column), redis.Z{
				Score:  float64(ts.UnixMilli()),
				Member: stored.ID,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	rec.ID = stored.ID
	return nil
}

// Aggregate reads the ids in range from the date column index, fetches the
// records in one HMGET and buckets them
func (rs *RedisStore) Aggregate(ctx context.Context, q models.AggregateQuery) ([]models.PeriodPoint, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	ids, err := rs.client.ZRangeByScore(ctx, rs.indexKey(q.Model, q.DateColumn), &redis.ZRangeBy{
		Min: strconv.FormatInt(q.Since.UnixMilli(), 10),
		Max: "(" + strconv.FormatInt(q.Until.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index for %s: %w", q.Model, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := rs.client.HMGet(ctx, rs.recordsKey(q.Model), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records for %s: %w", q.Model, err)
	}

	records := make([]*models.Record, 0, len(values))
	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			// Index entry without a record
			continue
		}
		var rec models.Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			rs.logger.WithComponent(logging.ComponentStorage).
				WithError(err).
				WithField("id", ids[i]).
				Warn("Failed to unmarshal record")
			continue
		}
		records = append(records, &rec)
	}

	return bucketRecords(records, q), nil
}

// Ping checks Redis connectivity
func (rs *RedisStore) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (rs *RedisStore) Close() error {
	rs.logger.WithComponent(logging.ComponentStorage).
		WithEvent(logging.EventSourceClosed).
		Info("Closing Redis connection")
	return rs.client.Close()
}

// Capabilities returns the capabilities of the Redis backend
func (rs *RedisStore) Capabilities() BackendCapabilities {
	return BackendCapabilities{
		Backend:             BackendRedis,
		SupportsRecordWrite: true,
	}
}
