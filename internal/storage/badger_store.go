package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/1broseidon/sparkreport/internal/logging"
	"github.com/1broseidon/sparkreport/pkg/models"
)

// BadgerStore keeps schemaless records in BadgerDB with a time index per
// timestamp attribute
type BadgerStore struct {
	db            *badger.DB
	logger        *logging.Logger
	retentionDays int
	stopGC        chan struct{}
	gcDone        chan struct{}
	closeOnce     sync.Once
}

const (
	recordKeyPrefix   = "rec"
	indexKeyPrefix    = "idx"
	timestampKeyWidth = 20
)

func formatTimestampKey(ts int64) string {
	return fmt.Sprintf("%0*d", timestampKeyWidth, ts)
}

// rec:{model}:{id}
func recordKey(model, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", recordKeyPrefix, model, id))
}

// idx:{model}:{column}:
func indexPrefix(model, column string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", indexKeyPrefix, model, column))
}

// idx:{model}:{column}:{unix_nano}:{id}
func indexKey(model, column string, ts time.Time, id string) []byte {
	return append(indexPrefix(model, column), []byte(formatTimestampKey(ts.UnixNano())+":"+id)...)
}

// NewBadgerStore creates a new BadgerDB-backed source. retentionDays of zero
// keeps records forever.
func NewBadgerStore(path string, retentionDays int, logger *logging.Logger) (*BadgerStore, error) {
	if retentionDays < 0 {
		retentionDays = 0
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	store := &BadgerStore{
		db:            db,
		logger:        logger,
		retentionDays: retentionDays,
		stopGC:        make(chan struct{}),
		gcDone:        make(chan struct{}),
	}

	// Start garbage collection
	go store.runGC()

	logger.WithComponent(logging.ComponentStorage).
		WithEvent(logging.EventSourceOpened).
		WithFields(map[string]interface{}{
			"backend":       string(BackendBadger),
			"path":          path,
			"retentionDays": retentionDays,
		}).
		Info("BadgerDB storage initialized")

	return store, nil
}

func (bs *BadgerStore) entry(key, value []byte) *badger.Entry {
	e := badger.NewEntry(key, value)
	if bs.retentionDays > 0 {
		e = e.WithTTL(time.Duration(bs.retentionDays) * 24 * time.Hour)
	}
	return e
}

// StoreRecord stores the record and one index entry per timestamp attribute
// in a single transaction
func (bs *BadgerStore) StoreRecord(ctx context.Context, rec *models.Record) error {
	stored, err := prepareRecord(rec)
	if err != nil {
		return err
	}

	value, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	err = bs.db.Update(func(txn *badger.Txn) error {
		if err := bs.deleteIndexEntries(txn, stored.Model, stored.ID); err != nil {
			return err
		}
		if err := txn.SetEntry(bs.entry(recordKey(stored.Model, stored.ID), value)); err != nil {
			return err
		}

		for _, column := range stored.TimeColumns() {
			ts, _ := stored.Time(column)
			// Keys sort lexicographically, pre-epoch times cannot be indexed
			if ts.Before(time.Unix(0, 0)) {
				continue
			}
			if err := txn.SetEntry(bs.entry(indexKey(stored.Model, column, ts, stored.ID), nil)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}

	rec.ID = stored.ID
	return nil
}

// deleteIndexEntries removes the index entries of the record currently stored
// under id, if any
func (bs *BadgerStore) deleteIndexEntries(txn *badger.Txn, model, id string) error {
	item, err := txn.Get(recordKey(model, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var previous models.Record
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &previous)
	})
	if err != nil {
		return fmt.Errorf("failed to read previous record %s: %w", id, err)
	}

	for _, column := range previous.TimeColumns() {
		ts, _ := previous.Time(column)
		if ts.Before(time.Unix(0, 0)) {
			continue
		}
		if err := txn.Delete(indexKey(model, column, ts, id)); err != nil {
			return err
		}
	}
	return nil
}

// Aggregate scans the date column index over the query range inside one read
// transaction and buckets the matching records
func (bs *BadgerStore) Aggregate(ctx context.Context, q models.AggregateQuery) ([]models.PeriodPoint, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	prefix := indexPrefix(q.Model, q.DateColumn)
	startKey := append(append([]byte{}, prefix...), []byte(formatTimestampKey(q.Since.UnixNano()))...)
	endKey := append(append([]byte{}, prefix...), []byte(formatTimestampKey(q.Until.UnixNano()))...)

	var records []*models.Record
	seen := make(map[string]struct{})

	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false // index entries have no value
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(startKey); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			key := it.Item().Key()

			// Until is exclusive
			if bytes.Compare(key, endKey) >= 0 {
				break
			}

			id := string(key[len(prefix)+timestampKeyWidth+1:])
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			item, err := txn.Get(recordKey(q.Model, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			err = item.Value(func(val []byte) error {
				var rec models.Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				records = append(records, &rec)
				return nil
			})
			if err != nil {
				bs.logger.WithComponent(logging.ComponentStorage).
					WithError(err).
					WithField("id", id).
					Warn("Failed to unmarshal record")
				continue
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}

	return bucketRecords(records, q), nil
}

// Ping reports whether the database is still open
func (bs *BadgerStore) Ping(ctx context.Context) error {
	if bs.db.IsClosed() {
		return fmt.Errorf("badger db is closed")
	}
	return nil
}

// Close stops garbage collection and closes the database
func (bs *BadgerStore) Close() error {
	var err error
	bs.closeOnce.Do(func() {
		close(bs.stopGC)
		<-bs.gcDone

		bs.logger.WithComponent(logging.ComponentStorage).
			WithEvent(logging.EventSourceClosed).
			Info("Closing BadgerDB")
		err = bs.db.Close()
	})
	return err
}

// Capabilities returns the capabilities of the BadgerDB backend
func (bs *BadgerStore) Capabilities() BackendCapabilities {
	return BackendCapabilities{
		Backend:             BackendBadger,
		SupportsRecordWrite: true,
		SupportsRetention:   true,
	}
}

// runGC runs value log garbage collection until the store is closed
func (bs *BadgerStore) runGC() {
	defer close(bs.gcDone)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-bs.stopGC:
			return
		case <-ticker.C:
			err := bs.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				bs.logger.WithComponent(logging.ComponentStorage).
					WithError(err).
					Debug("Garbage collection completed with notice")
			}
		}
	}
}

// badgerLogger adapts our logger to BadgerDB's logger interface
type badgerLogger struct {
	logger *logging.Logger
}

func (bl *badgerLogger) Errorf(format string, args ...interface{}) {
	bl.logger.WithComponent("badger").Errorf(format, args...)
}

func (bl *badgerLogger) Warningf(format string, args ...interface{}) {
	bl.logger.WithComponent("badger").Warnf(format, args...)
}

func (bl *badgerLogger) Infof(format string, args ...interface{}) {
	bl.logger.WithComponent("badger").Infof(format, args...)
}

func (bl *badgerLogger) Debugf(format string, args ...interface{}) {
	bl.logger.WithComponent("badger").Debugf(format, args...)
}
