package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/shopspring/decimal"

	"github.com/1broseidon/sparkreport/internal/logging"
	"github.com/1broseidon/sparkreport/pkg/models"
)

// InfluxDBStore writes records as points (measurement = model, one field per
// attribute) and groups them with Flux aggregateWindow. The point time is the
// record's time column, so only that column can be reported on.
type InfluxDBStore struct {
	client     influxdb2.Client
	writeAPI   api.WriteAPI
	queryAPI   api.QueryAPI
	bucket     string
	org        string
	timeColumn string
	logger     *logging.Logger
	stopErr    chan struct{}
	errStopped chan struct{}
}

// countField is written on every point so a record with no other attributes
// still produces a row
const countField = "n"

// NewInfluxDBStore creates an InfluxDB-backed source
func NewInfluxDBStore(url, token, org, bucket, timeColumn string, logger *logging.Logger) (*InfluxDBStore, error) {
	client := influxdb2.NewClient(url, token)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb health check failed: %w", err)
	}

	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("influxdb not healthy: %s", health.Status)
	}

	if timeColumn == "" {
		timeColumn = "created_at"
	}

	store := &InfluxDBStore{
		client:     client,
		writeAPI:   client.WriteAPI(org, bucket),
		queryAPI:   client.QueryAPI(org),
		bucket:     bucket,
		org:        org,
		timeColumn: timeColumn,
		logger:     logger,
		stopErr:    make(chan struct{}),
		errStopped: make(chan struct{}),
	}

	// Start error listener
	go store.listenForWriteErrors()

	logger.WithComponent(logging.ComponentStorage).
		WithEvent(logging.EventSourceOpened).
		WithFields(map[string]interface{}{
			"backend": string(BackendInfluxDB),
			"url":     url,
			"org":     org,
			"bucket":  bucket,
		}).
		Info("InfluxDB storage initialized successfully")

	return store, nil
}

// listenForWriteErrors handles async write errors
func (is *InfluxDBStore) listenForWriteErrors() {
	defer close(is.errStopped)

	for {
		select {
		case err := <-is.writeAPI.Errors():
			is.logger.WithComponent(logging.ComponentStorage).
				WithError(err).
				Error("InfluxDB write error")
		case <-is.stopErr:
			return
		}
	}
}

// StoreRecord writes the record as one point (async)
func (is *InfluxDBStore) StoreRecord(ctx context.Context, rec *models.Record) error {
	stored, err := prepareRecord(rec)
	if err != nil {
		return err
	}

	ts, ok := stored.Time(is.timeColumn)
	if !ok {
		return fmt.Errorf("record has no %s timestamp", is.timeColumn)
	}

	p := influxdb2.NewPointWithMeasurement(stored.Model).
		AddTag("id", stored.ID).
		AddField(countField, 1).
		SetTime(ts)

	for name, value := range stored.Attributes {
		if name == is.timeColumn || value == nil {
			continue
		}
		p.AddField(name, fieldValue(value))
	}

	is.writeAPI.WritePoint(p)

	rec.ID = stored.ID
	return nil
}

// fieldValue normalizes numbers to floats so conditions compare one type
func fieldValue(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case decimal.Decimal:
		return val.InexactFloat64()
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	}
	return v
}

var fluxWindows = map[models.Grouping]string{
	models.GroupingHour:  "every: 1h",
	models.GroupingDay:   "every: 1d",
	models.GroupingWeek:  "every: 1w, offset: 4d", // windows align to the epoch, a Thursday
	models.GroupingMonth: "every: 1mo",
}

// fluxLiteral renders a condition value as a Flux literal
func fluxLiteral(v any) string {
	switch val := v.(type) {
	case bool:
		return fmt.Sprintf("%t", val)
	case string:
		if d, err := decimal.NewFromString(val); err == nil {
			return fluxFloat(d)
		}
		return `"` + escapeFluxString(val) + `"`
	case int, int32, int64, float32, float64, decimal.Decimal:
		if d, err := decimal.NewFromString(fmt.Sprint(val)); err == nil {
			return fluxFloat(d)
		}
	}
	return `"` + escapeFluxString(fmt.Sprint(v)) + `"`
}

// fluxFloat renders d as a float literal; numeric fields are written as floats
func fluxFloat(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

var fluxOperators = map[models.Operator]string{
	models.OpEq:  "==",
	models.OpNe:  "!=",
	models.OpGt:  ">",
	models.OpGte: ">=",
	models.OpLt:  "<",
	models.OpLte: "<=",
}

// buildFluxQuery renders the windowed aggregation for q
func (is *InfluxDBStore) buildFluxQuery(q models.AggregateQuery) string {
	var b strings.Builder

	fmt.Fprintf(&b, `from(bucket: "%s")
		|> range(start: %s, stop: %s)
		|> filter(fn: (r) => r._measurement == "%s")
		|> pivot(rowKey: ["_time", "id"], columnKey: ["_field"], valueColumn: "_value")`,
		escapeFluxString(is.bucket),
		q.Since.UTC().Format(time.RFC3339),
		q.Until.UTC().Format(time.RFC3339),
		escapeFluxString(q.Model))

	for _, cond := range q.Conditions {
		fmt.Fprintf(&b, `
		|> filter(fn: (r) => r.%s %s %s)`, cond.Column, fluxOperators[cond.Op], fluxLiteral(cond.Value))
	}

	if q.Aggregation == models.AggregationSum {
		fmt.Fprintf(&b, `
		|> map(fn: (r) => ({r with _value: if exists r.%[1]s then float(v: r.%[1]s) else 0.0}))`, q.ValueColumn)
	} else {
		b.WriteString(`
		|> map(fn: (r) => ({r with _value: 1.0}))`)
	}

	fmt.Fprintf(&b, `
		|> keep(columns: ["_time", "_start", "_stop", "_value"])
		|> group()
		|> aggregateWindow(%s, fn: sum, timeSrc: "_start", createEmpty: false)`, fluxWindows[q.Grouping])

	return b.String()
}

// Aggregate runs one Flux query
func (is *InfluxDBStore) Aggregate(ctx context.Context, q models.AggregateQuery) ([]models.PeriodPoint, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	if q.DateColumn != is.timeColumn {
		return nil, fmt.Errorf("%w: influxdb groups by %s only, got %s", ErrNotSupported, is.timeColumn, q.DateColumn)
	}

	queryResult, err := is.queryAPI.Query(ctx, is.buildFluxQuery(q))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Model, err)
	}
	defer queryResult.Close()

	var points []models.PeriodPoint
	for queryResult.Next() {
		record := queryResult.Record()

		var value decimal.Decimal
		switch v := record.Value().(type) {
		case float64:
			value = decimal.NewFromFloat(v)
		case int64:
			value = decimal.NewFromInt(v)
		}

		points = append(points, models.PeriodPoint{
			Period: record.Time().UTC(),
			Value:  value,
		})
	}

	if queryResult.Err() != nil {
		return nil, fmt.Errorf("query error: %w", queryResult.Err())
	}

	sortPoints(points)
	return points, nil
}

// Ping checks InfluxDB health
func (is *InfluxDBStore) Ping(ctx context.Context) error {
	ok, err := is.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("influxdb ping failed")
	}
	return nil
}

// Close gracefully closes the InfluxDB client
func (is *InfluxDBStore) Close() error {
	// Signal error listener to stop
	close(is.stopErr)

	// Wait for error listener to finish (with timeout)
	select {
	case <-is.errStopped:
	case <-time.After(2 * time.Second):
		is.logger.WithComponent(logging.ComponentStorage).Warn("Error listener did not stop in time")
	}

	// Flush any pending writes
	is.writeAPI.Flush()

	is.client.Close()

	is.logger.WithComponent(logging.ComponentStorage).
		WithEvent(logging.EventSourceClosed).
		Info("InfluxDB client closed")
	return nil
}

// Capabilities returns the capabilities of the InfluxDB storage backend
func (is *InfluxDBStore) Capabilities() BackendCapabilities {
	return BackendCapabilities{
		Backend:             BackendInfluxDB,
		NativeGrouping:      true,
		SupportsRecordWrite: true,
		SupportsRetention:   true, // Built-in retention policies
	}
}

// escapeFluxString escapes special characters in Flux query strings
func escapeFluxString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
