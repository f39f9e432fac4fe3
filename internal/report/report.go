package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/1broseidon/sparkreport/pkg/models"
)

// Source answers the grouped aggregation a report needs. storage.Source
// satisfies it.
type Source interface {
	Aggregate(ctx context.Context, q models.AggregateQuery) ([]models.PeriodPoint, error)
}

// Func is a callable report. It accepts no filter or exactly one.
type Func func(ctx context.Context, filters ...models.Conditions) ([]models.PeriodPoint, error)

// Option configures a Report
type Option func(*Report)

// WithClock replaces the clock used to find the current period
func WithClock(now func() time.Time) Option {
	return func(r *Report) {
		r.now = now
	}
}

// Report runs one configured aggregation against a source
type Report struct {
	model  string
	name   string
	config Config
	source Source
	now    func() time.Time
}

// New creates a report. The configuration is validated on every Run.
func New(model, name string, cfg Config, src Source, opts ...Option) *Report {
	r := &Report{
		model:  model,
		name:   name,
		config: cfg,
		source: src,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the report configuration
func (r *Report) Config() Config {
	return r.config
}

// Run computes exactly Limit points ending with the current period, oldest
// first. Periods without matching records are zero.
func (r *Report) Run(ctx context.Context, filters ...models.Conditions) ([]models.PeriodPoint, error) {
	if len(filters) > 1 {
		return nil, r.fail("run", invalidArgument("expected at most one filter, got %d", len(filters)))
	}

	var runtime models.Conditions
	if len(filters) == 1 {
		runtime = filters[0]
		for _, cond := range runtime {
			if err := checkCondition(cond); err != nil {
				return nil, r.fail("run", invalidArgument("%v", err))
			}
		}
	}

	if err := r.config.Validate(); err != nil {
		return nil, r.fail("validate", err)
	}

	grouping := r.config.Grouping
	periods := grouping.Range(r.now(), r.config.Limit)

	q := models.AggregateQuery{
		Model:       r.model,
		DateColumn:  r.config.DateColumn,
		ValueColumn: r.config.ValueColumn,
		Aggregation: r.config.Aggregation,
		Grouping:    grouping,
		Since:       periods[0],
		Until:       grouping.Add(periods[len(periods)-1], 1),
		Conditions:  r.config.Conditions.And(runtime),
	}

	sparse, err := r.source.Aggregate(ctx, q)
	if err != nil {
		return nil, r.fail("aggregate", err)
	}

	return densify(grouping, periods, sparse), nil
}

func (r *Report) fail(operation string, err error) error {
	return &ReportError{Model: r.model, Report: r.name, Operation: operation, Err: err}
}

// densify emits one point per period, zero where sparse has no entry.
// Entries outside periods are dropped.
func densify(grouping models.Grouping, periods []time.Time, sparse []models.PeriodPoint) []models.PeriodPoint {
	values := make(map[int64]decimal.Decimal, len(sparse))
	for _, p := range sparse {
		key := grouping.Truncate(p.Period).Unix()
		values[key] = values[key].Add(p.Value)
	}

	points := make([]models.PeriodPoint, len(periods))
	for i, period := range periods {
		points[i] = models.PeriodPoint{Period: period, Value: values[period.Unix()]}
	}
	return points
}

// Cumulate returns the running totals of points: each value is the sum of
// every value at or before it.
func Cumulate(points []models.PeriodPoint) []models.PeriodPoint {
	cumulated := make([]models.PeriodPoint, len(points))
	total := decimal.Zero
	for i, p := range points {
		total = total.Add(p.Value)
		cumulated[i] = models.PeriodPoint{Period: p.Period, Value: total}
	}
	return cumulated
}

// MakeReport builds the callable for one report. opts.Cumulate decides once
// whether the result is wrapped with Cumulate.
func MakeReport(model, name string, opts Options, defaults Defaults, src Source, options ...Option) Func {
	r := New(model, name, NewConfig(opts, defaults), src, options...)
	if !opts.Cumulate {
		return r.Run
	}
	return func(ctx context.Context, filters ...models.Conditions) ([]models.PeriodPoint, error) {
		points, err := r.Run(ctx, filters...)
		if err != nil {
			return nil, err
		}
		return Cumulate(points), nil
	}
}
