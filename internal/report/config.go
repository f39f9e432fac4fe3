// Package report turns a declarative report configuration and a data source
// into a dense, chronologically ordered series of period values.
package report

import (
	"fmt"

	"github.com/1broseidon/sparkreport/internal/config"
	"github.com/1broseidon/sparkreport/internal/storage"
	"github.com/1broseidon/sparkreport/pkg/models"
)

// Options are the declarative options of one report. Zero values fall back
// to Defaults.
type Options struct {
	DateColumn  string
	ValueColumn string
	Aggregation models.Aggregation
	Grouping    models.Grouping
	Limit       int
	Conditions  models.Conditions

	// Cumulate selects running totals. It is consumed by MakeReport and never
	// reaches Config.
	Cumulate bool
}

// OptionsFromDefinition converts a configured report definition
func OptionsFromDefinition(def config.ReportDefinition) Options {
	return Options{
		DateColumn:  def.DateColumn,
		ValueColumn: def.ValueColumn,
		Aggregation: def.Aggregation,
		Grouping:    def.Grouping,
		Limit:       def.Limit,
		Conditions:  def.Conditions,
		Cumulate:    def.Cumulate,
	}
}

// Defaults holds the values used for options a report leaves unset
type Defaults struct {
	DateColumn  string
	Aggregation models.Aggregation
	Grouping    models.Grouping
	Limit       int
}

// StandardDefaults returns the built-in defaults
func StandardDefaults() Defaults {
	return Defaults{
		DateColumn:  "created_at",
		Aggregation: models.AggregationCount,
		Grouping:    models.GroupingDay,
		Limit:       100,
	}
}

// DefaultsFromConfig builds defaults from the reporting section, keeping the
// built-in value for anything left empty
func DefaultsFromConfig(cfg config.ReportingConfig) Defaults {
	d := StandardDefaults()
	if cfg.DefaultDateColumn != "" {
		d.DateColumn = cfg.DefaultDateColumn
	}
	if cfg.DefaultAggregation != "" {
		d.Aggregation = cfg.DefaultAggregation
	}
	if cfg.DefaultGrouping != "" {
		d.Grouping = cfg.DefaultGrouping
	}
	if cfg.DefaultLimit > 0 {
		d.Limit = cfg.DefaultLimit
	}
	return d
}

// Config is the immutable configuration a report runs with
type Config struct {
	DateColumn  string             `json:"date_column"`
	ValueColumn string             `json:"value_column,omitempty"`
	Aggregation models.Aggregation `json:"aggregation"`
	Grouping    models.Grouping    `json:"grouping"`
	Limit       int                `json:"limit"`
	Conditions  models.Conditions  `json:"conditions,omitempty"`
}

// NewConfig merges opts over d. Only empty options are defaulted; an unknown
// grouping or aggregation is kept so Validate can reject it.
func NewConfig(opts Options, d Defaults) Config {
	cfg := Config{
		DateColumn:  opts.DateColumn,
		ValueColumn: opts.ValueColumn,
		Aggregation: opts.Aggregation,
		Grouping:    opts.Grouping,
		Limit:       opts.Limit,
		Conditions:  append(models.Conditions(nil), opts.Conditions...),
	}

	if cfg.DateColumn == "" {
		cfg.DateColumn = d.DateColumn
	}
	if cfg.Aggregation == "" {
		cfg.Aggregation = d.Aggregation
	}
	if cfg.Grouping == "" {
		cfg.Grouping = d.Grouping
	}
	if cfg.Limit == 0 {
		cfg.Limit = d.Limit
	}

	return cfg
}

// Validate checks that the configuration can produce a report
func (c Config) Validate() error {
	if !c.Grouping.Valid() {
		return &ValidationError{Field: "grouping", Reason: fmt.Sprintf("%q is not one of hour, day, week, month", c.Grouping)}
	}
	if !c.Aggregation.Valid() {
		return &ValidationError{Field: "aggregation", Reason: fmt.Sprintf("%q is not one of count, sum", c.Aggregation)}
	}
	if c.Aggregation == models.AggregationSum && c.ValueColumn == "" {
		return &ValidationError{Field: "value_column", Reason: "is required for sum aggregation"}
	}
	if c.Limit <= 0 {
		return &ValidationError{Field: "limit", Reason: fmt.Sprintf("must be positive, got %d", c.Limit)}
	}
	if !storage.ValidIdentifier(c.DateColumn) {
		return &ValidationError{Field: "date_column", Reason: fmt.Sprintf("%q is not a valid column name", c.DateColumn)}
	}
	if c.ValueColumn != "" && !storage.ValidIdentifier(c.ValueColumn) {
		return &ValidationError{Field: "value_column", Reason: fmt.Sprintf("%q is not a valid column name", c.ValueColumn)}
	}
	for _, cond := range c.Conditions {
		if err := checkCondition(cond); err != nil {
			return &ValidationError{Field: "conditions", Reason: err.Error()}
		}
	}
	return nil
}

func checkCondition(cond models.Condition) error {
	if !storage.ValidIdentifier(cond.Column) {
		return fmt.Errorf("%q is not a valid column name", cond.Column)
	}
	if !cond.Op.Valid() {
		return fmt.Errorf("operator %q is not supported", cond.Op)
	}
	return nil
}
