package report

import (
	"errors"
	"testing"

	"github.com/1broseidon/sparkreport/internal/config"
	"github.com/1broseidon/sparkreport/pkg/models"
)

func TestNewConfigAppliesDefaults(t *testing.T) {
	cfg := NewConfig(Options{}, StandardDefaults())

	if cfg.DateColumn != "created_at" {
		t.Errorf("expected default date column, got %q", cfg.DateColumn)
	}
	if cfg.Aggregation != models.AggregationCount {
		t.Errorf("expected default aggregation, got %q", cfg.Aggregation)
	}
	if cfg.Grouping != models.GroupingDay {
		t.Errorf("expected default grouping, got %q", cfg.Grouping)
	}
	if cfg.Limit != 100 {
		t.Errorf("expected default limit 100, got %d", cfg.Limit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestNewConfigKeepsUnknownValues(t *testing.T) {
	cfg := NewConfig(Options{Grouping: "fortnight", Aggregation: "max"}, StandardDefaults())
	if cfg.Grouping != "fortnight" || cfg.Aggregation != "max" {
		t.Fatalf("expected unknown values to be kept, got %+v", cfg)
	}
}

func TestNewConfigCopiesConditions(t *testing.T) {
	conds := models.Conditions{{Column: "status", Op: models.OpEq, Value: "active"}}
	cfg := NewConfig(Options{Conditions: conds}, StandardDefaults())

	conds[0].Value = "banned"
	if cfg.Conditions[0].Value != "active" {
		t.Fatalf("expected config to own its conditions, got %+v", cfg.Conditions)
	}
}

func TestSumWithoutValueColumnIsConfigError(t *testing.T) {
	cfg := NewConfig(Options{Aggregation: models.AggregationSum}, StandardDefaults())

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "value_column" {
		t.Fatalf("expected value_column validation error, got %#v", err)
	}
}

func TestDefaultsFromConfig(t *testing.T) {
	d := DefaultsFromConfig(config.ReportingConfig{
		DefaultLimit:    30,
		DefaultGrouping: models.GroupingWeek,
	})

	if d.Limit != 30 || d.Grouping != models.GroupingWeek {
		t.Fatalf("expected configured defaults, got %+v", d)
	}
	if d.DateColumn != "created_at" || d.Aggregation != models.AggregationCount {
		t.Fatalf("expected built-in defaults for unset values, got %+v", d)
	}
}

func TestOptionsFromDefinition(t *testing.T) {
	opts := OptionsFromDefinition(config.ReportDefinition{
		Name:        "revenue",
		ValueColumn: "amount",
		Aggregation: models.AggregationSum,
		Grouping:    models.GroupingMonth,
		Limit:       12,
		Cumulate:    true,
	})

	if opts.ValueColumn != "amount" || opts.Aggregation != models.AggregationSum || opts.Limit != 12 || !opts.Cumulate {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestReportErrorWraps(t *testing.T) {
	err := &ReportError{Model: "users", Report: "registrations", Operation: "aggregate", Err: ErrInvalidArgument}

	if got := err.Error(); got != "report users.registrations failed during aggregate: invalid report argument" {
		t.Fatalf("unexpected message: %s", got)
	}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatal("expected ReportError to unwrap to the underlying error")
	}
}
