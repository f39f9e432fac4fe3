// Package models defines the core data structures shared by the report
// engine, the storage backends and the API: periods, aggregations, filter
// conditions, records and report points.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Aggregation represents how the records of one period are reduced
type Aggregation string

const (
	AggregationCount Aggregation = "count"
	AggregationSum   Aggregation = "sum"
)

// Valid reports whether the aggregation is supported
func (a Aggregation) Valid() bool {
	switch a {
	case AggregationCount, AggregationSum:
		return true
	}
	return false
}

// PeriodPoint is one entry of a report: the start of a period and its value
type PeriodPoint struct {
	Period time.Time       `json:"period"`
	Value  decimal.Decimal `json:"value"`
}

// String formats the point for logs and test failures
func (p PeriodPoint) String() string {
	return fmt.Sprintf("(%s, %s)", p.Period.UTC().Format(time.RFC3339), p.Value.String())
}

// AggregateQuery is the single query shape a data source has to answer:
// records of Model matching Conditions whose DateColumn lies in [Since, Until),
// grouped by Grouping and reduced by Aggregation.
type AggregateQuery struct {
	Model       string
	DateColumn  string
	ValueColumn string
	Aggregation Aggregation
	Grouping    Grouping
	Since       time.Time
	Until       time.Time
	Conditions  Conditions
}

// InRange reports whether t falls inside the query's half-open range
func (q AggregateQuery) InRange(t time.Time) bool {
	return !t.Before(q.Since) && t.Before(q.Until)
}

// Record is a schemaless row as written by the ingestion endpoint or the seed tool
type Record struct {
	ID         string         `json:"id" yaml:"id"`
	Model      string         `json:"model" yaml:"model"`
	Attributes map[string]any `json:"attributes" yaml:"attributes"`
}
