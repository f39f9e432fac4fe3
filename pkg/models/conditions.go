package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Operator is the comparison applied by a Condition
type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

// Valid reports whether the operator is supported
func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// SQL returns the SQL comparison operator
func (o Operator) SQL() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	}
	return ""
}

// Condition compares one record attribute against a value
type Condition struct {
	Column string   `yaml:"column" mapstructure:"column" json:"column"`
	Op     Operator `yaml:"op" mapstructure:"op" json:"op"`
	Value  any      `yaml:"value" mapstructure:"value" json:"value"`
}

// Conditions is a conjunction of conditions. The zero value matches everything.
type Conditions []Condition

// And returns the conjunction of c and other as a new slice
func (c Conditions) And(other Conditions) Conditions {
	merged := make(Conditions, 0, len(c)+len(other))
	merged = append(merged, c...)
	return append(merged, other...)
}

// Matches reports whether the record satisfies every condition
func (c Conditions) Matches(rec *Record) bool {
	for _, cond := range c {
		if !cond.Matches(rec) {
			return false
		}
	}
	return true
}

// ParseCondition parses the "column:op:value" form used in query strings.
// The value may itself contain colons.
func ParseCondition(s string) (Condition, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" {
		return Condition{}, fmt.Errorf("condition %q must have the form column:op:value", s)
	}
	op := Operator(strings.ToLower(parts[1]))
	if !op.Valid() {
		return Condition{}, fmt.Errorf("condition %q has unsupported operator %q", s, parts[1])
	}
	return Condition{Column: parts[0], Op: op, Value: parts[2]}, nil
}

// Matches evaluates the condition against a schemaless record. A missing
// attribute only satisfies "ne".
func (c Condition) Matches(rec *Record) bool {
	actual, ok := rec.Attributes[c.Column]
	if !ok || actual == nil {
		return c.Op == OpNe
	}

	cmp, ok := compareValues(actual, c.Value)
	if !ok {
		// Incomparable values are only ever unequal
		return c.Op == OpNe
	}

	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

// compareValues orders a against b, trying numbers, then times, then booleans
// and finally plain strings.
func compareValues(a, b any) (int, bool) {
	if da, ok := toDecimal(a); ok {
		if db, ok := toDecimal(b); ok {
			return da.Cmp(db), true
		}
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	if ba, ok := toBool(a); ok {
		if bb, ok := toBool(b); ok {
			switch {
			case ba == bb:
				return 0, true
			case ba:
				return 1, true
			default:
				return -1, true
			}
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	return strings.Compare(sa, sb), true
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint64:
		return decimal.NewFromUint64(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(b) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}
