package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Time returns the attribute as a timestamp. Attributes decoded from JSON or
// YAML arrive as strings and are parsed with the layouts conditions accept.
func (r *Record) Time(column string) (time.Time, bool) {
	v, ok := r.Attributes[column]
	if !ok || v == nil {
		return time.Time{}, false
	}
	return toTime(v)
}

// Number returns the attribute as a decimal
func (r *Record) Number(column string) (decimal.Decimal, bool) {
	v, ok := r.Attributes[column]
	if !ok || v == nil {
		return decimal.Zero, false
	}
	return toDecimal(v)
}

// TimeColumns lists the attributes that hold timestamps
func (r *Record) TimeColumns() []string {
	var columns []string
	for name, v := range r.Attributes {
		if _, isNumber := toDecimal(v); isNumber {
			continue
		}
		if _, ok := toTime(v); ok {
			columns = append(columns, name)
		}
	}
	return columns
}
