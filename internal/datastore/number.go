package datastore

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric cell after coercion. Valid is false when the source
// text was missing or did not parse; Value is meaningless in that case.
type Number struct {
	Value float64
	Valid bool
}

// Num wraps a parsed value.
func Num(v float64) Number {
	if math.IsNaN(v) {
		return Number{}
	}
	return Number{Value: v, Valid: true}
}

// NaN is the "not a number" sentinel.
func NaN() Number {
	return Number{}
}

// ParseNumber coerces raw text. It never fails: anything that is not a
// float literal becomes NaN.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NaN()
	}
	return Num(v)
}

// Or returns the value, or fallback when the number is invalid.
func (n Number) Or(fallback float64) float64 {
	if !n.Valid {
		return fallback
	}
	return n.Value
}

// Map applies f to a valid number; NaN stays NaN.
func (n Number) Map(f func(float64) float64) Number {
	if !n.Valid {
		return n
	}
	return Num(f(n.Value))
}

// String renders the number the way the CSV source would.
func (n Number) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// MarshalJSON encodes NaN (and infinities, which JSON cannot carry) as null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid || math.IsInf(n.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// UnmarshalJSON accepts a number or null.
func (n *Number) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NaN()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Num(v)
	return nil
}
