package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// NotAvailable is how an unavailable reading is shown to operators.
const NotAvailable = "N/A"

// Optional holds a reading that may be unavailable on this host.
// The zero value is unavailable.
type Optional[T any] struct {
	Value T
	Valid bool
}

// Some returns an available reading
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// None returns an unavailable reading
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is available
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

// Or returns the value, or fallback when unavailable
func (o Optional[T]) Or(fallback T) T {
	if !o.Valid {
		return fallback
	}
	return o.Value
}

// String renders the value with %v, or N/A
func (o Optional[T]) String() string {
	if !o.Valid {
		return NotAvailable
	}
	return fmt.Sprint(o.Value)
}

// Render renders the value with the given verb, or N/A
func (o Optional[T]) Render(verb string) string {
	if !o.Valid {
		return NotAvailable
	}
	return fmt.Sprintf(verb, o.Value)
}

// MarshalJSON encodes an unavailable reading as null
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON decodes null as unavailable
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// ClampPercent bounds v to [0,100]
func ClampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// Percent returns a clamped percentage reading. NaN and infinities are unavailable.
func Percent(v float64) Optional[float64] {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return None[float64]()
	}
	return Some(ClampPercent(v))
}
