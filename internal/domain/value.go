package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Value is an observation that is either present or explicitly absent.
// Absent means "not reported" and is never the same as a reported zero.
type Value struct {
	v  float64
	ok bool
}

// Present wraps a reported number. NaN and infinities collapse to Absent so
// that no non-finite value can leak into downstream arithmetic.
func Present(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{v: v, ok: true}
}

// Absent returns the "no value" marker
func Absent() Value {
	return Value{}
}

// FromPtr converts a nullable number (e.g. a SQL column) into a Value
func FromPtr(p *float64) Value {
	if p == nil {
		return Absent()
	}
	return Present(*p)
}

// Get returns the number and whether it is present
func (x Value) Get() (float64, bool) {
	return x.v, x.ok
}

// IsPresent reports whether a number was reported
func (x Value) IsPresent() bool {
	return x.ok
}

// Ptr returns nil for Absent; used for nullable storage columns
func (x Value) Ptr() *float64 {
	if !x.ok {
		return nil
	}
	v := x.v
	return &v
}

// Sub returns x - y, Absent if either side is absent
func (x Value) Sub(y Value) Value {
	if !x.ok || !y.ok {
		return Absent()
	}
	return Present(x.v - y.v)
}

// Add returns x + y, Absent if either side is absent
func (x Value) Add(y Value) Value {
	if !x.ok || !y.ok {
		return Absent()
	}
	return Present(x.v + y.v)
}

// Div returns x / y. A zero or absent denominator yields Absent.
func (x Value) Div(y Value) Value {
	if !x.ok || !y.ok || y.v == 0 {
		return Absent()
	}
	return Present(x.v / y.v)
}

func (x Value) String() string {
	if !x.ok {
		return "absent"
	}
	return fmt.Sprintf("%g", x.v)
}

// MarshalJSON renders Absent as null
func (x Value) MarshalJSON() ([]byte, error) {
	if !x.ok {
		return []byte("null"), nil
	}
	return json.Marshal(x.v)
}

// UnmarshalJSON reads null as Absent
func (x *Value) UnmarshalJSON(data []byte) error {
	var p *float64
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*x = FromPtr(p)
	return nil
}
