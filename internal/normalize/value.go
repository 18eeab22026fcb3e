package normalize

import (
	"time"

	"github.com/shopspring/decimal"
)

// Value is one coerced cell. The zero Value is null.
type Value struct {
	Valid bool
	Str   string
	Int   int64
	Dec   decimal.Decimal
	Time  time.Time
	Bool  bool
}

// Text returns a non-null text value.
func Text(s string) Value { return Value{Valid: true, Str: s} }

// Int returns a non-null integer value.
func Int(i int64) Value { return Value{Valid: true, Int: i, Dec: decimal.NewFromInt(i)} }

// Dec returns a non-null decimal value.
func Dec(d decimal.Decimal) Value { return Value{Valid: true, Dec: d} }

// Time returns a non-null date or timestamp value.
func Time(t time.Time) Value { return Value{Valid: true, Time: t} }

// Bool returns a non-null boolean value.
func Bool(b bool) Value { return Value{Valid: true, Bool: b} }

// Record is one normalized row addressed by canonical field name.
type Record struct {
	Line   int // 1-based data line within the frame
	index  map[string]int
	values []Value
}

// NewRecord builds a record from explicit values, mainly for callers that
// synthesize rows outside a frame.
func NewRecord(line int, fields map[string]Value) Record {
	r := Record{Line: line, index: make(map[string]int, len(fields))}
	for name, v := range fields {
		r.index[name] = len(r.values)
		r.values = append(r.values, v)
	}
	return r
}

// Get returns the value of a canonical field; absent fields are null.
func (r Record) Get(name string) Value {
	if i, ok := r.index[name]; ok {
		return r.values[i]
	}
	return Value{}
}

// Has reports whether the field holds a non-null value.
func (r Record) Has(name string) bool { return r.Get(name).Valid }

// Text returns the field as text, empty when null.
func (r Record) Text(name string) string { return r.Get(name).Str }

// Int returns the integer field and whether it is set.
func (r Record) Int(name string) (int64, bool) {
	v := r.Get(name)
	return v.Int, v.Valid
}

// Decimal returns the decimal field and whether it is set.
func (r Record) Decimal(name string) (decimal.Decimal, bool) {
	v := r.Get(name)
	return v.Dec, v.Valid
}

// Time returns the date or timestamp field and whether it is set.
func (r Record) Time(name string) (time.Time, bool) {
	v := r.Get(name)
	return v.Time, v.Valid
}

// Bool returns the boolean field and whether it is set.
func (r Record) Bool(name string) (bool, bool) {
	v := r.Get(name)
	return v.Bool, v.Valid
}
