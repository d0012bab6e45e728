package record

import (
	"time"
)

// System identifies the unit system a record's values are expressed in.
// The numeric values match the usUnits convention used by the archive
// database and the ingest wire format.
type System int

const (
	US       System = 1  // degF, inHg, inch, mph
	Metric   System = 16 // degC, hPa, cm, km/h
	MetricWX System = 17 // degC, hPa, mm, m/s
)

// Known reports whether s is one of the supported unit systems.
func (s System) Known() bool {
	return s == US || s == Metric || s == MetricWX
}

// Value is a single observation value: either a number or a calendar date.
// The zero Value is "absent".
type Value struct {
	Num  *float64
	Date *time.Time
}

// Num wraps a numeric value.
func Num(v float64) Value {
	return Value{Num: &v}
}

// Date wraps a calendar date value.
func Date(t time.Time) Value {
	return Value{Date: &t}
}

// IsNil reports whether the value is absent.
func (v Value) IsNil() bool {
	return v.Num == nil && v.Date == nil
}

// Record is one completed archive-interval observation set. Time is the
// archive timestamp, Units the ambient unit system, Values the observed
// and derived fields keyed by observation name.
type Record struct {
	Time   time.Time
	Units  System
	Values map[string]Value
}

// New creates an empty record.
func New(t time.Time, units System) *Record {
	return &Record{
		Time:   t,
		Units:  units,
		Values: make(map[string]Value),
	}
}

// Clone returns a deep copy. The pipeline enriches copies; the record
// handed in by the producer is never mutated.
func (r *Record) Clone() *Record {
	c := &Record{
		Time:   r.Time,
		Units:  r.Units,
		Values: make(map[string]Value, len(r.Values)),
	}
	for k, v := range r.Values {
		c.Values[k] = v
	}
	return c
}

// Has reports whether the named field is present and non-nil.
func (r *Record) Has(name string) bool {
	v, ok := r.Values[name]
	return ok && !v.IsNil()
}

// Get returns the named value, or an absent Value.
func (r *Record) Get(name string) Value {
	return r.Values[name]
}

// Set stores a numeric field.
func (r *Record) Set(name string, v float64) {
	r.Values[name] = Num(v)
}

// SetDate stores a calendar-date field.
func (r *Record) SetDate(name string, t time.Time) {
	r.Values[name] = Date(t)
}

// Age returns how old the record is relative to now.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.Time)
}
