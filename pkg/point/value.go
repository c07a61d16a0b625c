package point

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ValueKind is the discriminant of Value.
type ValueKind uint8

const (
	KindNone ValueKind = iota
	KindBool
	KindFloat
	KindCounter
)

// String returns the kind name.
func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindFloat:
		return "float"
	case KindCounter:
		return "counter"
	default:
		return "none"
	}
}

// Value is a point value: a bool, a float64 or a uint32 counter.
// Values are comparable with ==.
type Value struct {
	kind ValueKind
	b    bool
	f    float64
	c    uint32
}

// BoolValue returns a binary value.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// FloatValue returns an analog value.
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }

// CounterValue returns a counter value.
func CounterValue(v uint32) Value { return Value{kind: KindCounter, c: v} }

// ZeroValue returns the zero value of kind k.
func ZeroValue(k ValueKind) Value { return Value{kind: k} }

// Kind returns the variant.
func (v Value) Kind() ValueKind { return v.kind }

// Bool returns the binary value.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Float returns the analog value.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Counter returns the counter value.
func (v Value) Counter() (uint32, bool) { return v.c, v.kind == KindCounter }

// Any returns the value as bool, float64 or uint32, or nil for KindNone.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindFloat:
		return v.f
	case KindCounter:
		return v.c
	default:
		return nil
	}
}

// Equal compares two values. NaN equals NaN so that a repeated NaN sample
// is not reported as a change.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindFloat && math.IsNaN(v.f) && math.IsNaN(o.f) {
		return true
	}
	return v == o
}

// String formats the value.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindCounter:
		return strconv.FormatUint(uint64(v.c), 10)
	default:
		return "<none>"
	}
}

// ValueFromAny converts a decoded wire value into the variant kind k.
func ValueFromAny(k ValueKind, x any) (Value, error) {
	switch k {
	case KindBool:
		if b, ok := x.(bool); ok {
			return BoolValue(b), nil
		}
	case KindFloat:
		switch n := x.(type) {
		case float64:
			return FloatValue(n), nil
		case float32:
			return FloatValue(float64(n)), nil
		case int64:
			return FloatValue(float64(n)), nil
		case uint64:
			return FloatValue(float64(n)), nil
		case int:
			return FloatValue(float64(n)), nil
		}
	case KindCounter:
		switch n := x.(type) {
		case uint64:
			if n <= math.MaxUint32 {
				return CounterValue(uint32(n)), nil
			}
		case uint32:
			return CounterValue(n), nil
		case int64:
			if n >= 0 && n <= math.MaxUint32 {
				return CounterValue(uint32(n)), nil
			}
		case int:
			if n >= 0 && int64(n) <= math.MaxUint32 {
				return CounterValue(uint32(n)), nil
			}
		}
	}
	return Value{}, fmt.Errorf("%w: cannot use %T as %s", ErrValueKind, x, k)
}

// CounterDelta returns next-prev modulo 2^32.
func CounterDelta(prev, next uint32) uint32 {
	return next - prev
}

// Timestamp is milliseconds since the Unix epoch.
type Timestamp int64

// NoTimestamp marks a point value that carries no time.
const NoTimestamp Timestamp = math.MinInt64

// FromTime converts t to a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// IsSet returns false for NoTimestamp.
func (ts Timestamp) IsSet() bool { return ts != NoTimestamp }

// Time converts to time.Time. The zero time is returned for NoTimestamp.
func (ts Timestamp) Time() time.Time {
	if !ts.IsSet() {
		return time.Time{}
	}
	return time.UnixMilli(int64(ts))
}

// String formats the timestamp in RFC 3339 with milliseconds.
func (ts Timestamp) String() string {
	if !ts.IsSet() {
		return "none"
	}
	return ts.Time().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
