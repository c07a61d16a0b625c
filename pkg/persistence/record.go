package persistence

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/telecore/telecore-go/pkg/point"
)

// Non-finite analog values are stored as strings since JSON has no
// representation for them.
const (
	jsonNaN    = "NaN"
	jsonPosInf = "+Inf"
	jsonNegInf = "-Inf"
)

// PointRecord is the stored form of one point.
type PointRecord struct {
	Index   uint16          `json:"index"`
	Value   json.RawMessage `json:"value"`
	Quality uint8           `json:"quality"`

	// TimestampMS is epoch milliseconds; absent when the point has none.
	TimestampMS *int64 `json:"timestamp_ms,omitempty"`
}

func newPointRecord(p point.Point) (PointRecord, error) {
	v, err := encodeValue(p.Value)
	if err != nil {
		return PointRecord{}, err
	}
	r := PointRecord{Index: p.Index, Value: v, Quality: p.Quality.Bits()}
	if p.Timestamp.IsSet() {
		ms := int64(p.Timestamp)
		r.TimestampMS = &ms
	}
	return r, nil
}

// toPoint rebuilds the point for table t.
func (r PointRecord) toPoint(t point.Type) (point.Point, error) {
	v, err := decodeValue(t.ValueKind(), r.Value)
	if err != nil {
		return point.Point{}, fmt.Errorf("%s[%d]: %w", t, r.Index, err)
	}
	ts := point.NoTimestamp
	if r.TimestampMS != nil {
		ts = point.Timestamp(*r.TimestampMS)
	}
	return point.Point{
		Index:     r.Index,
		Value:     v,
		Quality:   t.Table().FromBits(r.Quality),
		Timestamp: ts,
	}, nil
}

func encodeValue(v point.Value) (json.RawMessage, error) {
	if f, ok := v.Float(); ok {
		switch {
		case math.IsNaN(f):
			return json.Marshal(jsonNaN)
		case math.IsInf(f, 1):
			return json.Marshal(jsonPosInf)
		case math.IsInf(f, -1):
			return json.Marshal(jsonNegInf)
		}
	}
	return json.Marshal(v.Any())
}

func decodeValue(k point.ValueKind, raw json.RawMessage) (point.Value, error) {
	switch k {
	case point.KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return point.Value{}, fmt.Errorf("%w: %v", point.ErrValueKind, err)
		}
		return point.BoolValue(b), nil
	case point.KindFloat:
		var s string
		if json.Unmarshal(raw, &s) == nil {
			switch s {
			case jsonNaN:
				return point.FloatValue(math.NaN()), nil
			case jsonPosInf:
				return point.FloatValue(math.Inf(1)), nil
			case jsonNegInf:
				return point.FloatValue(math.Inf(-1)), nil
			}
			return point.Value{}, fmt.Errorf("%w: %q is not a number", point.ErrValueKind, s)
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return point.Value{}, fmt.Errorf("%w: %v", point.ErrValueKind, err)
		}
		return point.FloatValue(f), nil
	case point.KindCounter:
		var c uint32
		if err := json.Unmarshal(raw, &c); err != nil {
			return point.Value{}, fmt.Errorf("%w: %v", point.ErrValueKind, err)
		}
		return point.CounterValue(c), nil
	default:
		return point.Value{}, fmt.Errorf("%w: kind %s", point.ErrValueKind, k)
	}
}
