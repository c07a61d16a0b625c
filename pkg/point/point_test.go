package point

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/telecore/telecore-go/pkg/quality"
)

func TestNewPoint(t *testing.T) {
	for _, typ := range Types {
		t.Run(typ.String(), func(t *testing.T) {
			p := New(typ, 7)
			if p.Index != 7 {
				t.Errorf("Index = %d, want 7", p.Index)
			}
			if p.Quality.Bits() != quality.BitRestart {
				t.Errorf("Quality = %v, want {RESTART}", p.Quality)
			}
			if p.Quality.Table() != typ.Table() {
				t.Errorf("Quality table = %v, want %v", p.Quality.Table().Name(), typ.Table().Name())
			}
			if p.Timestamp.IsSet() {
				t.Errorf("Timestamp = %v, want none", p.Timestamp)
			}
			if p.Value.Kind() != typ.ValueKind() {
				t.Errorf("Value kind = %v, want %v", p.Value.Kind(), typ.ValueKind())
			}
			if !p.IsStale() {
				t.Error("IsStale() = false for new point, want true")
			}
		})
	}
}

func TestUpdateClassification(t *testing.T) {
	online := quality.Counter.Of(quality.CounterOnline)
	onlineRollover := quality.Counter.Of(quality.CounterOnline, quality.CounterRollover)
	commLost := quality.Counter.Of(quality.CounterCommLost)

	tests := []struct {
		name    string
		start   Point
		value   Value
		quality quality.Set
		want    Reason
	}{
		{
			name:    "first update from restart",
			start:   New(TypeCounter, 0),
			value:   CounterValue(10),
			quality: online,
			want:    ReasonValueChanged | ReasonOnlineChanged,
		},
		{
			name:    "same value and quality",
			start:   Point{Value: CounterValue(10), Quality: online},
			value:   CounterValue(10),
			quality: online,
			want:    0,
		},
		{
			name:    "value change",
			start:   Point{Value: CounterValue(10), Quality: online},
			value:   CounterValue(11),
			quality: online,
			want:    ReasonValueChanged,
		},
		{
			name:    "rollover newly set",
			start:   Point{Value: CounterValue(10), Quality: online},
			value:   CounterValue(10),
			quality: onlineRollover,
			want:    ReasonLatchSet,
		},
		{
			name:    "rollover still set",
			start:   Point{Value: CounterValue(10), Quality: onlineRollover},
			value:   CounterValue(10),
			quality: onlineRollover,
			want:    0,
		},
		{
			name:    "rollover cleared",
			start:   Point{Value: CounterValue(10), Quality: onlineRollover},
			value:   CounterValue(10),
			quality: online,
			want:    0,
		},
		{
			name:    "goes offline",
			start:   Point{Value: CounterValue(10), Quality: online},
			value:   CounterValue(10),
			quality: commLost,
			want:    ReasonOnlineChanged,
		},
		{
			name:    "forced flag alone is not an event",
			start:   Point{Value: CounterValue(10), Quality: online},
			value:   CounterValue(10),
			quality: online.With(quality.CounterLocalForced),
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.start
			out := p.Update(tt.value, tt.quality, 1000)
			if out.Reasons != tt.want {
				t.Errorf("Reasons = %v, want %v", out.Reasons, tt.want)
			}
			if out.IsEvent() != (tt.want != 0) {
				t.Errorf("IsEvent() = %v", out.IsEvent())
			}
			if p.Value != tt.value || p.Quality != tt.quality || p.Timestamp != 1000 {
				t.Errorf("Update did not fully replace: %v", p)
			}
		})
	}
}

func TestUpdateIdempotent(t *testing.T) {
	p := New(TypeAnalog, 3)
	q := quality.Analog.Of(quality.AnalogOnline)

	if out := p.Update(FloatValue(1.5), q, 42); !out.IsEvent() {
		t.Fatal("first update should be an event")
	}
	if out := p.Update(FloatValue(1.5), q, 42); out.IsEvent() {
		t.Errorf("second identical update reported %v", out.Reasons)
	}
}

func TestClassifyTimestampOnly(t *testing.T) {
	q := quality.Binary.Of(quality.BinaryOnline)
	old := Point{Value: BoolValue(true), Quality: q, Timestamp: 1}
	next := Point{Value: BoolValue(true), Quality: q, Timestamp: 2}

	if Classify(old, next).IsEvent() {
		t.Error("timestamp-only refresh should not be an event")
	}
	if old.Equal(next) {
		t.Error("Equal() = true for different timestamps")
	}
}

func TestNaNIsStable(t *testing.T) {
	q := quality.Analog.Of(quality.AnalogOnline)
	p := Point{Value: FloatValue(math.NaN()), Quality: q}
	if out := p.Update(FloatValue(math.NaN()), q, NoTimestamp); out.IsEvent() {
		t.Errorf("NaN -> NaN reported %v", out.Reasons)
	}
}

func TestCounterDeltaWraps(t *testing.T) {
	if got := CounterDelta(math.MaxUint32-1, 3); got != 5 {
		t.Errorf("CounterDelta = %d, want 5", got)
	}
	if got := CounterDelta(10, 25); got != 15 {
		t.Errorf("CounterDelta = %d, want 15", got)
	}
}

func TestValueFromAny(t *testing.T) {
	tests := []struct {
		name    string
		kind    ValueKind
		in      any
		want    Value
		wantErr bool
	}{
		{"bool", KindBool, true, BoolValue(true), false},
		{"float", KindFloat, 2.5, FloatValue(2.5), false},
		{"float from int", KindFloat, int64(-4), FloatValue(-4), false},
		{"counter", KindCounter, uint64(99), CounterValue(99), false},
		{"counter overflow", KindCounter, uint64(math.MaxUint32 + 1), Value{}, true},
		{"negative counter", KindCounter, int64(-1), Value{}, true},
		{"bool from string", KindBool, "true", Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValueFromAny(tt.kind, tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrValueKind) {
					t.Errorf("error = %v, want ErrValueKind", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range Types {
		got, err := ParseType(typ.String())
		if err != nil || got != typ {
			t.Errorf("ParseType(%q) = %v, %v", typ.String(), got, err)
		}
	}
	if got, err := ParseType("Frozen-Counter"); err != nil || got != TypeFrozenCounter {
		t.Errorf("ParseType(Frozen-Counter) = %v, %v", got, err)
	}
	if _, err := ParseType("octet"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("ParseType(octet) error = %v, want ErrUnknownType", err)
	}
}

func TestTimestamp(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	ts := FromTime(now)
	if !ts.Time().Equal(now) {
		t.Errorf("Time() = %v, want %v", ts.Time(), now)
	}
	if NoTimestamp.IsSet() {
		t.Error("NoTimestamp.IsSet() = true")
	}
	if !NoTimestamp.Time().IsZero() {
		t.Error("NoTimestamp.Time() should be zero")
	}
	if NoTimestamp.String() != "none" {
		t.Errorf("NoTimestamp.String() = %q", NoTimestamp.String())
	}
}
