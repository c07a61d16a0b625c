package point

import (
	"errors"
	"fmt"
	"strings"

	"github.com/telecore/telecore-go/pkg/quality"
)

// Point errors.
var (
	ErrUnknownType = errors.New("unknown point type")
	ErrValueKind   = errors.New("value kind does not match point type")
)

// Point is the current value of one index in a point table.
type Point struct {
	Index     uint16
	Value     Value
	Quality   quality.Set
	Timestamp Timestamp
}

// New returns a freshly initialised point: zero value, quality RESTART only,
// no timestamp.
func New(t Type, index uint16) Point {
	table := t.Table()
	return Point{
		Index:     index,
		Value:     ZeroValue(t.ValueKind()),
		Quality:   table.Of(table.Restart()),
		Timestamp: NoTimestamp,
	}
}

// Update replaces value, quality and timestamp and classifies the change.
func (p *Point) Update(v Value, q quality.Set, ts Timestamp) Outcome {
	next := Point{Index: p.Index, Value: v, Quality: q, Timestamp: ts}
	out := Classify(*p, next)
	*p = next
	return out
}

// Equal reports whether index, value, quality bits and timestamp all match.
// Use Classify, not Equal, to decide whether an update is reportable.
func (p Point) Equal(o Point) bool {
	return p.Index == o.Index &&
		p.Value.Equal(o.Value) &&
		p.Quality.Bits() == o.Quality.Bits() &&
		p.Timestamp == o.Timestamp
}

// IsStale reports whether the value is not authoritative.
func (p Point) IsStale() bool {
	return p.Quality.IsStale()
}

// String formats the point for diagnostics.
func (p Point) String() string {
	return fmt.Sprintf("[%d] %s %s @%s", p.Index, p.Value, p.Quality, p.Timestamp)
}

// Reason is a bitmask of why an update is reportable.
type Reason uint8

const (
	// ReasonValueChanged is set when the value differs.
	ReasonValueChanged Reason = 1 << iota

	// ReasonOnlineChanged is set when the ONLINE bit flipped.
	ReasonOnlineChanged

	// ReasonLatchSet is set when a latching quality bit was newly asserted.
	ReasonLatchSet
)

// String returns e.g. "VALUE|ONLINE".
func (r Reason) String() string {
	var parts []string
	if r&ReasonValueChanged != 0 {
		parts = append(parts, "VALUE")
	}
	if r&ReasonOnlineChanged != 0 {
		parts = append(parts, "ONLINE")
	}
	if r&ReasonLatchSet != 0 {
		parts = append(parts, "LATCH")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Outcome is the classification of one update.
type Outcome struct {
	Reasons Reason
}

// IsEvent returns true if the update must be reported.
func (o Outcome) IsEvent() bool {
	return o.Reasons != 0
}

// Classify compares an old and new point.
func Classify(old, next Point) Outcome {
	var r Reason
	if !old.Value.Equal(next.Value) {
		r |= ReasonValueChanged
	}
	if old.Quality.IsOnline() != next.Quality.IsOnline() {
		r |= ReasonOnlineChanged
	}
	var latching uint8
	if t := next.Quality.Table(); t != nil {
		latching = t.Latching()
	}
	if next.Quality.Bits()&^old.Quality.Bits()&latching != 0 {
		r |= ReasonLatchSet
	}
	return Outcome{Reasons: r}
}
