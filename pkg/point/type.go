package point

import (
	"fmt"
	"strings"

	"github.com/telecore/telecore-go/pkg/quality"
)

// Type identifies a point table.
type Type uint8

const (
	TypeBinary Type = iota + 1
	TypeAnalog
	TypeCounter
	TypeFrozenCounter
	TypeBinaryOutputStatus
	TypeAnalogOutputStatus
)

// Types lists every point type in declaration order.
var Types = []Type{
	TypeBinary,
	TypeAnalog,
	TypeCounter,
	TypeFrozenCounter,
	TypeBinaryOutputStatus,
	TypeAnalogOutputStatus,
}

var typeNames = map[Type]string{
	TypeBinary:             "binary",
	TypeAnalog:             "analog",
	TypeCounter:            "counter",
	TypeFrozenCounter:      "frozen_counter",
	TypeBinaryOutputStatus: "binary_output_status",
	TypeAnalogOutputStatus: "analog_output_status",
}

// String returns the type name.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// IsValid returns true for a known type.
func (t Type) IsValid() bool {
	_, ok := typeNames[t]
	return ok
}

// ParseType parses a type name. Hyphens and case are ignored.
func ParseType(s string) (Type, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for t, name := range typeNames {
		if name == key {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Table returns the quality table for the type.
func (t Type) Table() *quality.Table {
	switch t {
	case TypeBinary:
		return quality.Binary
	case TypeAnalog:
		return quality.Analog
	case TypeCounter:
		return quality.Counter
	case TypeFrozenCounter:
		return quality.FrozenCounter
	case TypeBinaryOutputStatus:
		return quality.BinaryOutputStatus
	case TypeAnalogOutputStatus:
		return quality.AnalogOutputStatus
	default:
		return nil
	}
}

// ValueKind returns the value variant stored by the type.
func (t Type) ValueKind() ValueKind {
	switch t {
	case TypeBinary, TypeBinaryOutputStatus:
		return KindBool
	case TypeAnalog, TypeAnalogOutputStatus:
		return KindFloat
	case TypeCounter, TypeFrozenCounter:
		return KindCounter
	default:
		return KindNone
	}
}
