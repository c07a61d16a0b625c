package channel

import (
	"fmt"
	"strings"
)

// Kind is the transport discriminant of a Config.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindSerial
	KindNetwork
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Parity is the serial parity mode.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

var parityNames = []string{"NONE", "ODD", "EVEN", "MARK", "SPACE"}

// String returns the parity name.
func (p Parity) String() string {
	if int(p) < len(parityNames) {
		return parityNames[p]
	}
	return fmt.Sprintf("PARITY(%d)", uint8(p))
}

// IsValid returns true for a defined parity.
func (p Parity) IsValid() bool { return int(p) < len(parityNames) }

// MarshalText implements encoding.TextMarshaler.
func (p Parity) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText accepts the names case-insensitively, and the single
// letters N, O, E, M, S.
func (p *Parity) UnmarshalText(b []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(b)))
	for i, name := range parityNames {
		if s == name || s == name[:1] {
			*p = Parity(i)
			return nil
		}
	}
	return &ConfigError{Field: "parity", Reason: fmt.Sprintf("unknown parity %q", string(b))}
}

// FlowControl is the serial flow control mode.
type FlowControl uint8

const (
	FlowNone FlowControl = iota
	FlowHardware
	FlowSoftware
)

var flowNames = []string{"NONE", "HARDWARE", "SOFTWARE"}

// String returns the flow control name.
func (f FlowControl) String() string {
	if int(f) < len(flowNames) {
		return flowNames[f]
	}
	return fmt.Sprintf("FLOW(%d)", uint8(f))
}

// IsValid returns true for a defined flow control mode.
func (f FlowControl) IsValid() bool { return int(f) < len(flowNames) }

// MarshalText implements encoding.TextMarshaler.
func (f FlowControl) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText accepts the names case-insensitively, plus RTSCTS and
// XONXOFF.
func (f *FlowControl) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "NONE", "":
		*f = FlowNone
	case "HARDWARE", "RTSCTS":
		*f = FlowHardware
	case "SOFTWARE", "XONXOFF":
		*f = FlowSoftware
	default:
		return &ConfigError{Field: "flowControl", Reason: fmt.Sprintf("unknown flow control %q", string(b))}
	}
	return nil
}
