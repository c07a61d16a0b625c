package quality

import (
	"errors"
	"fmt"
	"math/bits"
)

// Quality errors.
var (
	// ErrInvalidFlag indicates a flag that is not part of the table it is
	// used with. This is a programming error.
	ErrInvalidFlag = errors.New("invalid quality flag")

	// ErrUnrecognizedBits is reported by strict decoding when reserved or
	// undefined bits are present.
	ErrUnrecognizedBits = errors.New("unrecognized quality bits")
)

// Bits common to every table.
const (
	BitOnline       uint8 = 0x01
	BitRestart      uint8 = 0x02
	BitCommLost     uint8 = 0x04
	BitRemoteForced uint8 = 0x08
	BitLocalForced  uint8 = 0x10
)

// Entry is one row of a flag table.
type Entry struct {
	Mask     uint8
	Name     string
	Reserved bool
}

// Table is the canonical flag layout for one kind of point.
type Table struct {
	name     string
	entries  []Entry
	defined  uint8
	reserved uint8
	latching uint8
}

func newTable(name string, latching uint8, entries ...Entry) *Table {
	t := &Table{name: name, entries: entries, latching: latching}
	for _, e := range entries {
		if bits.OnesCount8(e.Mask) != 1 || t.defined&e.Mask != 0 {
			panic(fmt.Sprintf("quality: table %s: bad mask 0x%02X for %s", name, e.Mask, e.Name))
		}
		t.defined |= e.Mask
		if e.Reserved {
			t.reserved |= e.Mask
		}
	}
	return t
}

func commonEntries(extra ...Entry) []Entry {
	return append([]Entry{
		{Mask: BitOnline, Name: "ONLINE"},
		{Mask: BitRestart, Name: "RESTART"},
		{Mask: BitCommLost, Name: "COMM_LOST"},
		{Mask: BitRemoteForced, Name: "REMOTE_FORCED"},
		{Mask: BitLocalForced, Name: "LOCAL_FORCED"},
	}, extra...)
}

// Canonical tables.
var (
	Counter = newTable("counter", 0x20|0x40, commonEntries(
		Entry{Mask: 0x20, Name: "ROLLOVER"},
		Entry{Mask: 0x40, Name: "DISCONTINUITY"},
		Entry{Mask: 0x80, Name: "RESERVED", Reserved: true},
	)...)

	FrozenCounter = newTable("frozen_counter", 0x20|0x40, commonEntries(
		Entry{Mask: 0x20, Name: "ROLLOVER"},
		Entry{Mask: 0x40, Name: "DISCONTINUITY"},
		Entry{Mask: 0x80, Name: "RESERVED", Reserved: true},
	)...)

	Binary = newTable("binary", 0x20, commonEntries(
		Entry{Mask: 0x20, Name: "CHATTER_FILTER"},
		Entry{Mask: 0x40, Name: "RESERVED", Reserved: true},
		Entry{Mask: 0x80, Name: "STATE"},
	)...)

	Analog = newTable("analog", 0x20|0x40, commonEntries(
		Entry{Mask: 0x20, Name: "OVERRANGE"},
		Entry{Mask: 0x40, Name: "REFERENCE_ERR"},
		Entry{Mask: 0x80, Name: "RESERVED", Reserved: true},
	)...)

	BinaryOutputStatus = newTable("binary_output_status", 0, commonEntries(
		Entry{Mask: 0x20, Name: "RESERVED1", Reserved: true},
		Entry{Mask: 0x40, Name: "RESERVED2", Reserved: true},
		Entry{Mask: 0x80, Name: "STATE"},
	)...)

	AnalogOutputStatus = newTable("analog_output_status", 0, commonEntries(
		Entry{Mask: 0x20, Name: "OVERRANGE"},
		Entry{Mask: 0x40, Name: "REFERENCE_ERR"},
		Entry{Mask: 0x80, Name: "RESERVED", Reserved: true},
	)...)
)

// Counter flags.
var (
	CounterOnline        = Flag{Counter, BitOnline}
	CounterRestart       = Flag{Counter, BitRestart}
	CounterCommLost      = Flag{Counter, BitCommLost}
	CounterRemoteForced  = Flag{Counter, BitRemoteForced}
	CounterLocalForced   = Flag{Counter, BitLocalForced}
	CounterRollover      = Flag{Counter, 0x20}
	CounterDiscontinuity = Flag{Counter, 0x40}
	CounterReserved      = Flag{Counter, 0x80}
)

// Binary input flags.
var (
	BinaryOnline        = Flag{Binary, BitOnline}
	BinaryRestart       = Flag{Binary, BitRestart}
	BinaryCommLost      = Flag{Binary, BitCommLost}
	BinaryRemoteForced  = Flag{Binary, BitRemoteForced}
	BinaryLocalForced   = Flag{Binary, BitLocalForced}
	BinaryChatterFilter = Flag{Binary, 0x20}
	BinaryState         = Flag{Binary, 0x80}
)

// Analog input flags.
var (
	AnalogOnline       = Flag{Analog, BitOnline}
	AnalogRestart      = Flag{Analog, BitRestart}
	AnalogCommLost     = Flag{Analog, BitCommLost}
	AnalogRemoteForced = Flag{Analog, BitRemoteForced}
	AnalogLocalForced  = Flag{Analog, BitLocalForced}
	AnalogOverrange    = Flag{Analog, 0x20}
	AnalogReferenceErr = Flag{Analog, 0x40}
)

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Entries returns a copy of the table rows in bit order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Defined returns the mask of all bits the table names.
func (t *Table) Defined() uint8 { return t.defined }

// Latching returns the bits whose fresh assertion is reportable.
func (t *Table) Latching() uint8 { return t.latching }

// Flag returns the table's flag with the given name.
func (t *Table) Flag(name string) (Flag, error) {
	for _, e := range t.entries {
		if e.Name == name {
			return Flag{t, e.Mask}, nil
		}
	}
	return Flag{}, fmt.Errorf("%w: %s has no flag %q", ErrInvalidFlag, t.name, name)
}

// Online, Restart and CommLost return the common flags of this table.
func (t *Table) Online() Flag   { return Flag{t, BitOnline} }
func (t *Table) Restart() Flag  { return Flag{t, BitRestart} }
func (t *Table) CommLost() Flag { return Flag{t, BitCommLost} }

// Empty returns the empty set for this table.
func (t *Table) Empty() Set { return Set{table: t} }

// FromBits decodes a raw quality byte. Bits the table does not define are
// dropped.
func (t *Table) FromBits(b uint8) Set {
	return Set{table: t, bits: b & t.defined}
}

// ToBits encodes flags into a byte. Every flag must belong to t.
func (t *Table) ToBits(flags ...Flag) (uint8, error) {
	var b uint8
	for _, f := range flags {
		if f.table != t || f.mask&t.defined == 0 || bits.OnesCount8(f.mask) != 1 {
			return 0, fmt.Errorf("%w: %s for table %s", ErrInvalidFlag, f, t.name)
		}
		b |= f.mask
	}
	return b, nil
}

// MustBits is like ToBits but panics on an invalid flag.
func (t *Table) MustBits(flags ...Flag) uint8 {
	b, err := t.ToBits(flags...)
	if err != nil {
		panic(err)
	}
	return b
}

// Of builds a set from flags. It panics on an invalid flag.
func (t *Table) Of(flags ...Flag) Set {
	return Set{table: t, bits: t.MustBits(flags...)}
}

func (t *Table) nameOf(mask uint8) string {
	for _, e := range t.entries {
		if e.Mask == mask {
			return e.Name
		}
	}
	return fmt.Sprintf("0x%02X", mask)
}

// Flag is a single named bit of a specific table.
type Flag struct {
	table *Table
	mask  uint8
}

// Table returns the table the flag belongs to.
func (f Flag) Table() *Table { return f.table }

// Mask returns the flag's bit.
func (f Flag) Mask() uint8 { return f.mask }

// String returns the flag name.
func (f Flag) String() string {
	if f.table == nil {
		return fmt.Sprintf("<nil>:0x%02X", f.mask)
	}
	return f.table.nameOf(f.mask)
}

// UnrecognizedBitsError reports reserved or undefined bits seen by a strict
// decoder.
type UnrecognizedBitsError struct {
	Table string
	Bits  uint8
}

func (e *UnrecognizedBitsError) Error() string {
	return fmt.Sprintf("%s: table %s: 0x%02X", ErrUnrecognizedBits, e.Table, e.Bits)
}

func (e *UnrecognizedBitsError) Unwrap() error { return ErrUnrecognizedBits }

// Decoder turns raw bytes into sets.
// In strict mode, reserved or undefined bits yield an *UnrecognizedBitsError
// alongside the decoded set; the set itself is always returned.
type Decoder struct {
	Strict bool
}

// Decode decodes b against t.
func (d Decoder) Decode(t *Table, b uint8) (Set, error) {
	s := t.FromBits(b)
	if !d.Strict {
		return s, nil
	}
	if odd := b&^t.defined | b&t.reserved; odd != 0 {
		return s, &UnrecognizedBitsError{Table: t.name, Bits: odd}
	}
	return s, nil
}
