package quality

import (
	"fmt"
	"strings"
)

// Set is an immutable set of flags from a single table.
// The zero Set has no table and contains nothing.
type Set struct {
	table *Table
	bits  uint8
}

// Table returns the set's table.
func (s Set) Table() *Table { return s.table }

// Bits returns the wire byte.
func (s Set) Bits() uint8 { return s.bits }

// IsEmpty returns true if no flag is set.
func (s Set) IsEmpty() bool { return s.bits == 0 }

// Contains reports whether f is in the set.
func (s Set) Contains(f Flag) bool {
	return f.table == s.table && s.bits&f.mask != 0
}

// Union returns s ∪ o.
func (s Set) Union(o Set) Set {
	s.mustMatch(o)
	return Set{table: s.tableOr(o), bits: s.bits | o.bits}
}

// Intersect returns s ∩ o.
func (s Set) Intersect(o Set) Set {
	s.mustMatch(o)
	return Set{table: s.tableOr(o), bits: s.bits & o.bits}
}

// Difference returns s \ o.
func (s Set) Difference(o Set) Set {
	s.mustMatch(o)
	return Set{table: s.tableOr(o), bits: s.bits &^ o.bits}
}

// With returns s with f added.
func (s Set) With(f Flag) Set {
	return s.Union(Set{table: f.table, bits: f.mask})
}

// Without returns s with f removed.
func (s Set) Without(f Flag) Set {
	return s.Difference(Set{table: f.table, bits: f.mask})
}

// IsOnline reports whether ONLINE is set.
func (s Set) IsOnline() bool {
	return s.bits&BitOnline != 0
}

// IsStale reports whether the value is not authoritative: ONLINE is absent
// and RESTART or COMM_LOST is present.
func (s Set) IsStale() bool {
	return s.bits&BitOnline == 0 && s.bits&(BitRestart|BitCommLost) != 0
}

// Flags returns the member flags in bit order.
func (s Set) Flags() []Flag {
	if s.table == nil {
		return nil
	}
	var out []Flag
	for _, e := range s.table.entries {
		if s.bits&e.Mask != 0 {
			out = append(out, Flag{s.table, e.Mask})
		}
	}
	return out
}

// Names returns the names of the member flags in bit order.
func (s Set) Names() []string {
	flags := s.Flags()
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = f.String()
	}
	return names
}

// String returns e.g. "{ONLINE|ROLLOVER}".
func (s Set) String() string {
	return "{" + strings.Join(s.Names(), "|") + "}"
}

func (s Set) tableOr(o Set) *Table {
	if s.table != nil {
		return s.table
	}
	return o.table
}

// mustMatch panics when combining sets of different tables. An empty
// zero-value set combines with anything.
func (s Set) mustMatch(o Set) {
	if s.table == nil || o.table == nil || s.table == o.table {
		return
	}
	panic(fmt.Errorf("%w: cannot combine %s and %s sets", ErrInvalidFlag, s.table.name, o.table.name))
}
