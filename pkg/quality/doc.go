// Package quality implements the one-byte quality bitfields that annotate
// telemetry point values.
//
// Every point type owns a closed, canonical flag table. A table maps each
// bit position to a named flag; the bit values are fixed powers of two and
// never change, since they appear on the wire.
//
// # Counter Layout
//
//	0x01 ONLINE          value is good and can be trusted
//	0x02 RESTART         point has not been populated since startup
//	0x04 COMM_LOST       communication with the source has been lost
//	0x08 REMOTE_FORCED   value forced somewhere in the system
//	0x10 LOCAL_FORCED    value forced on the originating device
//	0x20 ROLLOVER        counter filled up and rolled over
//	0x40 DISCONTINUITY   unusual change in value
//	0x80 RESERVED
//
// # Sets
//
// A Set is a (table, byte) pair. All algebra works directly on the byte, so
// membership tests and unions never allocate. Flags carry their table, which
// makes it impossible to encode a binary-input flag against the counter
// table without getting ErrInvalidFlag.
//
// # Staleness
//
// A value whose quality lacks ONLINE while carrying RESTART or COMM_LOST is
// not authoritative. Consumers must treat such points as stale.
package quality
