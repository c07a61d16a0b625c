// Package wire defines the CBOR frame format carried over a channel.
//
// Frames use CBOR (RFC 8949) maps with integer keys. Every frame starts
// with its FrameType under key 1 and a sequence number under key 2:
//
//	UpdateFrame   {1: 1, 2: seq, 3: [update...]}
//	SnapshotFrame {1: 2, 2: seq, 3: pointType, 4: [update...]}
//
// An update is {1: pointType, 2: index, 3: value, 4: qualityBits, 5: tsMillis}.
// Key 5 is absent when the point carries no timestamp. The value is a CBOR
// bool for binary points, a float for analog points and an unsigned
// integer for counters.
package wire
