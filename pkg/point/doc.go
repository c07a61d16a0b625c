// Package point defines measurement points: a timestamped value plus its
// quality, stored at an index within a per-type table.
//
// Updates are total replacements of value, quality and timestamp. Whether an
// update is reportable is decided by Classify, a pure function of the old
// and new point:
//
//   - the value changed
//   - the ONLINE bit changed
//   - a latching quality bit (for counters ROLLOVER or DISCONTINUITY) was
//     newly set
//
// This package never infers rollover. Callers that see a counter go
// backwards must set ROLLOVER themselves.
package point
