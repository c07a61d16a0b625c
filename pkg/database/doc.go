// Package database holds the current value of every measurement point,
// one table per point type.
//
// ApplyUpdate is the only mutation entry point. It creates an index on first
// use (quality RESTART) and otherwise replaces the stored point, returning
// whether the change is reportable.
//
// # Concurrency
//
// Each table has its own lock. Writers to one table are serialised; readers
// take a copy under a read lock, so Snapshot and Get never return a live
// view. A snapshot taken before an update never reflects it.
//
// Event handlers run after the table lock has been released.
//
// Indices are never removed. A point that goes away permanently is
// represented by quality COMM_LOST (see MarkOffline).
package database
