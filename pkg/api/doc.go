// Package api serves the point database over HTTP.
//
//	GET /points                   tables and their point counts
//	GET /points/{type}            ordered snapshot of one table
//	GET /points/{type}/{index}    one point, 404 if never initialized
//	GET /history                  recent events (?type=&index=&limit=)
//	GET /channels                 session status
//	GET /health                   liveness
//	GET /metrics                  Prometheus exposition
//
// Snapshots are JSON by default; "Accept: application/cbor" returns a wire
// SnapshotFrame instead.
package api
