// Package persistence keeps point state across restarts.
//
// SnapshotStore writes the whole point database to a JSON file so a master
// can resume with the last known values (and their quality) after a
// restart. HistoryStore records reportable events in SQLite for later
// inspection.
package persistence
