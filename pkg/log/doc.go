// Package log records protocol captures for telecore.
//
// Captures are separate from operational logging (slog). A capture is a
// machine-readable trace of a channel: raw frames, decoded point updates,
// database events, channel state changes and errors.
//
// Loggers compose:
//
//	file, err := log.NewFileLogger("/var/log/telecore/master.tlog")
//	console := log.NewFilterLogger(log.NewSlogAdapter(slog.Default()),
//		log.Filter{Category: &pointCategory})
//	protocol := log.NewMultiLogger(file, console)
//
// # File Format
//
// A capture file (.tlog) holds a FileHeader map {1: "TLOG", 2: version,
// 3: created, 4: program} followed by CBOR-encoded Events with integer
// keys. Each record is self-delimiting, so a writer may append to an
// existing file after its header has been checked. Reader iterates the
// events with an optional Filter.
package log
