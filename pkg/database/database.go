package database

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/telecore/telecore-go/internal/sl"
	"github.com/telecore/telecore-go/pkg/log"
	"github.com/telecore/telecore-go/pkg/point"
	"github.com/telecore/telecore-go/pkg/quality"
)

// Database errors.
var (
	ErrNotFound = errors.New("point not found")
)

// Update is one decoded point update.
type Update struct {
	Type      point.Type
	Index     uint16
	Value     point.Value
	Quality   uint8
	Timestamp point.Timestamp
}

// Event is a reportable change delivered to handlers.
type Event struct {
	Type    point.Type
	Old     point.Point
	New     point.Point
	Outcome point.Outcome
}

// EventHandler receives reportable events.
type EventHandler func(Event)

// Config configures a Database.
type Config struct {
	// StrictQuality reports reserved or undefined quality bits as
	// diagnostics. Updates are applied either way.
	StrictQuality bool

	// Logger receives operational diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives point events. Optional.
	ProtocolLogger log.Logger
}

// Database is the indexed point store.
type Database struct {
	decoder  quality.Decoder
	logger   *slog.Logger
	protoLog log.Logger

	tables map[point.Type]*table

	handlersMu sync.RWMutex
	handlers   []EventHandler
}

type table struct {
	mu     sync.RWMutex
	typ    point.Type
	points map[uint16]*point.Point
}

// New creates a database with an empty table for every point type.
func New(cfg Config) *Database {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	db := &Database{
		decoder:  quality.Decoder{Strict: cfg.StrictQuality},
		logger:   logger,
		protoLog: cfg.ProtocolLogger,
		tables:   make(map[point.Type]*table, len(point.Types)),
	}
	for _, t := range point.Types {
		db.tables[t] = &table{typ: t, points: make(map[uint16]*point.Point)}
	}
	return db
}

// OnEvent registers a handler for reportable events.
func (db *Database) OnEvent(h EventHandler) {
	db.handlersMu.Lock()
	defer db.handlersMu.Unlock()
	db.handlers = append(db.handlers, h)
}

func (db *Database) table(t point.Type) (*table, error) {
	tbl, ok := db.tables[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", point.ErrUnknownType, uint8(t))
	}
	return tbl, nil
}

// Initialize creates indices 0..count-1 of type t. Existing points are left
// untouched.
func (db *Database) Initialize(t point.Type, count uint16) error {
	tbl, err := db.table(t)
	if err != nil {
		return err
	}
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	for i := uint16(0); i < count; i++ {
		tbl.ensure(i)
	}
	return nil
}

// Declare creates the given indices of type t. Existing points are left
// untouched.
func (db *Database) Declare(t point.Type, indices ...uint16) error {
	tbl, err := db.table(t)
	if err != nil {
		return err
	}
	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	for _, i := range indices {
		tbl.ensure(i)
	}
	return nil
}

func (tbl *table) ensure(index uint16) *point.Point {
	p, ok := tbl.points[index]
	if !ok {
		np := point.New(tbl.typ, index)
		p = &np
		tbl.points[index] = p
	}
	return p
}

// ApplyUpdate applies u and reports whether it is an event.
func (db *Database) ApplyUpdate(u Update) (point.Outcome, error) {
	tbl, err := db.table(u.Type)
	if err != nil {
		return point.Outcome{}, err
	}
	if kind := u.Type.ValueKind(); u.Value.Kind() != kind {
		return point.Outcome{}, fmt.Errorf("%w: %s wants %s, got %s",
			point.ErrValueKind, u.Type, kind, u.Value.Kind())
	}

	q, qerr := db.decoder.Decode(u.Type.Table(), u.Quality)
	if qerr != nil {
		db.logger.Warn("quality diagnostic",
			slog.String("type", u.Type.String()),
			slog.Int("index", int(u.Index)),
			sl.Err(qerr))
	}

	tbl.mu.Lock()
	p := tbl.ensure(u.Index)
	old := *p
	outcome := p.Update(u.Value, q, u.Timestamp)
	updated := *p
	tbl.mu.Unlock()

	if outcome.IsEvent() {
		db.emit(Event{Type: u.Type, Old: old, New: updated, Outcome: outcome})
	}
	return outcome, nil
}

// MarkOffline replaces the quality of every point of type t with exactly
// {COMM_LOST}, keeping values. The timestamp is replaced with ts.
func (db *Database) MarkOffline(t point.Type, ts point.Timestamp) (int, error) {
	return db.markOffline(t, ts, func(tbl *table) []*point.Point {
		out := make([]*point.Point, 0, len(tbl.points))
		for _, p := range tbl.points {
			out = append(out, p)
		}
		return out
	})
}

// MarkOfflinePoints is MarkOffline restricted to the given indices.
// Indices not in the table are skipped.
func (db *Database) MarkOfflinePoints(t point.Type, indices []uint16, ts point.Timestamp) (int, error) {
	return db.markOffline(t, ts, func(tbl *table) []*point.Point {
		out := make([]*point.Point, 0, len(indices))
		for _, i := range indices {
			if p, ok := tbl.points[i]; ok {
				out = append(out, p)
			}
		}
		return out
	})
}

func (db *Database) markOffline(t point.Type, ts point.Timestamp, pick func(*table) []*point.Point) (int, error) {
	tbl, err := db.table(t)
	if err != nil {
		return 0, err
	}
	q := t.Table().Of(t.Table().CommLost())

	var events []Event
	tbl.mu.Lock()
	for _, p := range pick(tbl) {
		old := *p
		outcome := p.Update(p.Value, q, ts)
		if outcome.IsEvent() {
			events = append(events, Event{Type: t, Old: old, New: *p, Outcome: outcome})
		}
	}
	tbl.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].New.Index < events[j].New.Index })
	for _, e := range events {
		db.emit(e)
	}
	return len(events), nil
}

// Get returns a copy of one point.
func (db *Database) Get(t point.Type, index uint16) (point.Point, error) {
	tbl, err := db.table(t)
	if err != nil {
		return point.Point{}, err
	}
	tbl.mu.RLock()
	defer tbl.mu.RUnlock()
	p, ok := tbl.points[index]
	if !ok {
		return point.Point{}, fmt.Errorf("%w: %s[%d]", ErrNotFound, t, index)
	}
	return *p, nil
}

// Snapshot returns a point-in-time copy of table t ordered by index.
func (db *Database) Snapshot(t point.Type) []point.Point {
	tbl, err := db.table(t)
	if err != nil {
		return nil
	}
	tbl.mu.RLock()
	out := make([]point.Point, 0, len(tbl.points))
	for _, p := range tbl.points {
		out = append(out, *p)
	}
	tbl.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// SnapshotAll snapshots every non-empty table. Tables are copied one at a
// time, so the result is consistent per table only.
func (db *Database) SnapshotAll() map[point.Type][]point.Point {
	out := make(map[point.Type][]point.Point)
	for _, t := range point.Types {
		if snap := db.Snapshot(t); len(snap) > 0 {
			out[t] = snap
		}
	}
	return out
}

// Count returns the number of points in table t.
func (db *Database) Count(t point.Type) int {
	tbl, err := db.table(t)
	if err != nil {
		return 0
	}
	tbl.mu.RLock()
	defer tbl.mu.RUnlock()
	return len(tbl.points)
}

// Restore loads points into table t, replacing existing entries without
// raising events. Points whose quality belongs to another table are
// rejected.
func (db *Database) Restore(t point.Type, points []point.Point) error {
	tbl, err := db.table(t)
	if err != nil {
		return err
	}
	for _, p := range points {
		if p.Value.Kind() != t.ValueKind() {
			return fmt.Errorf("%w: restoring %s[%d]", point.ErrValueKind, t, p.Index)
		}
		if qt := p.Quality.Table(); qt != nil && qt != t.Table() {
			return fmt.Errorf("%w: restoring %s[%d] with %s quality",
				quality.ErrInvalidFlag, t, p.Index, qt.Name())
		}
	}

	tbl.mu.Lock()
	defer tbl.mu.Unlock()
	for _, p := range points {
		cp := p
		cp.Quality = t.Table().FromBits(p.Quality.Bits())
		tbl.points[p.Index] = &cp
	}
	return nil
}

func (db *Database) emit(e Event) {
	if db.protoLog != nil {
		db.protoLog.Log(log.Event{
			Timestamp: time.Now(),
			Layer:     log.LayerDatabase,
			Category:  log.CategoryPoint,
			Point: &log.PointEvent{
				PointType:  e.Type.String(),
				Index:      e.New.Index,
				OldQuality: e.Old.Quality.Bits(),
				NewQuality: e.New.Quality.Bits(),
				Reasons:    e.Outcome.Reasons.String(),
			},
		})
	}

	db.handlersMu.RLock()
	handlers := make([]EventHandler, len(db.handlers))
	copy(handlers, db.handlers)
	db.handlersMu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
