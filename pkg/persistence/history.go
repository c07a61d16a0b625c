package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/telecore/telecore-go/pkg/database"
	"github.com/telecore/telecore-go/pkg/point"
)

// HistoryRecord is one stored reportable event.
type HistoryRecord struct {
	ID         int64
	Type       point.Type
	Index      uint16
	Value      point.Value
	OldQuality uint8
	Quality    uint8
	Timestamp  point.Timestamp
	Reasons    point.Reason
	RecordedAt time.Time
}

// HistoryStore provides SQLite persistence for reportable events.
type HistoryStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewHistoryStore opens the store at dbPath.
// Use ":memory:" for an in-memory database.
func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *HistoryStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS point_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		point_type INTEGER NOT NULL,
		point_index INTEGER NOT NULL,
		value_json TEXT NOT NULL,
		old_quality INTEGER NOT NULL,
		quality INTEGER NOT NULL,
		timestamp_ms INTEGER,
		reasons INTEGER NOT NULL,
		recorded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_point_events_point ON point_events(point_type, point_index);
	CREATE INDEX IF NOT EXISTS idx_point_events_recorded_at ON point_events(recorded_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// Record stores a database event.
func (s *HistoryStore) Record(e database.Event) error {
	value, err := encodeValue(e.New.Value)
	if err != nil {
		return err
	}
	var ts sql.NullInt64
	if e.New.Timestamp.IsSet() {
		ts = sql.NullInt64{Int64: int64(e.New.Timestamp), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO point_events
			(point_type, point_index, value_json, old_quality, quality, timestamp_ms, reasons, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, uint8(e.Type), e.New.Index, string(value), e.Old.Quality.Bits(), e.New.Quality.Bits(),
		ts, uint8(e.Outcome.Reasons), time.Now().UTC())
	return err
}

// Query returns the most recent events for one point, newest first.
// limit <= 0 returns all.
func (s *HistoryStore) Query(t point.Type, index uint16, limit int) ([]HistoryRecord, error) {
	return s.query(`WHERE point_type = ? AND point_index = ?`, limit, uint8(t), index)
}

// Recent returns the most recent events across all points, newest first.
func (s *HistoryStore) Recent(limit int) ([]HistoryRecord, error) {
	return s.query(``, limit)
}

func (s *HistoryStore) query(where string, limit int, args ...any) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, point_type, point_index, value_json, old_quality, quality,
		       timestamp_ms, reasons, recorded_at
		FROM point_events `+where+`
		ORDER BY id DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var (
			r       HistoryRecord
			typ     uint8
			reasons uint8
			value   string
			ts      sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &typ, &r.Index, &value, &r.OldQuality, &r.Quality,
			&ts, &reasons, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.Type = point.Type(typ)
		r.Reasons = point.Reason(reasons)
		r.Timestamp = point.NoTimestamp
		if ts.Valid {
			r.Timestamp = point.Timestamp(ts.Int64)
		}
		r.Value, err = decodeValue(r.Type.ValueKind(), json.RawMessage(value))
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored events.
func (s *HistoryStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM point_events`).Scan(&n)
	return n, err
}

// Prune deletes events recorded before cutoff and returns how many were
// removed.
func (s *HistoryStore) Prune(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM point_events WHERE recorded_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
