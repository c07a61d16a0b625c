package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/telecore/telecore-go/pkg/database"
	"github.com/telecore/telecore-go/pkg/point"
)

// SnapshotVersion is the current version of the snapshot file format.
const SnapshotVersion = 1

// Snapshot is the persisted state of a point database.
type Snapshot struct {
	// Version is the snapshot file format version.
	Version int `json:"version"`

	// SavedAt is when the snapshot was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Tables holds the points of every non-empty table, ordered by index.
	Tables map[point.Type][]PointRecord `json:"tables,omitempty"`
}

// Capture copies every table of db into a snapshot.
func Capture(db *database.Database) (*Snapshot, error) {
	s := &Snapshot{
		Version: SnapshotVersion,
		SavedAt: time.Now(),
		Tables:  make(map[point.Type][]PointRecord),
	}
	for t, points := range db.SnapshotAll() {
		if len(points) == 0 {
			continue
		}
		records := make([]PointRecord, 0, len(points))
		for _, p := range points {
			r, err := newPointRecord(p)
			if err != nil {
				return nil, fmt.Errorf("capture %s[%d]: %w", t, p.Index, err)
			}
			records = append(records, r)
		}
		s.Tables[t] = records
	}
	return s, nil
}

// RestoreInto loads the snapshot into db without raising events. Points
// are restored with the quality they were saved with.
func (s *Snapshot) RestoreInto(db *database.Database) (int, error) {
	if s.Version > SnapshotVersion {
		return 0, fmt.Errorf("snapshot version %d is newer than supported version %d", s.Version, SnapshotVersion)
	}
	n := 0
	for t, records := range s.Tables {
		points := make([]point.Point, 0, len(records))
		for _, r := range records {
			p, err := r.toPoint(t)
			if err != nil {
				return n, fmt.Errorf("restore: %w", err)
			}
			points = append(points, p)
		}
		if err := db.Restore(t, points); err != nil {
			return n, fmt.Errorf("restore %s: %w", t, err)
		}
		n += len(points)
	}
	return n, nil
}

// SnapshotStore manages persistence of snapshots to a JSON file.
type SnapshotStore struct {
	mu   sync.Mutex
	path string
}

// NewSnapshotStore creates a new snapshot store.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Path returns the file path.
func (s *SnapshotStore) Path() string { return s.path }

// Save persists the snapshot to disk. The file is replaced atomically.
func (s *SnapshotStore) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	snap.Version = SnapshotVersion
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the snapshot from disk.
// Returns nil, nil if the file doesn't exist.
func (s *SnapshotStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return snap, nil
}

// Clear removes the snapshot file.
func (s *SnapshotStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
