package persistence

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/telecore/telecore-go/pkg/database"
	"github.com/telecore/telecore-go/pkg/point"
	"github.com/telecore/telecore-go/pkg/quality"
)

func seededDatabase(t *testing.T) *database.Database {
	t.Helper()
	db := database.New(database.Config{})
	updates := []database.Update{
		{Type: point.TypeCounter, Index: 0, Value: point.CounterValue(41), Quality: 0x01, Timestamp: 1000},
		{Type: point.TypeCounter, Index: 3, Value: point.CounterValue(7), Quality: 0x21, Timestamp: point.NoTimestamp},
		{Type: point.TypeBinary, Index: 1, Value: point.BoolValue(false), Quality: 0x01, Timestamp: 2000},
		{Type: point.TypeAnalog, Index: 2, Value: point.FloatValue(math.NaN()), Quality: 0x01, Timestamp: 3000},
		{Type: point.TypeAnalog, Index: 4, Value: point.FloatValue(-12.25), Quality: 0x05, Timestamp: 4000},
	}
	for _, u := range updates {
		if _, err := db.ApplyUpdate(u); err != nil {
			t.Fatalf("ApplyUpdate(%+v) error = %v", u, err)
		}
	}
	return db
}

func TestSnapshotStore(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewSnapshotStore(filepath.Join(t.TempDir(), "missing.json"))
		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("CaptureSaveLoadRestore", func(t *testing.T) {
		src := seededDatabase(t)
		store := NewSnapshotStore(filepath.Join(t.TempDir(), "nested", "snapshot.json"))

		snap, err := Capture(src)
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if err := store.Save(snap); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		loaded, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if loaded.Version != SnapshotVersion {
			t.Errorf("Version = %d, want %d", loaded.Version, SnapshotVersion)
		}

		dst := database.New(database.Config{})
		var events int
		dst.OnEvent(func(database.Event) { events++ })

		n, err := loaded.RestoreInto(dst)
		if err != nil {
			t.Fatalf("RestoreInto() error = %v", err)
		}
		if n != 5 {
			t.Errorf("restored %d points, want 5", n)
		}
		if events != 0 {
			t.Errorf("restore raised %d events, want 0", events)
		}

		for _, typ := range point.Types {
			want := src.Snapshot(typ)
			got := dst.Snapshot(typ)
			if len(got) != len(want) {
				t.Fatalf("%s: %d points, want %d", typ, len(got), len(want))
			}
			for i := range want {
				if !got[i].Equal(want[i]) {
					t.Errorf("%s[%d] = %v, want %v", typ, i, got[i], want[i])
				}
			}
		}

		p, err := dst.Get(point.TypeCounter, 3)
		if err != nil {
			t.Fatal(err)
		}
		if !p.Quality.Contains(quality.CounterRollover) || p.Timestamp.IsSet() {
			t.Errorf("counter[3] = %v, want ROLLOVER and no timestamp", p)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewSnapshotStore(filepath.Join(t.TempDir(), "snapshot.json"))
		if err := store.Save(&Snapshot{}); err != nil {
			t.Fatal(err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Errorf("second Clear() error = %v", err)
		}
		if got, _ := store.Load(); got != nil {
			t.Errorf("Load() after Clear = %v", got)
		}
	})

	t.Run("RejectsNewerVersion", func(t *testing.T) {
		snap := &Snapshot{Version: SnapshotVersion + 1}
		if _, err := snap.RestoreInto(database.New(database.Config{})); err == nil {
			t.Error("RestoreInto() accepted a newer version")
		}
	})
}

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name    string
		kind    point.ValueKind
		raw     string
		want    point.Value
		wantErr bool
	}{
		{"bool", point.KindBool, `true`, point.BoolValue(true), false},
		{"float", point.KindFloat, `1.5`, point.FloatValue(1.5), false},
		{"nan", point.KindFloat, `"NaN"`, point.FloatValue(math.NaN()), false},
		{"neg inf", point.KindFloat, `"-Inf"`, point.FloatValue(math.Inf(-1)), false},
		{"counter", point.KindCounter, `4294967295`, point.CounterValue(math.MaxUint32), false},
		{"counter overflow", point.KindCounter, `4294967296`, point.Value{}, true},
		{"counter negative", point.KindCounter, `-1`, point.Value{}, true},
		{"bool as number", point.KindBool, `1`, point.Value{}, true},
		{"float garbage", point.KindFloat, `"fast"`, point.Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeValue(tt.kind, []byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Errorf("decodeValue(%s) = %v, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeValue(%s) error = %v", tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("decodeValue(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestHistoryStore(t *testing.T) {
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryStore() error = %v", err)
	}
	defer store.Close()

	db := database.New(database.Config{})
	rec := store.NewRecorder(RecorderConfig{})
	db.OnEvent(rec.Handler())

	apply := func(idx uint16, v uint32, q uint8, ts point.Timestamp) {
		t.Helper()
		if _, err := db.ApplyUpdate(database.Update{
			Type: point.TypeCounter, Index: idx, Value: point.CounterValue(v), Quality: q, Timestamp: ts,
		}); err != nil {
			t.Fatal(err)
		}
	}

	apply(0, 10, 0x01, 100)
	apply(0, 10, 0x01, 100) // not an event
	apply(0, 11, 0x01, 200)
	apply(1, 5, 0x01, point.NoTimestamp)
	rec.Close()

	n, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("Count() = %d, want 3", n)
	}

	recs, err := store.Query(point.TypeCounter, 0, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Query() returned %d records, want 2", len(recs))
	}
	if c, _ := recs[0].Value.Counter(); c != 11 {
		t.Errorf("newest value = %v, want 11", recs[0].Value)
	}
	if recs[0].Timestamp != 200 || recs[0].Reasons&point.ReasonValueChanged == 0 {
		t.Errorf("newest record = %+v", recs[0])
	}
	if recs[1].OldQuality != 0x02 || recs[1].Quality != 0x01 {
		t.Errorf("first record qualities = %#x -> %#x, want 0x02 -> 0x01", recs[1].OldQuality, recs[1].Quality)
	}

	recent, err := store.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].Index != 1 || recent[0].Timestamp.IsSet() {
		t.Errorf("Recent(1) = %+v", recent)
	}

	removed, err := store.Prune(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("Prune() removed %d, want 3", removed)
	}
}

func TestRecorderDoesNotBlockUpdates(t *testing.T) {
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryStore() error = %v", err)
	}
	defer store.Close()

	rec := store.NewRecorder(RecorderConfig{QueueSize: 1})
	db := database.New(database.Config{})
	db.OnEvent(rec.Handler())

	// Hold the store so the writer cannot make progress.
	store.mu.Lock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := uint16(0); i < 3; i++ {
			if _, err := db.ApplyUpdate(database.Update{
				Type: point.TypeCounter, Index: i, Value: point.CounterValue(1), Quality: 0x01, Timestamp: point.NoTimestamp,
			}); err != nil {
				t.Error(err)
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		store.mu.Unlock()
		t.Fatal("ApplyUpdate blocked on the history store")
	}
	store.mu.Unlock()

	rec.Close()
	if rec.Dropped() == 0 {
		t.Error("Dropped() = 0, want overflow to be counted")
	}
	n, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if uint64(n)+rec.Dropped() != 3 {
		t.Errorf("stored %d + dropped %d, want 3", n, rec.Dropped())
	}

	// Events after Close are counted, not sent.
	before := rec.Dropped()
	rec.Handler()(database.Event{Type: point.TypeCounter})
	if rec.Dropped() != before+1 {
		t.Error("event after Close was not counted")
	}
	rec.Close()
}
