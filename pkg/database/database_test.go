package database

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telecore/telecore-go/internal/sl"
	"github.com/telecore/telecore-go/pkg/log"
	"github.com/telecore/telecore-go/pkg/point"
	"github.com/telecore/telecore-go/pkg/quality"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func counterUpdate(index uint16, v uint32, q uint8, ts point.Timestamp) Update {
	return Update{Type: point.TypeCounter, Index: index, Value: point.CounterValue(v), Quality: q, Timestamp: ts}
}

func TestInitializeRestartOnly(t *testing.T) {
	db := New(Config{})
	require.NoError(t, db.Initialize(point.TypeCounter, 3))

	for i := uint16(0); i < 3; i++ {
		p, err := db.Get(point.TypeCounter, i)
		require.NoError(t, err)
		assert.Equal(t, quality.BitRestart, p.Quality.Bits(), "index %d", i)
		assert.False(t, p.Timestamp.IsSet())
	}
	assert.Equal(t, 3, db.Count(point.TypeCounter))
}

func TestGetNotFound(t *testing.T) {
	db := New(Config{})
	_, err := db.Get(point.TypeAnalog, 5)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestApplyUpdateCreatesIndex(t *testing.T) {
	db := New(Config{})

	out, err := db.ApplyUpdate(counterUpdate(9, 100, 0x01, 5000))
	require.NoError(t, err)
	assert.True(t, out.IsEvent())
	assert.Equal(t, point.ReasonValueChanged|point.ReasonOnlineChanged, out.Reasons)

	p, err := db.Get(point.TypeCounter, 9)
	require.NoError(t, err)
	assert.Equal(t, point.CounterValue(100), p.Value)
	assert.Equal(t, uint8(0x01), p.Quality.Bits())
	assert.Equal(t, point.Timestamp(5000), p.Timestamp)
}

func TestApplyUpdateIdempotent(t *testing.T) {
	db := New(Config{})
	u := counterUpdate(1, 7, 0x01, 1)

	first, err := db.ApplyUpdate(u)
	require.NoError(t, err)
	assert.True(t, first.IsEvent())

	second, err := db.ApplyUpdate(u)
	require.NoError(t, err)
	assert.False(t, second.IsEvent(), "second identical update reported %v", second.Reasons)
}

func TestApplyUpdateReplacesQuality(t *testing.T) {
	db := New(Config{})
	_, err := db.ApplyUpdate(counterUpdate(0, 1, 0x01|0x20, 1))
	require.NoError(t, err)

	// Total replacement: ROLLOVER must not survive.
	_, err = db.ApplyUpdate(counterUpdate(0, 2, 0x01, 2))
	require.NoError(t, err)

	p, err := db.Get(point.TypeCounter, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x01), p.Quality.Bits())
}

func TestApplyUpdateValueKindMismatch(t *testing.T) {
	db := New(Config{})
	_, err := db.ApplyUpdate(Update{Type: point.TypeBinary, Index: 0, Value: point.FloatValue(1)})
	assert.True(t, errors.Is(err, point.ErrValueKind), "got %v", err)

	_, err = db.Get(point.TypeBinary, 0)
	assert.True(t, errors.Is(err, ErrNotFound), "rejected update must not create index")
}

func TestApplyUpdateUnknownType(t *testing.T) {
	db := New(Config{})
	_, err := db.ApplyUpdate(Update{Type: point.Type(200)})
	assert.True(t, errors.Is(err, point.ErrUnknownType), "got %v", err)
}

func TestStrictQualityStillApplies(t *testing.T) {
	var buf bytes.Buffer
	db := New(Config{StrictQuality: true, Logger: sl.New(&buf, "debug", "text")})
	_, err := db.ApplyUpdate(counterUpdate(0, 1, 0x81, 1))
	require.NoError(t, err)

	p, err := db.Get(point.TypeCounter, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x81), p.Quality.Bits())
	assert.Contains(t, buf.String(), "quality diagnostic")
	assert.Contains(t, buf.String(), "error=")
}

func TestSnapshotOrderedAndIsolated(t *testing.T) {
	db := New(Config{})
	for _, i := range []uint16{30, 2, 17} {
		_, err := db.ApplyUpdate(counterUpdate(i, uint32(i), 0x01, 1))
		require.NoError(t, err)
	}

	snap := db.Snapshot(point.TypeCounter)
	require.Len(t, snap, 3)
	assert.Equal(t, []uint16{2, 17, 30}, []uint16{snap[0].Index, snap[1].Index, snap[2].Index})

	_, err := db.ApplyUpdate(counterUpdate(2, 999, 0x04, 2))
	require.NoError(t, err)

	assert.Equal(t, point.CounterValue(2), snap[0].Value, "snapshot must not see later update")
	assert.Equal(t, uint8(0x01), snap[0].Quality.Bits())

	assert.Empty(t, db.Snapshot(point.TypeBinary))
}

func TestSnapshotConcurrentWithUpdates(t *testing.T) {
	db := New(Config{})
	require.NoError(t, db.Initialize(point.TypeAnalog, 64))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for n := 0; n < 500; n++ {
			_, _ = db.ApplyUpdate(Update{
				Type:    point.TypeAnalog,
				Index:   uint16(n % 64),
				Value:   point.FloatValue(float64(n)),
				Quality: 0x01,
			})
		}
	}()
	go func() {
		defer wg.Done()
		for n := 0; n < 200; n++ {
			snap := db.Snapshot(point.TypeAnalog)
			if len(snap) != 64 {
				t.Errorf("snapshot len = %d, want 64", len(snap))
				return
			}
		}
	}()
	wg.Wait()
}

func TestEventHandlersAndProtocolLog(t *testing.T) {
	rec := &recordingLogger{}
	db := New(Config{ProtocolLogger: rec})

	var got []Event
	db.OnEvent(func(e Event) {
		// Handlers run outside the table lock.
		_, _ = db.Get(e.Type, e.New.Index)
		got = append(got, e)
	})

	_, err := db.ApplyUpdate(counterUpdate(4, 10, 0x01, 1))
	require.NoError(t, err)
	_, err = db.ApplyUpdate(counterUpdate(4, 10, 0x01, 2)) // refresh only
	require.NoError(t, err)
	_, err = db.ApplyUpdate(counterUpdate(4, 10, 0x01|0x40, 3)) // discontinuity
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, point.ReasonLatchSet, got[1].Outcome.Reasons)
	assert.Equal(t, uint8(0x01), got[1].Old.Quality.Bits())
	assert.Equal(t, uint8(0x41), got[1].New.Quality.Bits())

	require.Len(t, rec.events, 2)
	assert.Equal(t, log.LayerDatabase, rec.events[0].Layer)
	assert.Equal(t, "counter", rec.events[0].Point.PointType)
	assert.Equal(t, "LATCH", rec.events[1].Point.Reasons)
}

func TestMarkOffline(t *testing.T) {
	db := New(Config{})
	_, err := db.ApplyUpdate(Update{Type: point.TypeBinary, Index: 0, Value: point.BoolValue(true), Quality: 0x81})
	require.NoError(t, err)
	_, err = db.ApplyUpdate(Update{Type: point.TypeBinary, Index: 1, Value: point.BoolValue(false), Quality: 0x01})
	require.NoError(t, err)

	var events int
	db.OnEvent(func(Event) { events++ })

	n, err := db.MarkOffline(point.TypeBinary, 77)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, events)

	snap := db.Snapshot(point.TypeBinary)
	require.Len(t, snap, 2)
	for _, p := range snap {
		assert.Equal(t, quality.BitCommLost, p.Quality.Bits())
		assert.True(t, p.IsStale())
		assert.Equal(t, point.Timestamp(77), p.Timestamp)
	}
	assert.Equal(t, point.BoolValue(true), snap[0].Value, "value kept")
}

func TestMarkOfflinePoints(t *testing.T) {
	db := New(Config{})
	for i := uint16(0); i < 3; i++ {
		_, err := db.ApplyUpdate(Update{Type: point.TypeCounter, Index: i, Value: point.CounterValue(uint32(i)), Quality: 0x01})
		require.NoError(t, err)
	}

	n, err := db.MarkOfflinePoints(point.TypeCounter, []uint16{2, 0, 9}, 55)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "missing index 9 is skipped")

	_, err = db.Get(point.TypeCounter, 9)
	assert.True(t, errors.Is(err, ErrNotFound), "marking must not create points")

	for i, want := range []uint8{quality.BitCommLost, quality.BitOnline, quality.BitCommLost} {
		p, err := db.Get(point.TypeCounter, uint16(i))
		require.NoError(t, err)
		assert.Equal(t, want, p.Quality.Bits(), "counter[%d]", i)
	}

	n, err = db.MarkOfflinePoints(point.TypeCounter, []uint16{0}, 56)
	require.NoError(t, err)
	assert.Zero(t, n, "already offline")
}

func TestRestore(t *testing.T) {
	db := New(Config{})
	var events int
	db.OnEvent(func(Event) { events++ })

	pts := []point.Point{
		{Index: 3, Value: point.FloatValue(1.25), Quality: quality.Analog.FromBits(0x01), Timestamp: 10},
		{Index: 1, Value: point.FloatValue(-2), Timestamp: point.NoTimestamp},
	}
	require.NoError(t, db.Restore(point.TypeAnalog, pts))
	assert.Zero(t, events)

	p, err := db.Get(point.TypeAnalog, 1)
	require.NoError(t, err)
	assert.Equal(t, quality.Analog, p.Quality.Table())

	err = db.Restore(point.TypeAnalog, []point.Point{{Index: 0, Value: point.BoolValue(true)}})
	assert.True(t, errors.Is(err, point.ErrValueKind))

	err = db.Restore(point.TypeAnalog, []point.Point{{Index: 0, Value: point.FloatValue(0), Quality: quality.Counter.FromBits(1)}})
	assert.True(t, errors.Is(err, quality.ErrInvalidFlag))
}

func TestSnapshotAll(t *testing.T) {
	db := New(Config{})
	require.NoError(t, db.Declare(point.TypeCounter, 5, 1))
	require.NoError(t, db.Declare(point.TypeBinary, 0))

	all := db.SnapshotAll()
	assert.Len(t, all, 2)
	assert.Len(t, all[point.TypeCounter], 2)
	assert.Equal(t, uint16(1), all[point.TypeCounter][0].Index)
}
