package wire

import (
	"errors"
	"math"
	"testing"

	"github.com/telecore/telecore-go/pkg/point"
	"github.com/telecore/telecore-go/pkg/quality"
)

func int64Ptr(v int64) *int64 { return &v }

func TestUpdateFrameRoundTrip(t *testing.T) {
	frame := &UpdateFrame{
		Seq: 42,
		Updates: []PointUpdate{
			{Type: uint8(point.TypeBinary), Index: 0, Value: true, Quality: 0x01, Timestamp: int64Ptr(1700000000000)},
			{Type: uint8(point.TypeBinary), Index: 1, Value: false, Quality: 0x01},
			{Type: uint8(point.TypeAnalog), Index: 3, Value: 230.5, Quality: 0x01},
			{Type: uint8(point.TypeCounter), Index: 7, Value: uint32(math.MaxUint32), Quality: 0x21},
		},
	}

	data, err := EncodeUpdate(frame)
	if err != nil {
		t.Fatalf("EncodeUpdate failed: %v", err)
	}

	ft, err := PeekFrameType(data)
	if err != nil || ft != FrameUpdate {
		t.Fatalf("PeekFrameType = %v, %v; want UPDATE", ft, err)
	}

	decoded, err := DecodeUpdate(data)
	if err != nil {
		t.Fatalf("DecodeUpdate failed: %v", err)
	}
	if decoded.Seq != 42 || len(decoded.Updates) != 4 {
		t.Fatalf("decoded = %+v", decoded)
	}

	updates, err := decoded.DatabaseUpdates()
	if err != nil {
		t.Fatalf("DatabaseUpdates failed: %v", err)
	}

	if updates[0].Timestamp != point.Timestamp(1700000000000) {
		t.Errorf("timestamp = %v", updates[0].Timestamp)
	}
	if updates[1].Timestamp.IsSet() {
		t.Errorf("absent timestamp decoded as %v", updates[1].Timestamp)
	}
	if b, ok := updates[1].Value.Bool(); !ok || b {
		t.Errorf("binary false lost: %v", updates[1].Value)
	}
	if f, ok := updates[2].Value.Float(); !ok || f != 230.5 {
		t.Errorf("analog value = %v", updates[2].Value)
	}
	if c, ok := updates[3].Value.Counter(); !ok || c != math.MaxUint32 {
		t.Errorf("counter value = %v", updates[3].Value)
	}
	if updates[3].Quality != 0x21 {
		t.Errorf("quality = %#x, want 0x21", updates[3].Quality)
	}
}

func TestDecodeUpdateRejectsWrongKind(t *testing.T) {
	frame := &UpdateFrame{Seq: 1, Updates: []PointUpdate{
		{Type: uint8(point.TypeCounter), Index: 0, Value: "twelve", Quality: 0x01},
	}}
	data, err := EncodeUpdate(frame)
	if err != nil {
		t.Fatalf("EncodeUpdate failed: %v", err)
	}
	decoded, err := DecodeUpdate(data)
	if err != nil {
		t.Fatalf("DecodeUpdate failed: %v", err)
	}
	_, err = decoded.DatabaseUpdates()
	if !errors.Is(err, ErrInvalidFrame) || !errors.Is(err, point.ErrValueKind) {
		t.Errorf("expected ErrInvalidFrame wrapping ErrValueKind, got %v", err)
	}
}

func TestDecodeUpdateRejectsUnknownPointType(t *testing.T) {
	u := PointUpdate{Type: 99, Index: 0, Value: true}
	_, err := u.ToUpdate()
	if !errors.Is(err, point.ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestEncodeUpdateEmpty(t *testing.T) {
	if _, err := EncodeUpdate(&UpdateFrame{Seq: 1}); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestSnapshotFrameRoundTrip(t *testing.T) {
	p0 := point.New(point.TypeCounter, 0)
	p1 := point.New(point.TypeCounter, 5)
	p1.Update(point.CounterValue(1234), quality.Counter.Of(quality.CounterOnline), point.Timestamp(99))

	frame := NewSnapshotFrame(7, point.TypeCounter, []point.Point{p0, p1})
	data, err := EncodeSnapshot(frame)
	if err != nil {
		t.Fatalf("EncodeSnapshot failed: %v", err)
	}

	if ft, _ := PeekFrameType(data); ft != FrameSnapshot {
		t.Fatalf("PeekFrameType = %v, want SNAPSHOT", ft)
	}
	if _, err := DecodeUpdate(data); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("DecodeUpdate on snapshot = %v, want ErrInvalidFrame", err)
	}

	decoded, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}
	if decoded.PointType != point.TypeCounter || len(decoded.Points) != 2 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded.Points[0].Quality != 0x02 || decoded.Points[0].Timestamp != nil {
		t.Errorf("fresh point = %+v, want RESTART only and no timestamp", decoded.Points[0])
	}

	u, err := decoded.Points[1].ToUpdate()
	if err != nil {
		t.Fatalf("ToUpdate failed: %v", err)
	}
	if u.Index != 5 || u.Quality != 0x01 || u.Timestamp != 99 {
		t.Errorf("update = %+v", u)
	}
	if c, _ := u.Value.Counter(); c != 1234 {
		t.Errorf("counter = %d, want 1234", c)
	}
}

func TestEncodeSnapshotEmptyTable(t *testing.T) {
	data, err := EncodeSnapshot(NewSnapshotFrame(1, point.TypeAnalog, nil))
	if err != nil {
		t.Fatalf("EncodeSnapshot failed: %v", err)
	}
	decoded, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}
	if len(decoded.Points) != 0 {
		t.Errorf("points = %v, want none", decoded.Points)
	}

	if _, err := EncodeSnapshot(&SnapshotFrame{PointType: 0}); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("expected ErrInvalidFrame for invalid point type, got %v", err)
	}
}

func TestPeekFrameTypeUnknown(t *testing.T) {
	data, err := Marshal(map[int]int{1: 9})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := PeekFrameType(data); !errors.Is(err, ErrUnknownFrame) {
		t.Errorf("expected ErrUnknownFrame, got %v", err)
	}
	if _, err := PeekFrameType([]byte{0xff}); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestDecodeIgnoresUnknownKeys(t *testing.T) {
	data, err := Marshal(map[int]any{
		1:  uint8(FrameUpdate),
		2:  uint32(3),
		3:  []any{map[int]any{1: uint8(point.TypeBinary), 2: 4, 3: true, 4: 1}},
		99: "future",
	})
	if err != nil {
		t.Fatal(err)
	}
	f, err := DecodeUpdate(data)
	if err != nil {
		t.Fatalf("DecodeUpdate failed: %v", err)
	}
	if f.Seq != 3 || len(f.Updates) != 1 || f.Updates[0].Index != 4 {
		t.Errorf("decoded = %+v", f)
	}
}

func TestSnapshotDatabaseUpdates(t *testing.T) {
	frame := &SnapshotFrame{Seq: 1, PointType: point.TypeCounter, Points: []PointUpdate{
		{Type: uint8(point.TypeCounter), Index: 3, Value: uint32(8), Quality: 0x01},
	}}
	updates, err := frame.DatabaseUpdates()
	if err != nil {
		t.Fatalf("DatabaseUpdates failed: %v", err)
	}
	if len(updates) != 1 || updates[0].Type != point.TypeCounter || updates[0].Index != 3 {
		t.Errorf("updates = %+v", updates)
	}

	frame.Points = append(frame.Points, PointUpdate{Type: uint8(point.TypeBinary), Index: 0, Value: true})
	if _, err := frame.DatabaseUpdates(); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("mixed snapshot = %v, want ErrInvalidFrame", err)
	}
}
