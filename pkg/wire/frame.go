package wire

import (
	"errors"
	"fmt"

	"github.com/telecore/telecore-go/pkg/database"
	"github.com/telecore/telecore-go/pkg/point"
)

// Frame errors.
var (
	ErrUnknownFrame = errors.New("unknown frame type")
	ErrInvalidFrame = errors.New("invalid frame")
)

// FrameType discriminates frames.
type FrameType uint8

const (
	FrameUnknown  FrameType = 0
	FrameUpdate   FrameType = 1
	FrameSnapshot FrameType = 2
)

// String returns the frame type name.
func (f FrameType) String() string {
	switch f {
	case FrameUpdate:
		return "UPDATE"
	case FrameSnapshot:
		return "SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// PointUpdate is one point value on the wire.
type PointUpdate struct {
	Type      uint8  `cbor:"1,keyasint"`
	Index     uint16 `cbor:"2,keyasint"`
	Value     any    `cbor:"3,keyasint"`
	Quality   uint8  `cbor:"4,keyasint"`
	Timestamp *int64 `cbor:"5,keyasint,omitempty"`
}

// FromPoint converts a database point to its wire form.
func FromPoint(t point.Type, p point.Point) PointUpdate {
	u := PointUpdate{
		Type:    uint8(t),
		Index:   p.Index,
		Value:   p.Value.Any(),
		Quality: p.Quality.Bits(),
	}
	if p.Timestamp.IsSet() {
		ms := int64(p.Timestamp)
		u.Timestamp = &ms
	}
	return u
}

// ToUpdate converts u into a database update, checking the point type and
// that the value matches it.
func (u PointUpdate) ToUpdate() (database.Update, error) {
	t := point.Type(u.Type)
	if !t.IsValid() {
		return database.Update{}, fmt.Errorf("%w: %w: %d", ErrInvalidFrame, point.ErrUnknownType, u.Type)
	}
	v, err := point.ValueFromAny(t.ValueKind(), u.Value)
	if err != nil {
		return database.Update{}, fmt.Errorf("%w: %s %d: %w", ErrInvalidFrame, t, u.Index, err)
	}
	ts := point.NoTimestamp
	if u.Timestamp != nil {
		ts = point.Timestamp(*u.Timestamp)
	}
	return database.Update{
		Type:      t,
		Index:     u.Index,
		Value:     v,
		Quality:   u.Quality,
		Timestamp: ts,
	}, nil
}

// UpdateFrame carries point updates from an outstation.
//
// CBOR encoding:
//
//	{
//	  1: 1,           // FrameUpdate
//	  2: seq,         // uint32
//	  3: [updates]    // PointUpdate
//	}
type UpdateFrame struct {
	Seq     uint32
	Updates []PointUpdate
}

type updateFrameWire struct {
	Type    FrameType     `cbor:"1,keyasint"`
	Seq     uint32        `cbor:"2,keyasint"`
	Updates []PointUpdate `cbor:"3,keyasint"`
}

// DatabaseUpdates converts every entry to a database update. It fails on the first
// malformed entry.
func (f *UpdateFrame) DatabaseUpdates() ([]database.Update, error) {
	return toUpdates(f.Updates)
}

func toUpdates(pus []PointUpdate) ([]database.Update, error) {
	out := make([]database.Update, 0, len(pus))
	for i, pu := range pus {
		u, err := pu.ToUpdate()
		if err != nil {
			return nil, fmt.Errorf("update %d: %w", i, err)
		}
		out = append(out, u)
	}
	return out, nil
}

// SnapshotFrame carries the full table of one point type.
//
// CBOR encoding:
//
//	{
//	  1: 2,           // FrameSnapshot
//	  2: seq,         // uint32
//	  3: pointType,   // uint8
//	  4: [points]     // PointUpdate
//	}
type SnapshotFrame struct {
	Seq       uint32
	PointType point.Type
	Points    []PointUpdate
}

type snapshotFrameWire struct {
	Type      FrameType     `cbor:"1,keyasint"`
	Seq       uint32        `cbor:"2,keyasint"`
	PointType uint8         `cbor:"3,keyasint"`
	Points    []PointUpdate `cbor:"4,keyasint"`
}

// NewSnapshotFrame builds a snapshot frame from an ordered point slice.
func NewSnapshotFrame(seq uint32, t point.Type, points []point.Point) *SnapshotFrame {
	f := &SnapshotFrame{Seq: seq, PointType: t, Points: make([]PointUpdate, len(points))}
	for i, p := range points {
		f.Points[i] = FromPoint(t, p)
	}
	return f
}

// DatabaseUpdates converts the snapshot to database updates. Every entry
// must carry the frame's point type.
func (f *SnapshotFrame) DatabaseUpdates() ([]database.Update, error) {
	for i := range f.Points {
		if f.Points[i].Type != uint8(f.PointType) {
			return nil, fmt.Errorf("%w: snapshot of %s carries %d", ErrInvalidFrame, f.PointType, f.Points[i].Type)
		}
	}
	return toUpdates(f.Points)
}
