package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/telecore/telecore-go/pkg/point"
)

// Frames are encoded canonically so equal frames have equal bytes. Decoding
// skips unknown keys, letting newer outstations add fields.
var (
	encMode = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	})
	decMode = mustDecMode(cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyQuiet,
		IndefLength:      cbor.IndefLengthAllowed,
		MaxArrayElements: maxFrameUpdates,
	})
)

// maxFrameUpdates bounds the updates array of a single frame.
const maxFrameUpdates = 65536

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	m, err := opts.EncMode()
	if err != nil {
		panic("wire: " + err.Error())
	}
	return m
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	m, err := opts.DecMode()
	if err != nil {
		panic("wire: " + err.Error())
	}
	return m
}

// Marshal encodes v in the frame encoding.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes frame-encoded data into v.
func Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }

// EncodeUpdate encodes an update frame.
func EncodeUpdate(f *UpdateFrame) ([]byte, error) {
	if len(f.Updates) == 0 {
		return nil, fmt.Errorf("%w: no updates", ErrInvalidFrame)
	}
	return Marshal(updateFrameWire{Type: FrameUpdate, Seq: f.Seq, Updates: f.Updates})
}

// DecodeUpdate decodes an update frame.
func DecodeUpdate(data []byte) (*UpdateFrame, error) {
	var w updateFrameWire
	if err := Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode update frame: %w", err)
	}
	if w.Type != FrameUpdate {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidFrame, FrameUpdate, w.Type)
	}
	return &UpdateFrame{Seq: w.Seq, Updates: w.Updates}, nil
}

// EncodeSnapshot encodes a snapshot frame.
func EncodeSnapshot(f *SnapshotFrame) ([]byte, error) {
	if !f.PointType.IsValid() {
		return nil, fmt.Errorf("%w: point type %d", ErrInvalidFrame, uint8(f.PointType))
	}
	points := f.Points
	if points == nil {
		points = []PointUpdate{}
	}
	return Marshal(snapshotFrameWire{Type: FrameSnapshot, Seq: f.Seq, PointType: uint8(f.PointType), Points: points})
}

// DecodeSnapshot decodes a snapshot frame.
func DecodeSnapshot(data []byte) (*SnapshotFrame, error) {
	var w snapshotFrameWire
	if err := Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode snapshot frame: %w", err)
	}
	if w.Type != FrameSnapshot {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidFrame, FrameSnapshot, w.Type)
	}
	return &SnapshotFrame{Seq: w.Seq, PointType: point.Type(w.PointType), Points: w.Points}, nil
}

// PeekFrameType reads key 1 without decoding the rest of the frame.
func PeekFrameType(data []byte) (FrameType, error) {
	var peek struct {
		Type FrameType `cbor:"1,keyasint"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return FrameUnknown, fmt.Errorf("peek frame type: %w", err)
	}
	switch peek.Type {
	case FrameUpdate, FrameSnapshot:
		return peek.Type, nil
	default:
		return FrameUnknown, fmt.Errorf("%w: %d", ErrUnknownFrame, uint8(peek.Type))
	}
}
