package log

import "time"

// Event is one captured protocol event. Exactly one payload is set.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`

	// StreamID is the ByteStream's UUID; empty for database events.
	StreamID  string    `cbor:"2,keyasint,omitempty"`
	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`
	Channel   string    `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address or serial device, on channel events.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Update      *UpdateEvent      `cbor:"11,keyasint,omitempty"`
	Point       *PointEvent       `cbor:"12,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction of data flow relative to the master.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

// Layer is where an event was captured.
type Layer uint8

const (
	LayerTransport Layer = iota // framing, raw bytes
	LayerWire                   // decoded updates
	LayerDatabase               // point database
	LayerChannel                // channel and session lifecycle
)

// Category classifies events across layers.
type Category uint8

const (
	CategoryMessage Category = iota
	CategoryPoint
	CategoryState
	CategoryError
)

var (
	directionNames = []string{"IN", "OUT"}
	layerNames     = []string{"TRANSPORT", "WIRE", "DATABASE", "CHANNEL"}
	categoryNames  = []string{"MESSAGE", "POINT", "STATE", "ERROR"}
	entityNames    = []string{"CHANNEL", "SESSION", "TABLE"}
)

func enumName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return "UNKNOWN"
}

func (d Direction) String() string { return enumName(directionNames, uint8(d)) }
func (l Layer) String() string     { return enumName(layerNames, uint8(l)) }
func (c Category) String() string  { return enumName(categoryNames, uint8(c)) }

// FrameEvent captures a raw frame.
type FrameEvent struct {
	// Size is the frame size including the length prefix.
	Size int `cbor:"1,keyasint"`

	// Data is the payload, possibly truncated.
	Data []byte `cbor:"2,keyasint,omitempty"`

	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// UpdateEvent captures a decoded point update before it is applied.
type UpdateEvent struct {
	PointType string `cbor:"1,keyasint"`
	Index     uint16 `cbor:"2,keyasint"`
	Value     any    `cbor:"3,keyasint,omitempty"`
	Quality   uint8  `cbor:"4,keyasint"`

	// TimestampMS is epoch milliseconds; absent when the update had none.
	TimestampMS *int64 `cbor:"5,keyasint,omitempty"`
}

// PointEvent captures a reportable database event.
type PointEvent struct {
	PointType  string `cbor:"1,keyasint"`
	Index      uint16 `cbor:"2,keyasint"`
	OldQuality uint8  `cbor:"3,keyasint"`
	NewQuality uint8  `cbor:"4,keyasint"`

	// Reasons is the point.Reason bitmask rendered as text.
	Reasons string `cbor:"5,keyasint"`
}

// StateChangeEvent captures lifecycle transitions.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity is what changed state.
type StateEntity uint8

const (
	StateEntityChannel StateEntity = iota
	StateEntitySession
	StateEntityTable
)

func (s StateEntity) String() string { return enumName(entityNames, uint8(s)) }

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context describes the operation that failed.
	Context string `cbor:"3,keyasint,omitempty"`
}
