package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telecore/telecore-go/pkg/log"
)

// Frame layout on the wire:
//
//	0x05 0x64 | length (uint32, big-endian) | payload
//
// The sync pair lets a reader find the next frame after line noise or a
// rejected header.
const (
	SyncByte0  = 0x05
	SyncByte1  = 0x64
	HeaderSize = 6

	// DefaultMaxFrameSize is the default payload limit (64 KB).
	DefaultMaxFrameSize = 65536

	// MaxLogFrameDataSize caps the payload bytes copied into capture events.
	MaxLogFrameDataSize = 4096
)

// Framing errors.
var (
	ErrFrameEmpty     = errors.New("frame is empty")
	ErrFrameTooLarge  = errors.New("frame too large")
	ErrFrameTruncated = errors.New("frame truncated")
)

// Recoverable reports whether a ReadFrame error only rejected one header,
// so the next ReadFrame can resynchronise on the same stream.
func Recoverable(err error) bool {
	return errors.Is(err, ErrFrameEmpty) || errors.Is(err, ErrFrameTooLarge)
}

// FrameSize returns the encoded size of a payload.
func FrameSize(payloadSize int) int { return HeaderSize + payloadSize }

// FramerConfig configures a Framer. The zero value is usable.
type FramerConfig struct {
	// MaxFrameSize limits payloads in both directions
	// (default: DefaultMaxFrameSize).
	MaxFrameSize uint32

	// Logger receives a capture event per frame and per resync (optional).
	Logger log.Logger

	// StreamID and Channel tag capture events.
	StreamID string
	Channel  string
}

// Framer reads and writes sync-prefixed frames. ReadFrame must be called
// from a single goroutine; WriteFrame is safe for concurrent use.
type Framer struct {
	r   *bufio.Reader
	w   io.Writer
	wmu sync.Mutex
	cfg FramerConfig

	discarded atomic.Uint64
}

// NewFramer creates a framer over rw.
func NewFramer(rw io.ReadWriter, cfg FramerConfig) *Framer {
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	return &Framer{r: bufio.NewReader(rw), w: rw, cfg: cfg}
}

// NewStreamFramer creates a framer over s whose events carry s.ID().
func NewStreamFramer(s ByteStream, cfg FramerConfig) *Framer {
	cfg.StreamID = s.ID()
	return NewFramer(s, cfg)
}

// Discarded returns the number of bytes skipped while resynchronising.
func (f *Framer) Discarded() uint64 { return f.discarded.Load() }

// WriteFrame writes one frame with a single Write call.
func (f *Framer) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrFrameEmpty
	}
	if uint64(len(data)) > uint64(f.cfg.MaxFrameSize) {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(data), f.cfg.MaxFrameSize)
	}

	buf := make([]byte, HeaderSize+len(data))
	buf[0], buf[1] = SyncByte0, SyncByte1
	binary.BigEndian.PutUint32(buf[2:HeaderSize], uint32(len(data)))
	copy(buf[HeaderSize:], data)

	f.wmu.Lock()
	_, err := f.w.Write(buf)
	f.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	f.logFrame(data, log.DirectionOut)
	return nil
}

// ReadFrame returns the next frame's payload. It returns io.EOF when the
// stream ends between frames and ErrFrameTruncated when it ends inside one.
// ErrFrameEmpty and ErrFrameTooLarge reject a header without consuming
// what follows it; see Recoverable.
func (f *Framer) ReadFrame() ([]byte, error) {
	if err := f.resync(); err != nil {
		return nil, err
	}

	var lenBuf [HeaderSize - 2]byte
	if _, err := io.ReadFull(f.r, lenBuf[:]); err != nil {
		return nil, truncated(err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	switch {
	case n == 0:
		return nil, ErrFrameEmpty
	case n > f.cfg.MaxFrameSize:
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, f.cfg.MaxFrameSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		return nil, truncated(err)
	}

	f.logFrame(payload, log.DirectionIn)
	return payload, nil
}

// resync consumes bytes up to and including the next sync pair.
func (f *Framer) resync() error {
	var skipped uint64
	defer func() {
		if skipped > 0 {
			f.discarded.Add(skipped)
			f.logDiscard(skipped)
		}
	}()

	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return err
		}
		if b != SyncByte0 {
			skipped++
			continue
		}

		b, err = f.r.ReadByte()
		if err != nil {
			return truncated(err)
		}
		if b == SyncByte1 {
			return nil
		}
		skipped++
		if b == SyncByte0 {
			// May start the real sync pair.
			_ = f.r.UnreadByte()
		} else {
			skipped++
		}
	}
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrFrameTruncated
	}
	return err
}

func (f *Framer) logFrame(data []byte, dir log.Direction) {
	if f.cfg.Logger == nil {
		return
	}
	ev := &log.FrameEvent{Size: FrameSize(len(data)), Data: data}
	if len(data) > MaxLogFrameDataSize {
		ev.Data = data[:MaxLogFrameDataSize]
		ev.Truncated = true
	}
	f.cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		StreamID:  f.cfg.StreamID,
		Direction: dir,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Channel:   f.cfg.Channel,
		Frame:     ev,
	})
}

func (f *Framer) logDiscard(n uint64) {
	if f.cfg.Logger == nil {
		return
	}
	f.cfg.Logger.Log(log.Event{
		Timestamp: time.Now(),
		StreamID:  f.cfg.StreamID,
		Direction: log.DirectionIn,
		Layer:     log.LayerTransport,
		Category:  log.CategoryError,
		Channel:   f.cfg.Channel,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: fmt.Sprintf("discarded %d bytes", n),
			Context: "resync",
		},
	})
}
