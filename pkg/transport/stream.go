package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/telecore/telecore-go/pkg/channel"
)

// ErrChannelUnavailable indicates the device or socket could not be acquired.
var ErrChannelUnavailable = errors.New("channel unavailable")

// ErrStreamClosed is returned by I/O on a closed stream.
var ErrStreamClosed = errors.New("stream closed")

// UnavailableError reports a failed open. It matches ErrChannelUnavailable
// with errors.Is and unwraps to the underlying cause.
type UnavailableError struct {
	Channel string
	Kind    channel.Kind
	Err     error
}

func (e *UnavailableError) Error() string {
	name := e.Channel
	if name == "" {
		name = e.Kind.String()
	}
	return fmt.Sprintf("%s: %s: %v", ErrChannelUnavailable, name, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is reports whether target is ErrChannelUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrChannelUnavailable }

func unavailable(cfg channel.Config, err error) error {
	return &UnavailableError{Channel: cfg.Name(), Kind: cfg.Kind(), Err: err}
}

// ByteStream is an open channel.
type ByteStream interface {
	io.ReadWriteCloser

	// ID is a UUID assigned when the stream was opened.
	ID() string

	// Kind is the transport kind of the channel.
	Kind() channel.Kind

	// Describe returns the device or peer address.
	Describe() string
}

type stream struct {
	rwc  io.ReadWriteCloser
	id   string
	kind channel.Kind
	desc string

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func newStream(rwc io.ReadWriteCloser, kind channel.Kind, desc string) *stream {
	return &stream{
		rwc:    rwc,
		id:     uuid.NewString(),
		kind:   kind,
		desc:   desc,
		closed: make(chan struct{}),
	}
}

func (s *stream) ID() string         { return s.id }
func (s *stream) Kind() channel.Kind { return s.kind }
func (s *stream) Describe() string   { return s.desc }

func (s *stream) Read(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, ErrStreamClosed
	default:
	}
	return s.rwc.Read(p)
}

func (s *stream) Write(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, ErrStreamClosed
	default:
	}
	return s.rwc.Write(p)
}

// Close is idempotent.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.rwc.Close()
	})
	return s.closeErr
}

func (s *stream) String() string {
	return fmt.Sprintf("%s %s [%s]", s.kind, s.desc, s.id)
}
