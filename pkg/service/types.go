package service

import (
	"errors"
	"time"

	"github.com/telecore/telecore-go/pkg/point"
)

// Service errors.
var (
	ErrStreamLost     = errors.New("stream lost")
	ErrAlreadyStarted = errors.New("session already started")
	ErrInvalidConfig  = errors.New("invalid session configuration")
	ErrUnknownChannel = errors.New("unknown channel")
)

// SessionState represents the session state.
type SessionState uint8

const (
	// StateIdle - session created but not started.
	StateIdle SessionState = iota

	// StateOpening - waiting for the channel to open.
	StateOpening

	// StateRunning - reading frames.
	StateRunning

	// StateClosed - stopped by the caller.
	StateClosed

	// StateFailed - the open failed or the stream was lost.
	StateFailed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOpening:
		return "OPENING"
	case StateRunning:
		return "RUNNING"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Observer receives ingest counters. Implemented by metrics.Metrics.
type Observer interface {
	ObserveFrame(err error)
	ObserveUpdate(t point.Type)
}

type noopObserver struct{}

func (noopObserver) ObserveFrame(error)       {}
func (noopObserver) ObserveUpdate(point.Type) {}

// ChannelStatus is a point-in-time view of a session.
type ChannelStatus struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Target    string    `json:"target"`
	State     string    `json:"state"`
	StreamID  string    `json:"stream_id,omitempty"`
	Frames    uint64    `json:"frames"`
	Updates   uint64    `json:"updates"`
	Rejected  uint64    `json:"rejected"`
	Discarded uint64    `json:"discarded_bytes"`
	LastError string    `json:"last_error,omitempty"`
	Since     time.Time `json:"since"`
}
