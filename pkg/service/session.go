package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telecore/telecore-go/internal/sl"
	"github.com/telecore/telecore-go/pkg/channel"
	"github.com/telecore/telecore-go/pkg/database"
	"github.com/telecore/telecore-go/pkg/log"
	"github.com/telecore/telecore-go/pkg/point"
	"github.com/telecore/telecore-go/pkg/transport"
	"github.com/telecore/telecore-go/pkg/wire"
)

// SessionConfig configures a Session.
type SessionConfig struct {
	// Channel to open. Must come from a validating constructor.
	Channel channel.Config

	// Opener acquires the stream, usually a *transport.Dispatcher.
	Opener transport.Opener

	// Database receives decoded updates.
	Database *database.Database

	// PointTypes lists tables owned entirely by this channel. When the
	// stream ends every point of these types is marked COMM_LOST, in
	// addition to the points the session applied itself.
	PointTypes []point.Type

	// OpenTimeout bounds the open. Zero leaves the bound to Run's context.
	OpenTimeout time.Duration

	// MaxFrameSize limits received frames (default: transport.DefaultMaxFrameSize).
	MaxFrameSize uint32

	// Logger receives diagnostics (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives frames, updates and state changes (optional).
	ProtocolLogger log.Logger

	// Observer receives ingest counters (optional).
	Observer Observer
}

// Session ingests one channel.
type Session struct {
	cfg      SessionConfig
	logger   *slog.Logger
	protocol log.Logger
	observer Observer

	started atomic.Bool
	closing atomic.Bool
	frames  atomic.Uint64
	updates atomic.Uint64
	reject  atomic.Uint64

	mu       sync.RWMutex
	state    SessionState
	since    time.Time
	streamID string
	lastErr  error
	conn     *framedStream

	// fed holds the points this session applied. Owned by Run.
	fed map[point.Type]map[uint16]struct{}
}

// NewSession validates cfg and creates an idle session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if !cfg.Channel.Validated() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, channel.ErrInvalidConfig)
	}
	if cfg.Opener == nil {
		return nil, fmt.Errorf("%w: opener is required", ErrInvalidConfig)
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("%w: database is required", ErrInvalidConfig)
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = transport.DefaultMaxFrameSize
	}

	s := &Session{
		cfg:      cfg,
		logger:   cfg.Logger,
		protocol: cfg.ProtocolLogger,
		observer: cfg.Observer,
		state:    StateIdle,
		since:    time.Now(),
		fed:      make(map[point.Type]map[uint16]struct{}),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.String("channel", cfg.Channel.String()))
	if s.protocol == nil {
		s.protocol = log.NoopLogger{}
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	return s, nil
}

// Name returns the channel name.
func (s *Session) Name() string { return s.cfg.Channel.Name() }

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Run opens the channel once and reads frames until the stream ends or ctx
// is done. Cancellation returns nil. A failed open returns the opener's
// error; a lost stream returns ErrStreamLost. Either way the session's
// point types are marked COMM_LOST once a stream had been open.
// Run may be called only once.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.setState(StateOpening, "", nil)

	openCtx := ctx
	if s.cfg.OpenTimeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, s.cfg.OpenTimeout)
		defer cancel()
	}

	stream, err := s.cfg.Opener.Open(openCtx, s.cfg.Channel)
	if err != nil {
		if ctx.Err() != nil || s.closing.Load() {
			s.setState(StateClosed, "", nil)
			return nil
		}
		s.setState(StateFailed, "", err)
		return err
	}

	conn := newFramedStream(stream, s.Name(), s.cfg.MaxFrameSize, s.protocol)
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	if s.closing.Load() {
		conn.Close()
	}
	s.setState(StateRunning, stream.ID(), nil)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	readErr := s.readLoop(ctx, conn)
	conn.Close()

	marked := s.markOffline()
	if ctx.Err() != nil || s.closing.Load() {
		s.logger.Info("session closed", "offline", marked)
		s.setState(StateClosed, stream.ID(), nil)
		return nil
	}

	err = fmt.Errorf("%w: %w", ErrStreamLost, readErr)
	s.logger.Warn("stream lost", "stream", stream.ID(), "offline", marked, sl.Err(readErr))
	s.setState(StateFailed, stream.ID(), err)
	return err
}

// Close stops a running session by closing its stream. Run then returns
// nil.
func (s *Session) Close() error {
	s.closing.Store(true)
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (s *Session) readLoop(ctx context.Context, conn *framedStream) error {
	streamID := conn.ID()
	for {
		data, err := conn.ReadFrame()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if !transport.Recoverable(err) {
				return err
			}
			s.rejectFrame(streamID, log.LayerTransport, "read frame", err)
			continue
		}
		s.frames.Add(1)
		if err := s.handleFrame(data, streamID); err != nil {
			s.rejectFrame(streamID, log.LayerWire, "decode frame", err)
			continue
		}
		s.observer.ObserveFrame(nil)
	}
}

func (s *Session) rejectFrame(streamID string, layer log.Layer, op string, err error) {
	s.reject.Add(1)
	s.observer.ObserveFrame(err)
	s.logger.Warn("frame rejected", "stream", streamID, "op", op, sl.Err(err))
	s.protocol.Log(log.Event{
		Timestamp: time.Now(),
		StreamID:  streamID,
		Layer:     layer,
		Category:  log.CategoryError,
		Channel:   s.Name(),
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: op,
		},
	})
}

// handleFrame decodes one frame and applies its updates. A frame is applied
// entirely or not at all when it fails to decode.
func (s *Session) handleFrame(data []byte, streamID string) error {
	ft, err := wire.PeekFrameType(data)
	if err != nil {
		return err
	}

	var updates []database.Update
	switch ft {
	case wire.FrameUpdate:
		f, err := wire.DecodeUpdate(data)
		if err != nil {
			return err
		}
		if updates, err = f.DatabaseUpdates(); err != nil {
			return err
		}
	case wire.FrameSnapshot:
		f, err := wire.DecodeSnapshot(data)
		if err != nil {
			return err
		}
		if updates, err = f.DatabaseUpdates(); err != nil {
			return err
		}
	}

	for _, u := range updates {
		s.logUpdate(u, streamID)
		if _, err := s.cfg.Database.ApplyUpdate(u); err != nil {
			return err
		}
		s.updates.Add(1)
		s.observer.ObserveUpdate(u.Type)
		s.feed(u.Type, u.Index)
	}
	return nil
}

func (s *Session) feed(t point.Type, index uint16) {
	set, ok := s.fed[t]
	if !ok {
		set = make(map[uint16]struct{})
		s.fed[t] = set
	}
	set[index] = struct{}{}
}

func (s *Session) logUpdate(u database.Update, streamID string) {
	ev := &log.UpdateEvent{
		PointType: u.Type.String(),
		Index:     u.Index,
		Value:     u.Value.Any(),
		Quality:   u.Quality,
	}
	if u.Timestamp.IsSet() {
		ms := int64(u.Timestamp)
		ev.TimestampMS = &ms
	}
	s.protocol.Log(log.Event{
		Timestamp: time.Now(),
		StreamID:  streamID,
		Direction: log.DirectionIn,
		Layer:     log.LayerWire,
		Category:  log.CategoryPoint,
		Channel:   s.Name(),
		Update:    ev,
	})
}

// markOffline marks owned tables and every point this session fed as
// COMM_LOST. Points fed only by other channels are left alone.
func (s *Session) markOffline() int {
	ts := point.FromTime(time.Now())
	total := 0
	owned := make(map[point.Type]bool, len(s.cfg.PointTypes))
	for _, t := range s.cfg.PointTypes {
		owned[t] = true
		n, err := s.cfg.Database.MarkOffline(t, ts)
		if err != nil {
			s.logger.Error("mark offline failed", "type", t, sl.Err(err))
			continue
		}
		total += n
	}
	for t, set := range s.fed {
		if owned[t] {
			continue
		}
		indices := make([]uint16, 0, len(set))
		for i := range set {
			indices = append(indices, i)
		}
		n, err := s.cfg.Database.MarkOfflinePoints(t, indices, ts)
		if err != nil {
			s.logger.Error("mark offline failed", "type", t, sl.Err(err))
			continue
		}
		total += n
	}
	return total
}

func (s *Session) setState(next SessionState, streamID string, err error) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.since = time.Now()
	if streamID != "" {
		s.streamID = streamID
	}
	s.lastErr = err
	s.mu.Unlock()

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	s.protocol.Log(log.Event{
		Timestamp: time.Now(),
		StreamID:  streamID,
		Layer:     log.LayerChannel,
		Category:  log.CategoryState,
		Channel:   s.Name(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: prev.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

// Status returns a point-in-time view of the session.
func (s *Session) Status() ChannelStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := ChannelStatus{
		Name:     s.cfg.Channel.Name(),
		Kind:     s.cfg.Channel.Kind().String(),
		Target:   s.cfg.Channel.String(),
		State:    s.state.String(),
		StreamID: s.streamID,
		Frames:   s.frames.Load(),
		Updates:  s.updates.Load(),
		Rejected: s.reject.Load(),
		Since:    s.since,
	}
	if s.conn != nil {
		st.Discarded = s.conn.Discarded()
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
