package persistence

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/telecore/telecore-go/internal/sl"
	"github.com/telecore/telecore-go/pkg/database"
)

// DefaultRecorderQueue is the number of events a Recorder buffers.
const DefaultRecorderQueue = 1024

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// QueueSize bounds buffered events (default: DefaultRecorderQueue).
	QueueSize int

	// Logger receives write failures and drops (default: slog.Default()).
	Logger *slog.Logger
}

// Recorder moves database events into a HistoryStore on its own
// goroutine, so event handlers never wait on the disk. When the queue is
// full new events are dropped and counted.
type Recorder struct {
	store  *HistoryStore
	logger *slog.Logger
	queue  chan database.Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewRecorder starts a recorder writing to s.
func (s *HistoryStore) NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultRecorderQueue
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := &Recorder{
		store:  s,
		logger: cfg.Logger,
		queue:  make(chan database.Event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		if err := r.store.Record(e); err != nil {
			r.failed.Add(1)
			r.logger.Error("history record failed",
				slog.String("type", e.Type.String()),
				slog.Int("index", int(e.New.Index)),
				sl.Err(err))
		}
	}
}

// Handler returns a database event handler that enqueues without blocking.
func (r *Recorder) Handler() database.EventHandler {
	return func(e database.Event) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.closed {
			r.dropped.Add(1)
			return
		}
		select {
		case r.queue <- e:
		default:
			if r.dropped.Add(1) == 1 {
				r.logger.Warn("history queue full, dropping events",
					slog.Int("queue", cap(r.queue)))
			}
		}
	}
}

// Dropped returns the number of events that were not queued.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Failed returns the number of events the store rejected.
func (r *Recorder) Failed() uint64 { return r.failed.Load() }

// Close stops accepting events and waits until the queue is written.
// It is idempotent.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}
