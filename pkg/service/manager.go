package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/telecore/telecore-go/internal/sl"
)

// Manager runs sessions concurrently.
type Manager struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	results  map[string]error
	wg       sync.WaitGroup
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger,
		sessions: make(map[string]*Session),
		results:  make(map[string]error),
	}
}

// Add registers a session under its channel name.
func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := s.Name()
	if name == "" {
		return fmt.Errorf("%w: session channel has no name", ErrInvalidConfig)
	}
	if _, exists := m.sessions[name]; exists {
		return fmt.Errorf("%w: duplicate channel %q", ErrInvalidConfig, name)
	}
	m.sessions[name] = s
	return nil
}

// Start runs every registered session in its own goroutine. Sessions that
// end are not restarted.
func (m *Manager) Start(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, s := range m.sessions {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			err := s.Run(ctx)
			if err != nil {
				m.logger.Warn("session ended", slog.String("channel", name), sl.Err(err))
			}
			m.mu.Lock()
			m.results[name] = err
			m.mu.Unlock()
		}()
	}
}

// Wait blocks until every started session has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Stop closes every session and waits for them.
func (m *Manager) Stop() {
	m.mu.RLock()
	for _, s := range m.sessions {
		s.Close()
	}
	m.mu.RUnlock()
	m.wg.Wait()
}

// Finished reports whether the named session has returned, and its error.
func (m *Manager) Finished(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	err, done := m.results[name]
	return done, err
}

// Session returns the session for a channel.
func (m *Manager) Session(name string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	return s, nil
}

// Channels returns the status of every session, ordered by name.
func (m *Manager) Channels() []ChannelStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ChannelStatus, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
