package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Options configure sessions built by a Manager.
type Options struct {
	// FFmpegPath overrides PATH lookup of the engine binary.
	FFmpegPath string
	// FontPath, when set, is installed into each session workspace on
	// first use of a text operation.
	FontPath string
	Logger   *zap.Logger
}

// Manager owns at most one live session. Acquire is idempotent while the
// session stays healthy; a faulted or closed session is torn down and
// replaced on the next call.
type Manager struct {
	opts Options

	mu  sync.Mutex
	cur *Session
}

func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{opts: opts}
}

// Acquire returns the current ready session or builds a fresh one.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cur != nil {
		if m.cur.State() == StateReady {
			return m.cur, nil
		}
		m.opts.Logger.Info("discarding unusable engine session",
			zap.Stringer("state", m.cur.State()))
		m.cur.Close()
		m.cur = nil
	}

	s, err := newSession(ctx, m.opts)
	if err != nil {
		return nil, err
	}
	m.cur = s
	return s, nil
}

// Reset drops the current session regardless of its state.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != nil {
		m.cur.Close()
		m.cur = nil
	}
}

// Close is Reset for shutdown paths.
func (m *Manager) Close() { m.Reset() }

// State reports the current session state, StateUnloaded when none exists.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return StateUnloaded
	}
	return m.cur.State()
}

// Version reports the probed engine version, "" when no session exists.
func (m *Manager) Version() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return ""
	}
	return m.cur.Version()
}
