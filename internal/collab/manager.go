package collab

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/serroba/annotated-docs/internal/clock"
)

// Manager tracks the live sessions of all connected clients.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// Shared defaults
	clock       clock.Clock
	savingDelay time.Duration
	logger      *slog.Logger
}

// ManagerConfig holds configuration for creating a manager.
type ManagerConfig struct {
	Clock       clock.Clock
	SavingDelay time.Duration
	Logger      *slog.Logger
}

// NewManager creates a new session manager.
func NewManager(cfg ManagerConfig) *Manager {
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}

	delay := cfg.SavingDelay
	if delay <= 0 {
		delay = DefaultSavingDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Manager{
		sessions:    make(map[string]*Session),
		clock:       c,
		savingDelay: delay,
		logger:      logger,
	}
}

// Open creates and registers a session. Clock, delay, and logger default
// to the manager's.
func (m *Manager) Open(cfg SessionConfig) (*Session, error) {
	if cfg.Clock == nil {
		cfg.Clock = m.clock
	}

	if cfg.SavingDelay <= 0 {
		cfg.SavingDelay = m.savingDelay
	}

	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[cfg.ID]; exists {
		return nil, ErrSessionExists
	}

	session := NewSession(cfg)
	m.sessions[cfg.ID] = session

	m.logger.Info("session opened", "session", cfg.ID, "slug", cfg.Slug, "read_only", cfg.ReadOnly)

	return session, nil
}

// Session returns a registered session or nil if not found.
func (m *Manager) Session(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sessions[id]
}

// CloseSession closes and removes a session.
func (m *Manager) CloseSession(id string) error {
	m.mu.Lock()
	session, exists := m.sessions[id]

	if !exists {
		m.mu.Unlock()

		return nil
	}

	delete(m.sessions, id)
	m.mu.Unlock()

	m.logger.Info("session closed", "session", id)

	return session.Close()
}

// CloseAll closes all sessions.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))

	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}

	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var lastErr error

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// DocumentSessions returns the number of live sessions viewing slug.
func (m *Manager) DocumentSessions(slug string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0

	for _, s := range m.sessions {
		if s.slug == slug {
			n++
		}
	}

	return n
}
