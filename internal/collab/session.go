// Package collab tracks live viewing sessions: their debounced
// collaboration status and whether their editor is ready for highlights.
package collab

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/serroba/annotated-docs/internal/clock"
)

// DefaultReadyLimit bounds how long a view request waits for the editor.
const DefaultReadyLimit = 2500 * time.Millisecond

// Common errors.
var (
	ErrSessionClosed = errors.New("session is closed")
	ErrSessionExists = errors.New("session already exists")
)

// Session is one client's view of a document.
type Session struct {
	id       string
	slug     string
	userID   string
	readOnly bool

	status *StatusMachine
	clock  clock.Clock
	logger *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

// SessionConfig holds configuration for creating a session.
type SessionConfig struct {
	ID       string
	Slug     string
	UserID   string
	ReadOnly bool

	Clock       clock.Clock
	SavingDelay time.Duration

	// OnStatus receives every change of the displayed status.
	OnStatus func(Status)

	Logger *slog.Logger
}

// NewSession creates a session in the connecting state.
func NewSession(cfg SessionConfig) *Session {
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	logger = logger.With("session", cfg.ID, "slug", cfg.Slug)

	return &Session{
		id:       cfg.ID,
		slug:     cfg.Slug,
		userID:   cfg.UserID,
		readOnly: cfg.ReadOnly,
		clock:    c,
		logger:   logger,
		ready:    make(chan struct{}),
		status: NewStatusMachine(StatusConfig{
			Clock:       c,
			SavingDelay: cfg.SavingDelay,
			OnChange:    cfg.OnStatus,
			Logger:      logger,
		}),
	}
}

// HandleStatus applies a raw status reported by the editing transport.
func (s *Session) HandleStatus(raw string) error {
	status, err := ParseStatus(raw)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.status.Handle(status)

	return nil
}

// Status returns the displayed collaboration status.
func (s *Session) Status() Status {
	return s.status.Status()
}

// MarkReady records that the editor has loaded the document and can
// extract text. Later calls are no-ops.
func (s *Session) MarkReady() {
	s.readyOnce.Do(func() {
		s.logger.Debug("editor ready")
		close(s.ready)
	})
}

// IsReady reports whether MarkReady has been called.
func (s *Session) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until the editor is ready, ctx is done, or limit
// elapses, and reports whether the editor became ready. A non-positive
// limit does not wait.
func (s *Session) WaitReady(ctx context.Context, limit time.Duration) bool {
	if s.IsReady() || limit <= 0 {
		return s.IsReady()
	}

	select {
	case <-s.ready:
		return true
	case <-ctx.Done():
		return false
	case <-s.clock.After(limit):
		return s.IsReady()
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Slug returns the slug of the viewed document.
func (s *Session) Slug() string {
	return s.slug
}

// UserID returns the viewing user.
func (s *Session) UserID() string {
	return s.userID
}

// ReadOnly reports whether the session may edit the document.
func (s *Session) ReadOnly() bool {
	return s.readOnly
}

// Close stops the status machine. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.status.Stop()

	return nil
}
