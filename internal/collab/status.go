package collab

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/serroba/annotated-docs/internal/clock"
)

// DefaultSavingDelay is how long a "saving" status must persist before it
// is displayed.
const DefaultSavingDelay = 250 * time.Millisecond

// ErrUnknownStatus is returned when a status string is not recognized.
var ErrUnknownStatus = errors.New("unknown collaboration status")

// Status is the user-facing collaboration status.
type Status string

// Collaboration statuses.
const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusSaving       Status = "saving"
	StatusDisconnected Status = "disconnected"
)

// ParseStatus validates a raw status reported by the editing transport.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusConnecting, StatusConnected, StatusSaving, StatusDisconnected:
		return s, nil
	default:
		return "", ErrUnknownStatus
	}
}

// StatusConfig holds configuration for a status machine.
type StatusConfig struct {
	Clock       clock.Clock
	SavingDelay time.Duration

	// OnChange is called with the new status whenever the displayed
	// status changes. It runs outside the machine's lock.
	OnChange func(Status)

	Logger *slog.Logger
}

// StatusMachine turns raw transport status events into a debounced
// display status. A "saving" event is shown only if no other event arrives
// within the saving delay, and a disconnected session must see
// "connected" before it can show anything else.
//
// It owns at most one pending timer and is safe for concurrent use.
type StatusMachine struct {
	mu      sync.Mutex
	status  Status
	pending *clock.Timer
	seq     uint64
	stopped bool

	clock    clock.Clock
	delay    time.Duration
	onChange func(Status)
	logger   *slog.Logger
}

// NewStatusMachine creates a machine in the connecting state.
func NewStatusMachine(cfg StatusConfig) *StatusMachine {
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

	return &StatusMachine{
		status:   StatusConnecting,
		clock:    c,
		delay:    delay,
		onChange: cfg.OnChange,
		logger:   logger,
	}
}

// Status returns the displayed status.
func (m *StatusMachine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.status
}

// Handle applies one raw status event. Every event cancels a pending
// "saving" transition.
func (m *StatusMachine) Handle(event Status) {
	m.mu.Lock()

	if m.stopped {
		m.mu.Unlock()

		return
	}

	m.cancelPending()

	var (
		next    Status
		changed bool
	)

	switch m.status {
	case StatusConnecting, StatusDisconnected:
		if event == StatusConnected {
			next, changed = m.set(event)
		}
	case StatusConnected, StatusSaving:
		if event == StatusSaving {
			m.schedule()
		} else {
			next, changed = m.set(event)
		}
	}

	m.mu.Unlock()

	if changed {
		m.notify(next)
	}
}

// Stop cancels any pending transition and ignores further events.
func (m *StatusMachine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelPending()
	m.stopped = true
}

// schedule arms the saving timer. Callers hold mu.
func (m *StatusMachine) schedule() {
	seq := m.seq

	m.pending = m.clock.AfterFunc(m.delay, func() {
		m.fire(seq)
	})
}

// fire applies a debounced "saving" if nothing has superseded it.
func (m *StatusMachine) fire(seq uint64) {
	m.mu.Lock()

	if m.stopped || seq != m.seq {
		m.mu.Unlock()

		return
	}

	m.pending = nil

	var (
		next    Status
		changed bool
	)

	if m.status == StatusConnected || m.status == StatusSaving {
		next, changed = m.set(StatusSaving)
	}

	m.mu.Unlock()

	if changed {
		m.notify(next)
	}
}

// cancelPending stops the pending timer. Bumping seq also invalidates a
// callback that already started and is waiting for the lock. Callers hold mu.
func (m *StatusMachine) cancelPending() {
	m.seq++

	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
}

// set updates the status and reports whether it changed. Callers hold mu.
func (m *StatusMachine) set(next Status) (Status, bool) {
	if m.status == next {
		return next, false
	}

	m.logger.Debug("collaboration status changed", "from", m.status, "to", next)
	m.status = next

	return next, true
}

func (m *StatusMachine) notify(s Status) {
	if m.onChange != nil {
		m.onChange(s)
	}
}
