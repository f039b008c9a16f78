// Package xr owns the AR session lifecycle.
package xr

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/host"
	"github.com/arstage/arstage/internal/milestone"
)

// State is the session lifecycle state. Transitions run one way per
// lifecycle: Idle -> Requesting -> Active -> Ended -> Idle. A failed request
// returns from Requesting straight to Idle.
type State int

const (
	Idle State = iota
	Requesting
	Active
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Active:
		return "active"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// ErrSessionActive is returned by Start unless the manager is Idle.
var ErrSessionActive = errors.New("session already active")

// Resetter is transient per-session state cleared synchronously on End.
type Resetter interface {
	Reset()
}

// Manager brackets the pipeline with exactly one session at a time.
type Manager struct {
	runtime   host.Runtime
	bus       *milestone.Bus
	log       *zap.Logger
	state     State
	session   host.Session
	epoch     uint64
	resetters []Resetter
	onStart   []func(epoch uint64)
}

func NewManager(rt host.Runtime, bus *milestone.Bus, log *zap.Logger) *Manager {
	return &Manager{runtime: rt, bus: bus, log: log}
}

// OnReset registers state cleared on End, in registration order.
func (m *Manager) OnReset(rs ...Resetter) { m.resetters = append(m.resetters, rs...) }

// OnStart registers a hook run after a session becomes Active and before
// the SessionStart milestone is dispatched.
func (m *Manager) OnStart(fn func(epoch uint64)) { m.onStart = append(m.onStart, fn) }

// Start requests a session from the host. A missing required feature comes
// back as *host.FeatureUnsupportedError; nothing is retried.
func (m *Manager) Start(ctx context.Context, required, optional []host.Feature) error {
	if m.state != Idle {
		return fmt.Errorf("%w (state %s)", ErrSessionActive, m.state)
	}
	m.state = Requesting
	sess, err := m.runtime.RequestSession(ctx, required, optional)
	if err != nil {
		m.state = Idle
		m.log.Warn("session request failed", zap.Error(err))
		return fmt.Errorf("request session: %w", err)
	}
	m.session = sess
	m.epoch++
	m.state = Active
	m.log.Info("session started",
		zap.Uint64("session", sess.ID()),
		zap.Uint64("epoch", m.epoch),
	)

	m.bus.BeginSession(m.epoch)
	for _, fn := range m.onStart {
		fn(m.epoch)
	}
	m.bus.Fire(milestone.OnSessionStart(), "")
	m.bus.Dispatch()
	return nil
}

// End tears the active session down. Repeated calls, or calls with no
// active session, are no-ops reporting false.
func (m *Manager) End() bool {
	if m.state != Active {
		return false
	}
	m.state = Ended
	for _, r := range m.resetters {
		r.Reset()
	}
	if err := m.session.End(); err != nil {
		m.log.Debug("host session end", zap.Error(err))
	}
	m.bus.Fire(milestone.OnSessionEnd(), "")
	m.bus.Dispatch()

	m.log.Info("session ended",
		zap.Uint64("session", m.session.ID()),
		zap.Uint64("epoch", m.epoch),
	)
	m.session = nil
	m.state = Idle
	return true
}

func (m *Manager) State() State { return m.state }

// Epoch identifies the current (or last) session; it increases on every
// successful Start.
func (m *Manager) Epoch() uint64 { return m.epoch }

// Current returns the active session and its epoch.
func (m *Manager) Current() (host.Session, uint64, bool) {
	if m.state != Active {
		return nil, 0, false
	}
	return m.session, m.epoch, true
}
