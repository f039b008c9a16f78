package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/control"
	coresys "github.com/arstage/arstage/internal/core/system"
	"github.com/arstage/arstage/internal/host"
	"github.com/arstage/arstage/internal/milestone"
	"github.com/arstage/arstage/internal/world"
)

// SessionController starts and ends the host session.
type SessionController interface {
	Start(ctx context.Context, required, optional []host.Feature) error
	End() bool
}

// InputSystem drains the external input queue and applies each input before
// anything else runs in the tick, so commands take effect before the next
// advance. Phase 0 (Input).
type InputSystem struct {
	queue     *control.Queue
	sessions  SessionController
	placement *PlacementController
	bus       *milestone.Bus
	world     *world.State
	ctx       context.Context
	timeout   time.Duration
	log       *zap.Logger
}

func NewInputSystem(
	ctx context.Context,
	queue *control.Queue,
	sessions SessionController,
	placement *PlacementController,
	bus *milestone.Bus,
	ws *world.State,
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		queue:     queue,
		sessions:  sessions,
		placement: placement,
		bus:       bus,
		world:     ws,
		ctx:       ctx,
		timeout:   5 * time.Second,
		log:       log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(t *coresys.Tick) {
	s.queue.Drain(func(in control.Input) {
		s.apply(t, in)
	})
}

func (s *InputSystem) apply(t *coresys.Tick, in control.Input) {
	switch in.Kind {
	case control.InputSelect:
		s.placement.OnTrigger(t.Seq)
	case control.InputCommand:
		if !s.bus.Command(in.Name) {
			s.log.Debug("command had no effect", zap.String("command", in.Name), zap.Uint64("tick", t.Seq))
		}
	case control.InputResize:
		if s.world.Camera.Resize(in.Width, in.Height) {
			s.log.Debug("viewport resized", zap.Int("width", in.Width), zap.Int("height", in.Height))
		}
	case control.InputStartSession:
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		err := s.sessions.Start(ctx, in.Required, in.Optional)
		cancel()
		if err != nil {
			s.log.Warn("session start failed", zap.Error(err))
		}
		reply(in, err)
	case control.InputEndSession:
		s.sessions.End()
		reply(in, nil)
	default:
		s.log.Warn("unknown input kind", zap.Stringer("kind", in.Kind))
	}
}

func reply(in control.Input, err error) {
	if in.Reply == nil {
		return
	}
	select {
	case in.Reply <- err:
	default:
	}
}
