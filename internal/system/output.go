package system

import (
	"strconv"

	coresys "github.com/arstage/arstage/internal/core/system"
	"github.com/arstage/arstage/internal/milestone"
	"github.com/arstage/arstage/internal/render"
	"github.com/arstage/arstage/internal/world"
)

// OutputSystem delivers the milestones fired during the tick, then hands
// the renderer a read-only snapshot of the scene. Phase 4 (Output).
type OutputSystem struct {
	world    *world.State
	sessions SessionSource
	surface  ReticleSource
	tracks   *AnimationOrchestrator
	bus      *milestone.Bus
	renderer render.Renderer
	publish  func(*world.Snapshot)
}

func NewOutputSystem(
	ws *world.State,
	sessions SessionSource,
	surface ReticleSource,
	tracks *AnimationOrchestrator,
	bus *milestone.Bus,
	renderer render.Renderer,
) *OutputSystem {
	return &OutputSystem{
		world:    ws,
		sessions: sessions,
		surface:  surface,
		tracks:   tracks,
		bus:      bus,
		renderer: renderer,
	}
}

// OnSnapshot installs a hook receiving each tick's snapshot after render.
// The snapshot is not reused; the hook may keep it.
func (s *OutputSystem) OnSnapshot(fn func(*world.Snapshot)) { s.publish = fn }

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(t *coresys.Tick) {
	s.bus.Dispatch()

	snap := s.Snapshot(t.Seq)
	s.renderer.Render(snap)
	s.world.Camera.ProjectionDirty = false
	if s.publish != nil {
		s.publish(snap)
	}
}

// Snapshot builds the current scene view.
func (s *OutputSystem) Snapshot(tick uint64) *world.Snapshot {
	snap := &world.Snapshot{
		Tick:     tick,
		Reticle:  s.surface.Reticle(),
		Entities: s.world.EntityViews(),
		Tracks:   s.tracks.Views(),
		Camera:   s.world.Camera,
	}
	if sess, _, ok := s.sessions.Current(); ok {
		snap.Session = strconv.FormatUint(sess.ID(), 10)
	}
	return snap
}
