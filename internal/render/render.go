// Package render defines the presentation collaborator the engine hands a
// scene snapshot to once per tick.
package render

import (
	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/world"
)

// Renderer draws one tick's scene. Implementations must not retain snap
// past the call.
type Renderer interface {
	Render(snap *world.Snapshot)
}

// Func adapts a function to Renderer.
type Func func(snap *world.Snapshot)

func (f Func) Render(snap *world.Snapshot) { f(snap) }

// Nop discards every frame.
type Nop struct{}

func (Nop) Render(*world.Snapshot) {}

// LogRenderer writes a scene summary at debug level every Every ticks and
// whenever the entity count or viewport changes.
type LogRenderer struct {
	Every uint64
	log   *zap.Logger

	lastEntities int
	lastAspect   float64
}

func NewLogRenderer(every uint64, log *zap.Logger) *LogRenderer {
	if every == 0 {
		every = 1
	}
	return &LogRenderer{Every: every, log: log, lastEntities: -1}
}

func (r *LogRenderer) Render(snap *world.Snapshot) {
	changed := len(snap.Entities) != r.lastEntities || snap.Camera.Aspect != r.lastAspect
	if !changed && snap.Tick%r.Every != 0 {
		return
	}
	r.lastEntities = len(snap.Entities)
	r.lastAspect = snap.Camera.Aspect

	paused := 0
	for _, tr := range snap.Tracks {
		if tr.Paused {
			paused++
		}
	}
	r.log.Debug("frame",
		zap.Uint64("tick", snap.Tick),
		zap.String("session", snap.Session),
		zap.Bool("reticle", snap.Reticle.Visible),
		zap.Int("entities", len(snap.Entities)),
		zap.Int("tracks", len(snap.Tracks)),
		zap.Int("paused", paused),
		zap.Float64("aspect", snap.Camera.Aspect),
	)
}
