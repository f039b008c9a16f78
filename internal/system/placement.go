package system

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/config"
	"github.com/arstage/arstage/internal/core/ecs"
	coresys "github.com/arstage/arstage/internal/core/system"
	"github.com/arstage/arstage/internal/data"
	"github.com/arstage/arstage/internal/geom"
	"github.com/arstage/arstage/internal/metrics"
	"github.com/arstage/arstage/internal/world"
)

// ReticleSource exposes the latest reticle.
type ReticleSource interface {
	Reticle() world.Reticle
}

// TemplateSource answers non-blocking template lookups.
type TemplateSource interface {
	Lookup(path string) (*data.Template, bool)
}

// TrackAdder receives a clip track for a freshly placed clone.
type TrackAdder interface {
	AddTrack(tr *Track) error
}

// PlacementController spawns template clones at the reticle on discrete
// triggers and lets each clone fall until it reaches the floor. It alone
// creates and removes entities in the placed set. Phase 2 (Place).
type PlacementController struct {
	world     *world.State
	reticle   ReticleSource
	templates TemplateSource
	tracks    TrackAdder
	cfg       config.PlacementConfig
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewPlacementController(
	ws *world.State,
	reticle ReticleSource,
	templates TemplateSource,
	cfg config.PlacementConfig,
	m *metrics.Metrics,
	log *zap.Logger,
) *PlacementController {
	return &PlacementController{
		world:     ws,
		reticle:   reticle,
		templates: templates,
		cfg:       cfg,
		metrics:   m,
		log:       log,
	}
}

// AnimateWith gives every future clone its own clip track on tracks.
func (p *PlacementController) AnimateWith(tracks TrackAdder) { p.tracks = tracks }

func (p *PlacementController) Phase() coresys.Phase { return coresys.PhasePlace }

// OnTrigger handles one discrete select action at tick. Without a visible
// reticle or a loaded template it does nothing and reports false.
func (p *PlacementController) OnTrigger(tick uint64) (ecs.EntityID, bool) {
	ret := p.reticle.Reticle()
	if !ret.Visible {
		p.metrics.PlacementNoops.WithLabelValues("no_surface").Inc()
		return 0, false
	}
	tmpl, ok := p.templates.Lookup(p.cfg.Template)
	if !ok {
		p.metrics.PlacementNoops.WithLabelValues("template_unavailable").Inc()
		return 0, false
	}

	pose := p.placementPose(ret.Pose, tmpl)
	id := p.world.Spawn(tmpl, pose)
	p.world.Placed.Set(id, &world.Placed{SpawnTick: tick})
	p.metrics.Placements.Inc()
	p.metrics.ActiveEntities.Set(float64(len(p.Active())))

	if p.cfg.Animate && p.tracks != nil {
		m, _ := p.world.Models.Get(id)
		tr := NewTrack(fmt.Sprintf("placed-%s", id), id, m.Template.Clips())
		if err := p.tracks.AddTrack(tr); err != nil {
			p.log.Warn("clone track rejected", zap.Stringer("entity", id), zap.Error(err))
		}
	}
	p.log.Debug("entity placed",
		zap.Stringer("entity", id),
		zap.Uint64("tick", tick),
		zap.Float64("x", pose.Position.X()),
		zap.Float64("y", pose.Position.Y()),
		zap.Float64("z", pose.Position.Z()),
	)
	return id, true
}

// placementPose maps the hit pose to the clone pose: configured offsets and
// position scale, then facing the viewer with an optional tilt.
func (p *PlacementController) placementPose(hit geom.Transform, tmpl *data.Template) geom.Transform {
	c := p.cfg
	pos := hit.Position.Add(vec(c.Offset)).Mul(c.PositionScale).Add(vec(c.PostOffset))
	rot := hit.Rotation
	if rot == (geom.Quat{}) {
		rot = geom.Identity
	}
	if c.FaceViewer {
		rot = geom.LookRotation(pos, p.world.Camera.Position)
	}
	if c.TiltRadians != 0 {
		rot = rot.Mul(geom.AxisAngle(geom.V(1, 0, 0), c.TiltRadians))
	}
	return geom.Transform{
		Position: pos,
		Rotation: rot,
		Scale:    tmpl.Base().Scale.Mul(c.Scale),
	}
}

func vec(a [3]float64) geom.Vec3 { return geom.V(a[0], a[1], a[2]) }

func (p *PlacementController) Update(_ *coresys.Tick) {
	ecs.Each2(p.world.Placed, p.world.Transforms, func(id ecs.EntityID, pl *world.Placed, tr *geom.Transform) {
		if pl.Removed {
			return
		}
		if tr.Position.Y() > p.cfg.Floor {
			tr.Position[1] -= p.cfg.FallStep
			return
		}
		tr.Position[1] = p.cfg.Floor
		pl.Removed = true
		if p.world.ECS.MarkForDestruction(id) {
			p.metrics.Removals.Inc()
			p.log.Debug("entity reached floor", zap.Stringer("entity", id))
		}
	})
	p.metrics.ActiveEntities.Set(float64(len(p.Active())))
}

// Active returns the placed entities not yet removed, in handle order.
func (p *PlacementController) Active() []ecs.EntityID {
	var out []ecs.EntityID
	p.world.Placed.Each(func(id ecs.EntityID, pl *world.Placed) {
		if !pl.Removed {
			out = append(out, id)
		}
	})
	return out
}

// Reset removes every placed entity immediately.
func (p *PlacementController) Reset() {
	for _, id := range p.world.Placed.IDs() {
		p.world.ECS.MarkForDestruction(id)
	}
	p.world.ECS.FlushDestroyQueue()
	p.metrics.ActiveEntities.Set(0)
}
