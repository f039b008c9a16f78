package system

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/core/ecs"
	coresys "github.com/arstage/arstage/internal/core/system"
	"github.com/arstage/arstage/internal/data"
	"github.com/arstage/arstage/internal/geom"
	"github.com/arstage/arstage/internal/metrics"
	"github.com/arstage/arstage/internal/milestone"
	"github.com/arstage/arstage/internal/world"
)

// LoopMode selects what happens when a clip reaches its end.
type LoopMode int

const (
	LoopOnce   LoopMode = iota // play forward once
	LoopRepeat                 // wrap to the start
)

// PauseGate holds a track at a tick-count threshold until resumed.
type PauseGate struct {
	AtTick uint64
	Action string // milestone action fired when the gate closes
	Resume string // external command that reopens it
	Fired  bool
}

// Track is one clip-playback instance bound to an entity.
type Track struct {
	ID           string
	Entity       ecs.EntityID
	Clips        []data.Clip
	TimeScale    float64
	Loop         LoopMode
	Clamp        bool // LoopOnce only: hold the final pose instead of resetting
	ElapsedTicks uint64
	Time         float64 // seconds of clip time played
	Finished     bool
	Gate         *PauseGate

	resumeScale float64
}

// NewTrack builds a Once+Clamp track at time scale 1.
func NewTrack(id string, entity ecs.EntityID, clips []data.Clip) *Track {
	return &Track{
		ID:          id,
		Entity:      entity,
		Clips:       clips,
		TimeScale:   1,
		Loop:        LoopOnce,
		Clamp:       true,
		resumeScale: 1,
	}
}

// Paused reports whether the track is excluded from the update pass.
func (t *Track) Paused() bool { return t.TimeScale == 0 }

func (t *Track) duration() float64 {
	d := 0.0
	for _, c := range t.Clips {
		d = math.Max(d, c.Duration)
	}
	return d
}

func (t *Track) advance(dt float64) {
	t.ElapsedTicks++
	if t.Finished {
		return
	}
	t.Time += dt * t.TimeScale
	if t.Loop == LoopRepeat {
		return
	}
	if d := t.duration(); t.Time >= d {
		t.Finished = true
		if t.Clamp {
			t.Time = d
		} else {
			t.Time = 0
		}
	}
}

// ClipTimes returns the local time of each clip.
func (t *Track) ClipTimes() []float64 {
	out := make([]float64, len(t.Clips))
	for i, c := range t.Clips {
		switch {
		case c.Duration <= 0:
			out[i] = 0
		case t.Loop == LoopRepeat:
			out[i] = math.Mod(t.Time, c.Duration)
		default:
			out[i] = math.Min(t.Time, c.Duration)
		}
	}
	return out
}

type pendingTrack struct {
	spec data.TrackSpec
	wait uint64
}

// AnimationOrchestrator advances every track once per tick and enforces
// pause gates. It owns all tracks and their pause state; tracks pause and
// resume independently. Phase 3 (Animate).
type AnimationOrchestrator struct {
	world        *world.State
	templates    TemplateSource
	bus          *milestone.Bus
	metrics      *metrics.Metrics
	log          *zap.Logger
	defaultScale float64

	specs   []data.TrackSpec
	pending []pendingTrack
	tracks  map[string]*Track
	order   []string
}

func NewAnimationOrchestrator(
	ws *world.State,
	templates TemplateSource,
	bus *milestone.Bus,
	defaultScale float64,
	m *metrics.Metrics,
	log *zap.Logger,
) *AnimationOrchestrator {
	if defaultScale <= 0 {
		defaultScale = 1
	}
	return &AnimationOrchestrator{
		world:        ws,
		templates:    templates,
		bus:          bus,
		metrics:      m,
		log:          log,
		defaultScale: defaultScale,
		tracks:       make(map[string]*Track),
	}
}

func (o *AnimationOrchestrator) Phase() coresys.Phase { return coresys.PhaseAnimate }

// Declare sets the track table activated on every session start and
// declares each track's pause milestone on the bus.
func (o *AnimationOrchestrator) Declare(specs []data.TrackSpec) {
	o.specs = append([]data.TrackSpec(nil), specs...)
	for _, s := range o.specs {
		if s.Pause != nil && s.Pause.Action != "" {
			o.bus.Declare(milestone.Milestone{
				Trigger: milestone.AtTick(s.Pause.AtTick, s.ID),
				Action:  s.Pause.Action,
			})
		}
	}
}

// Activate queues the declared tracks for binding. Each binds once its
// template is loaded and its start delay has elapsed.
func (o *AnimationOrchestrator) Activate() {
	o.pending = o.pending[:0]
	for _, s := range o.specs {
		o.pending = append(o.pending, pendingTrack{spec: s, wait: s.StartDelayTicks})
	}
}

// AddTrack registers a ready track. Track ids are unique.
func (o *AnimationOrchestrator) AddTrack(tr *Track) error {
	if tr.ID == "" {
		return fmt.Errorf("track without id")
	}
	if _, dup := o.tracks[tr.ID]; dup {
		return fmt.Errorf("track %q already exists", tr.ID)
	}
	if tr.resumeScale == 0 {
		tr.resumeScale = tr.TimeScale
		if tr.resumeScale == 0 {
			tr.resumeScale = o.defaultScale
		}
	}
	o.tracks[tr.ID] = tr
	o.order = append(o.order, tr.ID)
	return nil
}

func (o *AnimationOrchestrator) Update(t *coresys.Tick) {
	o.bindPending()

	dead := false
	for _, id := range o.order {
		tr := o.tracks[id]
		if !o.world.Alive(tr.Entity) {
			delete(o.tracks, id)
			dead = true
			continue
		}
		if tr.TimeScale == 0 {
			continue
		}
		tr.advance(t.Duration)
		if g := tr.Gate; g != nil && !g.Fired && tr.ElapsedTicks >= g.AtTick {
			g.Fired = true
			o.Pause(tr.ID)
			o.bus.Fire(milestone.AtTick(g.AtTick, ""), tr.ID)
			o.log.Info("track paused at gate",
				zap.String("track", tr.ID),
				zap.Uint64("elapsed", tr.ElapsedTicks),
				zap.Uint64("tick", t.Seq),
			)
		}
	}
	if dead {
		o.compact()
	}
	o.metrics.PausedTracks.Set(float64(o.pausedCount()))
}

func (o *AnimationOrchestrator) bindPending() {
	kept := o.pending[:0]
	for _, p := range o.pending {
		if p.wait > 0 {
			p.wait--
			kept = append(kept, p)
			continue
		}
		tmpl, ok := o.templates.Lookup(p.spec.Template)
		if !ok {
			kept = append(kept, p)
			continue
		}
		o.bind(p.spec, tmpl)
	}
	o.pending = kept
}

func (o *AnimationOrchestrator) bind(s data.TrackSpec, tmpl *data.Template) {
	pose := tmpl.Base()
	if len(s.Position) == 3 {
		pose.Position = geom.V(s.Position[0], s.Position[1], s.Position[2])
	}
	if s.Scale > 0 {
		pose.Scale = geom.V(s.Scale, s.Scale, s.Scale)
	}
	id := o.world.Spawn(tmpl, pose)
	o.world.Anchors.Set(id, &world.Anchor{TrackID: s.ID})

	tr := NewTrack(s.ID, id, tmpl.Clips())
	tr.TimeScale = o.defaultScale
	if s.TimeScale > 0 {
		tr.TimeScale = s.TimeScale
	}
	tr.resumeScale = tr.TimeScale
	if s.Loop == "repeat" {
		tr.Loop = LoopRepeat
	}
	tr.Clamp = s.Clamped()
	if s.Pause != nil {
		tr.Gate = &PauseGate{AtTick: s.Pause.AtTick, Action: s.Pause.Action, Resume: s.Pause.ResumeCommand}
	}
	if err := o.AddTrack(tr); err != nil {
		o.log.Warn("track not bound", zap.String("track", s.ID), zap.Error(err))
		o.world.ECS.MarkForDestruction(id)
		return
	}
	o.log.Debug("track bound", zap.String("track", s.ID), zap.Stringer("entity", id))
}

// Pause sets a track's time scale to zero. Pausing a paused track is a no-op.
func (o *AnimationOrchestrator) Pause(id string) bool {
	tr, ok := o.tracks[id]
	if !ok || tr.TimeScale == 0 {
		return false
	}
	tr.resumeScale = tr.TimeScale
	tr.TimeScale = 0
	return true
}

// Resume restores a paused track's time scale; advancement continues from
// the exact paused ElapsedTicks.
func (o *AnimationOrchestrator) Resume(id string) bool {
	tr, ok := o.tracks[id]
	if !ok || tr.TimeScale != 0 {
		return false
	}
	tr.TimeScale = tr.resumeScale
	o.log.Info("track resumed", zap.String("track", id), zap.Uint64("elapsed", tr.ElapsedTicks))
	return true
}

// ApplyCommand resumes every track whose gate fired and whose resume
// command is name. Installed as a bus command handler.
func (o *AnimationOrchestrator) ApplyCommand(name string) bool {
	name = milestone.Normalize(name)
	hit := false
	for _, id := range o.order {
		tr := o.tracks[id]
		g := tr.Gate
		if g == nil || !g.Fired || milestone.Normalize(g.Resume) != name {
			continue
		}
		if o.Resume(id) {
			hit = true
		}
	}
	return hit
}

// Track returns the track with id.
func (o *AnimationOrchestrator) Track(id string) (*Track, bool) {
	tr, ok := o.tracks[id]
	return tr, ok
}

// Tracks returns all tracks in insertion order.
func (o *AnimationOrchestrator) Tracks() []*Track {
	out := make([]*Track, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.tracks[id])
	}
	return out
}

// PendingCount returns the number of declared tracks not yet bound.
func (o *AnimationOrchestrator) PendingCount() int { return len(o.pending) }

// Views renders the tracks for a snapshot.
func (o *AnimationOrchestrator) Views() []world.TrackView {
	out := make([]world.TrackView, 0, len(o.order))
	for _, tr := range o.Tracks() {
		out = append(out, world.TrackView{
			ID:           tr.ID,
			Entity:       tr.Entity.String(),
			ClipTimes:    tr.ClipTimes(),
			ElapsedTicks: tr.ElapsedTicks,
			TimeScale:    tr.TimeScale,
			Paused:       tr.Paused(),
			Finished:     tr.Finished,
		})
	}
	return out
}

// Reset drops every track and destroys the anchored entities spawned for
// them.
func (o *AnimationOrchestrator) Reset() {
	for _, id := range o.world.Anchors.IDs() {
		o.world.ECS.MarkForDestruction(id)
	}
	o.world.ECS.FlushDestroyQueue()
	clear(o.tracks)
	o.order = o.order[:0]
	o.pending = o.pending[:0]
	o.metrics.PausedTracks.Set(0)
}

func (o *AnimationOrchestrator) compact() {
	kept := o.order[:0]
	for _, id := range o.order {
		if _, ok := o.tracks[id]; ok {
			kept = append(kept, id)
		}
	}
	o.order = kept
}

func (o *AnimationOrchestrator) pausedCount() int {
	n := 0
	for _, tr := range o.tracks {
		if tr.Paused() {
			n++
		}
	}
	return n
}
