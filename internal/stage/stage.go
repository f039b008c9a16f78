// Package stage owns one session context and drives the per-tick pipeline:
// input, surface tracking, placement, animation, output, persistence and
// cleanup, in that order.
package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/config"
	"github.com/arstage/arstage/internal/control"
	coresys "github.com/arstage/arstage/internal/core/system"
	"github.com/arstage/arstage/internal/data"
	"github.com/arstage/arstage/internal/host"
	"github.com/arstage/arstage/internal/metrics"
	"github.com/arstage/arstage/internal/milestone"
	"github.com/arstage/arstage/internal/render"
	"github.com/arstage/arstage/internal/scripting"
	"github.com/arstage/arstage/internal/system"
	"github.com/arstage/arstage/internal/world"
	"github.com/arstage/arstage/internal/xr"
)

// Deps are the collaborators a Stage is built from. Config, Runtime, Loader
// and Log are required.
type Deps struct {
	Config     *config.Config
	Runtime    host.Runtime
	Loader     data.Loader
	Tracks     []data.TrackSpec
	Milestones []milestone.Milestone
	Renderer   render.Renderer      // defaults to render.Nop
	Journal    system.JournalWriter // nil disables journaling
	Scripts    *scripting.Engine    // nil: no Lua listeners
	Queue      *control.Queue       // created from config when nil
	Status     *control.Status      // receives every snapshot when set
	Metrics    *metrics.Metrics     // unregistered collectors when nil
	Log        *zap.Logger
}

// Stage is the engine instance. Apart from the input queue, every method
// must be called from the goroutine that calls Tick.
type Stage struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	queue   *control.Queue

	bus     *milestone.Bus
	world   *world.State
	library *data.Library
	manager *xr.Manager
	runner  *coresys.Runner

	surface     *system.SurfaceTracker
	placement   *system.PlacementController
	animation   *system.AnimationOrchestrator
	output      *system.OutputSystem
	persistence *system.PersistenceSystem

	seq uint64
}

func New(ctx context.Context, d Deps) (*Stage, error) {
	if d.Config == nil || d.Runtime == nil || d.Loader == nil || d.Log == nil {
		return nil, errors.New("stage: config, runtime, loader and logger are required")
	}
	cfg := d.Config
	log := d.Log
	m := d.Metrics
	if m == nil {
		m = metrics.NewUnregistered()
	}
	queue := d.Queue
	if queue == nil {
		queue = control.NewQueue(cfg.Control.QueueSize)
	}
	renderer := d.Renderer
	if renderer == nil {
		renderer = render.Nop{}
	}

	s := &Stage{
		cfg:     cfg,
		log:     log,
		metrics: m,
		queue:   queue,
		bus:     milestone.NewBus(log.Named("milestone")),
		world:   world.NewState(),
		runner:  coresys.NewRunner(log.Named("runner")),
	}
	s.library = data.NewLibrary(d.Loader, log.Named("assets"))
	s.manager = xr.NewManager(d.Runtime, s.bus, log.Named("session"))

	for _, ms := range d.Milestones {
		s.bus.Declare(ms)
	}
	s.bus.Tap(s.countMilestone)

	s.surface = system.NewSurfaceTracker(s.manager, m, log.Named("surface"))
	s.placement = system.NewPlacementController(s.world, s.surface, s.library, cfg.Placement, m, log.Named("placement"))
	s.animation = system.NewAnimationOrchestrator(s.world, s.library, s.bus, cfg.Animation.DefaultTimeScale, m, log.Named("animation"))
	s.animation.Declare(d.Tracks)
	if cfg.Placement.Animate {
		s.placement.AnimateWith(s.animation)
	}
	s.bus.HandleCommands(s.animation.ApplyCommand)

	// Preload every template the session can use.
	s.library.Request(cfg.Placement.Template)
	for _, tr := range d.Tracks {
		s.library.Request(tr.Template)
	}

	s.manager.OnStart(func(uint64) { s.animation.Activate() })
	s.manager.OnReset(s.surface, s.animation, s.placement)

	s.output = system.NewOutputSystem(s.world, s.manager, s.surface, s.animation, s.bus, renderer)
	if d.Status != nil {
		s.output.OnSnapshot(d.Status.Publish)
	}

	s.runner.Register(system.NewInputSystem(ctx, queue, s.manager, s.placement, s.bus, s.world, log.Named("input")))
	s.runner.Register(s.surface)
	s.runner.Register(s.placement)
	s.runner.Register(s.animation)
	s.runner.Register(s.output)
	if d.Journal != nil {
		s.persistence = system.NewPersistenceSystem(d.Journal, m, log.Named("journal"), cfg.Journal.FlushIntervalTicks, cfg.Journal.MaxBuffered)
		s.bus.Tap(s.persistence.Record)
		s.runner.Register(s.persistence)
	}
	s.runner.Register(system.NewCleanupSystem(s.world.ECS))
	s.runner.OnPanic(func(coresys.System, any) {
		m.RecoveredPanics.Inc()
	})

	queue.OnDrop(func(in control.Input) {
		m.DroppedInputs.Inc()
		log.Warn("input dropped, queue full", zap.Stringer("kind", in.Kind))
	})

	if d.Scripts != nil {
		d.Scripts.SetCommandSink(s.Command)
		n := d.Scripts.Bind(s.bus)
		log.Info("lua milestone listeners bound", zap.Int("actions", n))
	}
	return s, nil
}

func (s *Stage) countMilestone(n milestone.Notification) {
	s.metrics.Milestones.WithLabelValues(n.Trigger.Kind.String()).Inc()
	if !n.Delivered {
		s.metrics.DeliveryMisses.Inc()
	}
}

// Tick runs one full pipeline pass for a host frame. A nil frame (no frame
// this tick) still advances placement and animation.
func (s *Stage) Tick(frame host.Frame) uint64 {
	s.seq++
	s.bus.SetTick(s.seq)
	s.metrics.Ticks.Inc()
	s.runner.Tick(&coresys.Tick{
		Seq:      s.seq,
		Time:     time.Duration(s.seq) * s.cfg.Stage.TickRate,
		Frame:    frame,
		Duration: s.cfg.Stage.TickDuration,
	})
	return s.seq
}

// Start requests a session with the configured features.
func (s *Stage) Start(ctx context.Context) error {
	return s.StartWith(ctx,
		host.Features(s.cfg.Session.RequiredFeatures...),
		host.Features(s.cfg.Session.OptionalFeatures...))
}

// StartWith requests a session with explicit features.
func (s *Stage) StartWith(ctx context.Context, required, optional []host.Feature) error {
	s.bus.SetTick(s.seq)
	return s.manager.Start(ctx, required, optional)
}

// End ends the active session; a no-op without one.
func (s *Stage) End() bool {
	s.bus.SetTick(s.seq)
	return s.manager.End()
}

// Trigger queues a discrete placement trigger for the next tick.
func (s *Stage) Trigger() bool {
	return s.queue.Push(control.Input{Kind: control.InputSelect})
}

// Command queues an external command for the next tick.
func (s *Stage) Command(name string) bool {
	return s.queue.Push(control.Input{Kind: control.InputCommand, Name: name})
}

// Resize queues a viewport change for the next tick.
func (s *Stage) Resize(width, height int) bool {
	return s.queue.Push(control.Input{Kind: control.InputResize, Width: width, Height: height})
}

// Flush writes buffered journal entries now.
func (s *Stage) Flush(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}
	if err := s.persistence.Flush(ctx); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// Close ends the session and flushes the journal.
func (s *Stage) Close(ctx context.Context) error {
	s.End()
	return s.Flush(ctx)
}

// Snapshot builds the current scene view.
func (s *Stage) Snapshot() *world.Snapshot { return s.output.Snapshot(s.seq) }

func (s *Stage) Seq() uint64                              { return s.seq }
func (s *Stage) Bus() *milestone.Bus                      { return s.bus }
func (s *Stage) World() *world.State                      { return s.world }
func (s *Stage) Library() *data.Library                   { return s.library }
func (s *Stage) Manager() *xr.Manager                     { return s.manager }
func (s *Stage) Queue() *control.Queue                    { return s.queue }
func (s *Stage) Surface() *system.SurfaceTracker          { return s.surface }
func (s *Stage) Placement() *system.PlacementController   { return s.placement }
func (s *Stage) Animation() *system.AnimationOrchestrator { return s.animation }
