package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/config"
	"github.com/arstage/arstage/internal/control"
	"github.com/arstage/arstage/internal/data"
	"github.com/arstage/arstage/internal/host"
	"github.com/arstage/arstage/internal/host/sim"
	"github.com/arstage/arstage/internal/metrics"
	"github.com/arstage/arstage/internal/milestone"
	"github.com/arstage/arstage/internal/persist"
	"github.com/arstage/arstage/internal/render"
	"github.com/arstage/arstage/internal/scripting"
	"github.com/arstage/arstage/internal/stage"
	"github.com/arstage/arstage/internal/system"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tick loop against the simulated host",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runStage(cmd.Context(), configPath(cmd))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runStage(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	tbl, err := loadTables(cfg)
	if err != nil {
		return err
	}
	log.Info("tables loaded",
		zap.Int("assets", tbl.manifest.Count()),
		zap.Int("tracks", len(tbl.tracks)),
		zap.Int("milestones", len(tbl.milestones)),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, player := newHost(tbl.scenario)

	scripts, err := scripting.NewEngine(cfg.Milestones.ScriptsDir, log.Named("lua"))
	if err != nil {
		return err
	}
	defer scripts.Close()

	var journal system.JournalWriter
	if cfg.Journal.Enabled() {
		db, err := persist.NewDB(ctx, cfg.Journal, log.Named("db"))
		if err != nil {
			return err
		}
		defer db.Close()
		if err := persist.RunMigrations(ctx, db); err != nil {
			return err
		}
		journal = persist.NewJournalRepo(db)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	queue := control.NewQueue(cfg.Control.QueueSize)
	status := &control.Status{}

	st, err := stage.New(ctx, stage.Deps{
		Config:     cfg,
		Runtime:    rt,
		Loader:     data.NewFileLoader(tbl.manifest, cfg.Assets.Root),
		Tracks:     tbl.tracks,
		Milestones: tbl.milestones,
		Renderer:   render.NewLogRenderer(ticksPerSecond(cfg), log.Named("render")),
		Journal:    journal,
		Scripts:    scripts,
		Queue:      queue,
		Status:     status,
		Metrics:    metrics.New(reg),
		Log:        log,
	})
	if err != nil {
		return err
	}
	st.Bus().Tap(func(n milestone.Notification) {
		log.Info("milestone",
			zap.String("action", n.Action),
			zap.Stringer("trigger", n.Trigger),
			zap.String("source", n.Source),
			zap.Uint64("tick", n.Tick),
			zap.Bool("delivered", n.Delivered),
		)
	})

	srv := control.NewServer(queue, status, reg, log.Named("control"))
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- control.ListenAndServe(ctx, cfg.Control.BindAddress, srv.Handler(), log.Named("control"))
	}()

	if cfg.Session.AutoStart {
		if err := st.Start(ctx); err != nil {
			var fe *host.FeatureUnsupportedError
			if !errors.As(err, &fe) {
				return err
			}
			log.Error("AR session unavailable", zap.String("feature", string(fe.Feature)))
		}
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	ticker := time.NewTicker(cfg.Stage.TickRate)
	defer ticker.Stop()

	log.Info("tick loop started", zap.Duration("tick", cfg.Stage.TickRate))

	for {
		select {
		case <-ticker.C:
			var frame host.Frame
			if player != nil {
				if step, first, ok := player.Next(); ok {
					if first {
						applyStep(st, step)
					}
					frame = step.Frame()
				}
			}
			rt.Advance()
			st.Tick(frame)
		case err := <-srvErr:
			st.Close(context.Background())
			if err == nil {
				err = errors.New("stopped unexpectedly")
			}
			return fmt.Errorf("control server: %w", err)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			return shutdown(st, cancel, srvErr, log)
		case <-ctx.Done():
			return shutdown(st, cancel, srvErr, log)
		}
	}
}

// newHost builds the simulated runtime. Without a scenario every feature is
// supported and no frames carry surface hits.
func newHost(sc *sim.Scenario) (*sim.Runtime, *sim.Player) {
	if sc == nil {
		return sim.NewRuntime(1, host.FeatureHitTest, host.FeatureDOMOverlay, host.FeatureLocal), nil
	}
	return sim.NewRuntime(sc.ResolveAfter, sc.HostFeatures()...), sim.NewPlayer(sc)
}

// applyStep queues a scenario step's one-shot input.
func applyStep(st *stage.Stage, step sim.Step) {
	if step.Select {
		st.Trigger()
	}
	if step.Command != "" {
		st.Command(step.Command)
	}
	if step.EndSession {
		st.End()
	}
}

func shutdown(st *stage.Stage, cancel context.CancelFunc, srvErr <-chan error, log *zap.Logger) error {
	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := st.Close(ctx); err != nil {
		log.Error("stage close", zap.Error(err))
	}
	cancel()
	if err := <-srvErr; err != nil {
		log.Warn("control server shutdown", zap.Error(err))
	}
	log.Info("stopped", zap.Uint64("ticks", st.Seq()))
	return nil
}

func ticksPerSecond(cfg *config.Config) uint64 {
	n := uint64(time.Second / cfg.Stage.TickRate)
	if n == 0 {
		return 1
	}
	return n
}
