package system

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Runner executes systems in phase order each tick. A panicking system is
// recovered and logged; the remaining systems still run.
type Runner struct {
	systems []System
	sorted  bool
	log     *zap.Logger
	onPanic func(System, any)
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
		log:     log,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// OnPanic installs a hook called after a system panic is recovered.
func (r *Runner) OnPanic(fn func(System, any)) { r.onPanic = fn }

func (r *Runner) Tick(t *Tick) {
	r.ensureSorted()
	for _, s := range r.systems {
		r.run(s, t)
	}
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, t *Tick) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			r.run(s, t)
		}
	}
}

func (r *Runner) run(s System, t *Tick) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("system panic recovered",
				zap.String("system", fmt.Sprintf("%T", s)),
				zap.Stringer("phase", s.Phase()),
				zap.Uint64("tick", t.Seq),
				zap.Any("panic", rec),
			)
			if r.onPanic != nil {
				r.onPanic(s, rec)
			}
		}
	}()
	s.Update(t)
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
