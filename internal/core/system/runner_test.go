package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recorder struct {
	phase Phase
	name  string
	log   *[]string
	boom  bool
}

func (r *recorder) Phase() Phase { return r.phase }

func (r *recorder) Update(_ *Tick) {
	*r.log = append(*r.log, r.name)
	if r.boom {
		panic("boom")
	}
}

func TestRunnerOrdersByPhase(t *testing.T) {
	var seen []string
	r := NewRunner(zap.NewNop())
	r.Register(&recorder{phase: PhaseCleanup, name: "cleanup", log: &seen})
	r.Register(&recorder{phase: PhaseInput, name: "input", log: &seen})
	r.Register(&recorder{phase: PhaseAnimate, name: "animate", log: &seen})
	r.Register(&recorder{phase: PhaseTrack, name: "track", log: &seen})

	r.Tick(&Tick{Seq: 1})
	assert.Equal(t, []string{"input", "track", "animate", "cleanup"}, seen)
}

func TestRunnerRecoversPanicAndContinues(t *testing.T) {
	var seen []string
	panics := 0
	r := NewRunner(zap.NewNop())
	r.OnPanic(func(System, any) { panics++ })
	r.Register(&recorder{phase: PhaseTrack, name: "track", log: &seen, boom: true})
	r.Register(&recorder{phase: PhaseOutput, name: "output", log: &seen})

	assert.NotPanics(t, func() { r.Tick(&Tick{Seq: 1}) })
	assert.Equal(t, []string{"track", "output"}, seen)
	assert.Equal(t, 1, panics)
}

func TestTickPhase(t *testing.T) {
	var seen []string
	r := NewRunner(zap.NewNop())
	r.Register(&recorder{phase: PhaseInput, name: "input", log: &seen})
	r.Register(&recorder{phase: PhaseOutput, name: "output", log: &seen})
	r.TickPhase(PhaseOutput, &Tick{})
	assert.Equal(t, []string{"output"}, seen)
}
