package system

import (
	"time"

	"github.com/arstage/arstage/internal/host"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput   Phase = iota // 0: drain external input (select, commands, resize)
	PhaseTrack                // 1: surface hit-testing, reticle update
	PhasePlace                // 2: placement decay and removal
	PhaseAnimate              // 3: advance animation tracks, pause gates
	PhaseOutput               // 4: milestone dispatch, render, status
	PhasePersist              // 5: journal flush
	PhaseCleanup              // 6: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseTrack:
		return "track"
	case PhasePlace:
		return "place"
	case PhaseAnimate:
		return "animate"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// Tick is the per-frame context handed to every system. Frame is nil when
// the host has no AR frame this tick (no active session, or frame skipped).
type Tick struct {
	Seq      uint64        // 1-based tick counter
	Time     time.Duration // host timestamp
	Frame    host.Frame
	Duration float64 // animation seconds per tick at time scale 1
}

// System is the interface every per-tick system implements.
type System interface {
	Phase() Phase
	Update(t *Tick)
}
