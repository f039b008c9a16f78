package system

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	coresys "github.com/arstage/arstage/internal/core/system"
	"github.com/arstage/arstage/internal/data"
	"github.com/arstage/arstage/internal/geom"
	"github.com/arstage/arstage/internal/host"
	"github.com/arstage/arstage/internal/host/sim"
	"github.com/arstage/arstage/internal/milestone"
	"github.com/arstage/arstage/internal/world"
	"github.com/arstage/arstage/internal/xr"
)

const testDT = 0.05

func tick(seq uint64, frame host.Frame) *coresys.Tick {
	return &coresys.Tick{Seq: seq, Frame: frame, Duration: testDT}
}

func envelope() *data.Template {
	return data.NewTemplate("/models/envelope.glb", geom.Pose(geom.Vec3{}),
		data.Clip{Name: "open", Duration: 2},
		data.Clip{Name: "lift", Duration: 1.5},
	)
}

func library(tmpls ...*data.Template) *data.Library {
	l := data.StaticLoader{}
	for _, t := range tmpls {
		l[t.Path()] = t
	}
	return data.NewLibrary(l, zap.NewNop())
}

// fixedReticle is a ReticleSource a test can move.
type fixedReticle struct{ r world.Reticle }

func (f *fixedReticle) Reticle() world.Reticle { return f.r }

func visibleAt(p geom.Vec3) *fixedReticle {
	return &fixedReticle{r: world.Reticle{Pose: geom.Pose(p), Visible: true}}
}

// startSession starts a session on a fresh sim runtime through a Manager.
func startSession(t *testing.T, resolveAfter int) (*sim.Runtime, *xr.Manager, *milestone.Bus) {
	t.Helper()
	rt := sim.NewRuntime(resolveAfter, host.FeatureHitTest)
	bus := milestone.NewBus(zap.NewNop())
	m := xr.NewManager(rt, bus, zap.NewNop())
	require.NoError(t, m.Start(context.Background(), []host.Feature{host.FeatureHitTest}, nil))
	return rt, m, bus
}
