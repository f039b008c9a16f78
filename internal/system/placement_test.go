package system

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/config"
	"github.com/arstage/arstage/internal/core/ecs"
	"github.com/arstage/arstage/internal/geom"
	"github.com/arstage/arstage/internal/metrics"
	"github.com/arstage/arstage/internal/world"
)

func placementConfig() config.PlacementConfig {
	return config.PlacementConfig{
		Template:      "/models/envelope.glb",
		Scale:         1,
		PositionScale: 1,
		FallStep:      0.5,
		Floor:         -1,
	}
}

func TestTriggerWithoutSurfaceIsNoop(t *testing.T) {
	ws := world.NewState()
	m := metrics.NewUnregistered()
	p := NewPlacementController(ws, &fixedReticle{}, library(envelope()), placementConfig(), m, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, ok := p.OnTrigger(uint64(i + 1))
		assert.False(t, ok)
	}
	assert.Empty(t, p.Active())
	assert.Zero(t, ws.ECS.Live())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PlacementNoops.WithLabelValues("no_surface")))
}

func TestTriggerWithoutTemplateIsNoop(t *testing.T) {
	ws := world.NewState()
	m := metrics.NewUnregistered()
	p := NewPlacementController(ws, visibleAt(geom.V(0, 0, -1)), library(), placementConfig(), m, zap.NewNop())

	_, ok := p.OnTrigger(1)
	assert.False(t, ok)
	assert.Empty(t, p.Active())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlacementNoops.WithLabelValues("template_unavailable")))
}

func TestTwoTriggersCreateIndependentEntities(t *testing.T) {
	ws := world.NewState()
	ret := visibleAt(geom.V(0, 0, -1))
	p := NewPlacementController(ws, ret, library(envelope()), placementConfig(), metrics.NewUnregistered(), zap.NewNop())

	a, ok := p.OnTrigger(1)
	require.True(t, ok)
	b, ok := p.OnTrigger(1)
	require.True(t, ok)
	assert.NotEqual(t, a, b)
	assert.Equal(t, []ecs.EntityID{a, b}, p.Active())

	ta, _ := ws.Transforms.Get(a)
	tb, _ := ws.Transforms.Get(b)
	assert.NotSame(t, ta, tb)
	assert.Equal(t, geom.V(0, 0, -1), ta.Position)
	assert.Equal(t, geom.V(0, 0, -1), tb.Position)

	ma, _ := ws.Models.Get(a)
	mb, _ := ws.Models.Get(b)
	assert.NotSame(t, ma.Template, mb.Template)

	// moving the reticle later does not move earlier clones
	ret.r.Pose = geom.Pose(geom.V(3, 0, -2))
	p.Update(tick(2, nil))
	c, ok := p.OnTrigger(2)
	require.True(t, ok)
	tc, _ := ws.Transforms.Get(c)
	assert.Equal(t, geom.V(3, 0, -2), tc.Position)
	assert.Equal(t, -0.5, ta.Position.Y())
	assert.Equal(t, -0.5, tb.Position.Y())

	p.Update(tick(3, nil))
	assert.Equal(t, -1.0, ta.Position.Y())
	assert.Equal(t, -0.5, tc.Position.Y(), "each clone decays on its own clock")

	pa, _ := ws.Placed.Get(a)
	pc, _ := ws.Placed.Get(c)
	assert.Equal(t, uint64(1), pa.SpawnTick)
	assert.Equal(t, uint64(2), pc.SpawnTick)
}

func TestEntityRemovedExactlyOnceAtFloor(t *testing.T) {
	ws := world.NewState()
	m := metrics.NewUnregistered()
	p := NewPlacementController(ws, visibleAt(geom.V(0, 0, -1)), library(envelope()), placementConfig(), m, zap.NewNop())
	cleanup := NewCleanupSystem(ws.ECS)

	id, ok := p.OnTrigger(1)
	require.True(t, ok)

	step := func(seq uint64) {
		p.Update(tick(seq, nil))
		cleanup.Update(tick(seq, nil))
	}
	step(2) // 0 -> -0.5
	step(3) // -0.5 -> -1
	assert.Contains(t, p.Active(), id)
	assert.True(t, ws.Alive(id))

	step(4) // at floor: removed
	assert.NotContains(t, p.Active(), id)
	assert.False(t, ws.Alive(id))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Removals))

	for seq := uint64(5); seq < 20; seq++ {
		step(seq)
		assert.NotContains(t, p.Active(), id)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Removals))
}

func TestRemovedEntityLeavesActiveSetBeforeCleanup(t *testing.T) {
	ws := world.NewState()
	cfg := placementConfig()
	cfg.FallStep = 2
	p := NewPlacementController(ws, visibleAt(geom.V(0, 0, -1)), library(envelope()), cfg, metrics.NewUnregistered(), zap.NewNop())
	id, _ := p.OnTrigger(1)

	p.Update(tick(2, nil)) // 0 -> -2
	p.Update(tick(3, nil)) // below floor: clamp and remove
	assert.NotContains(t, p.Active(), id)
	tr, _ := ws.Transforms.Get(id)
	assert.Equal(t, -1.0, tr.Position.Y(), "clamped to the floor")
	assert.True(t, ws.ECS.Pending(id))
}

func TestPlacementPoseAppliesOffsetsAndFacesViewer(t *testing.T) {
	ws := world.NewState()
	cfg := placementConfig()
	cfg.Offset = [3]float64{1, 2, 0}
	cfg.PositionScale = 40
	cfg.PostOffset = [3]float64{0, 0, -35}
	cfg.Scale = 0.5
	cfg.FaceViewer = true
	p := NewPlacementController(ws, visibleAt(geom.V(0, 0, -1)), library(envelope()), cfg, metrics.NewUnregistered(), zap.NewNop())

	id, ok := p.OnTrigger(1)
	require.True(t, ok)
	tr, _ := ws.Transforms.Get(id)
	assert.Equal(t, geom.V(40, 80, -75), tr.Position)
	assert.Equal(t, geom.V(0.5, 0.5, 0.5), tr.Scale)

	want := ws.Camera.Position.Sub(tr.Position).Normalize()
	got := tr.Rotation.Rotate(geom.V(0, 0, 1))
	assert.InDelta(t, want.X(), got.X(), 1e-9)
	assert.InDelta(t, want.Y(), got.Y(), 1e-9)
	assert.InDelta(t, want.Z(), got.Z(), 1e-9)
}

func TestResetClearsPlacedEntities(t *testing.T) {
	ws := world.NewState()
	p := NewPlacementController(ws, visibleAt(geom.V(0, 0, -1)), library(envelope()), placementConfig(), metrics.NewUnregistered(), zap.NewNop())
	a, _ := p.OnTrigger(1)
	p.Reset()
	assert.Empty(t, p.Active())
	assert.False(t, ws.Alive(a))
}

func TestAnimatedPlacementAddsTrack(t *testing.T) {
	ws := world.NewState()
	cfg := placementConfig()
	cfg.Animate = true
	lib := library(envelope())
	_, o := newOrchestrator(ws, lib)
	p := NewPlacementController(ws, visibleAt(geom.V(0, 0, -1)), lib, cfg, metrics.NewUnregistered(), zap.NewNop())
	p.AnimateWith(o)

	id, ok := p.OnTrigger(1)
	require.True(t, ok)
	tr, ok := o.Track("placed-" + id.String())
	require.True(t, ok)
	assert.Equal(t, id, tr.Entity)
	assert.Len(t, tr.Clips, 2)
}
