package xr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/host"
	"github.com/arstage/arstage/internal/host/sim"
	"github.com/arstage/arstage/internal/milestone"
)

type countReset struct{ n int }

func (c *countReset) Reset() { c.n++ }

func newManager(t *testing.T, supported ...host.Feature) (*Manager, *sim.Runtime, *[]string) {
	t.Helper()
	bus := milestone.NewBus(zap.NewNop())
	bus.Declare(milestone.Milestone{Trigger: milestone.OnSessionStart(), Action: "started"})
	bus.Declare(milestone.Milestone{Trigger: milestone.OnSessionEnd(), Action: "ended"})
	var got []string
	record := func(n milestone.Notification) { got = append(got, n.Action) }
	bus.Subscribe("started", record)
	bus.Subscribe("ended", record)
	rt := sim.NewRuntime(sim.Manual, supported...)
	return NewManager(rt, bus, zap.NewNop()), rt, &got
}

var hitTest = []host.Feature{host.FeatureHitTest}

func TestStartEmitsSessionStart(t *testing.T) {
	m, _, got := newManager(t, host.FeatureHitTest)
	require.NoError(t, m.Start(context.Background(), hitTest, nil))
	assert.Equal(t, Active, m.State())
	assert.Equal(t, []string{"started"}, *got)

	_, epoch, ok := m.Current()
	assert.True(t, ok)
	assert.Equal(t, uint64(1), epoch)
}

func TestStartFailsOnceWithFeatureUnsupported(t *testing.T) {
	m, rt, got := newManager(t)
	err := m.Start(context.Background(), hitTest, nil)
	var fe *host.FeatureUnsupportedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, host.FeatureHitTest, fe.Feature)
	assert.Equal(t, Idle, m.State())
	assert.Empty(t, *got)
	assert.Nil(t, rt.Last(), "no retry, no session")
}

func TestOnlyOneActiveSession(t *testing.T) {
	m, _, _ := newManager(t, host.FeatureHitTest)
	require.NoError(t, m.Start(context.Background(), hitTest, nil))
	assert.ErrorIs(t, m.Start(context.Background(), hitTest, nil), ErrSessionActive)
}

func TestEndIsIdempotent(t *testing.T) {
	m, rt, got := newManager(t, host.FeatureHitTest)
	r := &countReset{}
	m.OnReset(r)
	require.NoError(t, m.Start(context.Background(), hitTest, nil))

	assert.True(t, m.End())
	assert.False(t, m.End())
	assert.False(t, m.End())

	assert.Equal(t, 1, r.n)
	assert.Equal(t, Idle, m.State())
	assert.True(t, rt.Last().Ended())
	assert.Equal(t, []string{"started", "ended"}, *got)
}

func TestEndWithoutSessionIsNoop(t *testing.T) {
	m, _, got := newManager(t, host.FeatureHitTest)
	r := &countReset{}
	m.OnReset(r)
	assert.False(t, m.End())
	assert.Zero(t, r.n)
	assert.Empty(t, *got)
}

func TestRestartAfterEndGetsNewEpoch(t *testing.T) {
	m, rt, _ := newManager(t, host.FeatureHitTest)
	var starts []uint64
	m.OnStart(func(e uint64) { starts = append(starts, e) })

	require.NoError(t, m.Start(context.Background(), hitTest, nil))
	m.End()
	require.NoError(t, m.Start(context.Background(), hitTest, nil))

	assert.Equal(t, []uint64{1, 2}, starts)
	assert.Len(t, rt.Sessions(), 2)
	s, _, _ := m.Current()
	assert.Equal(t, rt.Last().ID(), s.ID())
}

func TestCanceledContextSurfacesError(t *testing.T) {
	m, _, _ := newManager(t, host.FeatureHitTest)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Start(ctx, hitTest, nil), context.Canceled)
	assert.Equal(t, Idle, m.State())
}
