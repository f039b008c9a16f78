package system

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/metrics"
	"github.com/arstage/arstage/internal/milestone"
	"github.com/arstage/arstage/internal/persist"
)

type memJournal struct {
	batches [][]persist.JournalEntry
	fail    error
}

func (j *memJournal) WriteEntries(_ context.Context, entries []persist.JournalEntry) error {
	if j.fail != nil {
		return j.fail
	}
	j.batches = append(j.batches, append([]persist.JournalEntry(nil), entries...))
	return nil
}

func TestJournalFlushesEveryInterval(t *testing.T) {
	j := &memJournal{}
	p := NewPersistenceSystem(j, metrics.NewUnregistered(), zap.NewNop(), 3, 100)
	bus := milestone.NewBus(zap.NewNop())
	bus.Declare(milestone.Milestone{Trigger: milestone.OnSessionStart(), Action: "intro"})
	bus.Tap(p.Record)

	bus.BeginSession(1)
	bus.Fire(milestone.OnSessionStart(), "")
	bus.Dispatch()
	assert.Equal(t, 1, p.Buffered())

	p.Update(tick(1, nil))
	p.Update(tick(2, nil))
	assert.Empty(t, j.batches)
	p.Update(tick(3, nil))
	require.Len(t, j.batches, 1)
	e := j.batches[0][0]
	assert.Equal(t, "intro", e.Action)
	assert.Equal(t, "session_start", e.Kind)
	assert.False(t, e.Delivered, "no listener: journaled as a miss")
	assert.Zero(t, p.Buffered())
}

func TestJournalKeepsEntriesOnFailure(t *testing.T) {
	j := &memJournal{fail: errors.New("db down")}
	p := NewPersistenceSystem(j, metrics.NewUnregistered(), zap.NewNop(), 1, 100)
	p.Record(milestone.Notification{Action: "a", Trigger: milestone.OnSessionEnd()})

	p.Update(tick(1, nil))
	assert.Equal(t, 1, p.Buffered())

	j.fail = nil
	require.NoError(t, p.Flush(context.Background()))
	require.Len(t, j.batches, 1)
	assert.Zero(t, p.Buffered())
}

func TestJournalBufferDropsOldestWhenFull(t *testing.T) {
	j := &memJournal{fail: errors.New("db down")}
	m := metrics.NewUnregistered()
	p := NewPersistenceSystem(j, m, zap.NewNop(), 1, 3)

	for i := uint64(1); i <= 5; i++ {
		p.Record(milestone.Notification{Action: "a", Tick: i, Trigger: milestone.OnSessionEnd()})
		p.Update(tick(i, nil))
	}
	assert.Equal(t, 3, p.Buffered())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JournalDropped))

	j.fail = nil
	require.NoError(t, p.Flush(context.Background()))
	require.Len(t, j.batches, 1)
	var ticks []uint64
	for _, e := range j.batches[0] {
		ticks = append(ticks, e.Tick)
	}
	assert.Equal(t, []uint64{3, 4, 5}, ticks)
}
