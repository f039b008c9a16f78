package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolNeverIssuesZero(t *testing.T) {
	p := NewEntityPool()
	id := p.Create()
	assert.False(t, id.IsZero())
	assert.True(t, p.Alive(id))
	assert.False(t, p.Alive(0))
}

func TestPoolGenerationInvalidatesStaleHandle(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	require.True(t, p.Destroy(a))
	assert.False(t, p.Destroy(a), "second destroy is a no-op")

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index(), "slot reused")
	assert.NotEqual(t, a, b)
	assert.False(t, p.Alive(a))
	assert.True(t, p.Alive(b))
	assert.Equal(t, 1, p.Live())
}

func TestStoreIteratesInHandleOrder(t *testing.T) {
	s := NewStore[int]()
	ids := []EntityID{NewEntityID(5, 1), NewEntityID(1, 1), NewEntityID(3, 2)}
	for i, id := range ids {
		v := i
		s.Set(id, &v)
	}
	var seen []EntityID
	s.Each(func(id EntityID, _ *int) { seen = append(seen, id) })
	assert.Equal(t, []EntityID{NewEntityID(1, 1), NewEntityID(5, 1), NewEntityID(3, 2)}, seen)
}

func TestWorldDestroyQueueIsIdempotent(t *testing.T) {
	w := NewWorld()
	names := NewStore[string]()
	w.Registry().Register(names)

	id := w.CreateEntity()
	n := "clone"
	names.Set(id, &n)

	assert.True(t, w.MarkForDestruction(id))
	assert.False(t, w.MarkForDestruction(id))
	assert.True(t, w.Pending(id))
	assert.Equal(t, 1, w.FlushDestroyQueue())

	assert.False(t, w.Alive(id))
	assert.False(t, names.Has(id))
	assert.False(t, w.MarkForDestruction(id), "dead entity is never queued again")
	assert.Equal(t, 0, w.FlushDestroyQueue())
}

func TestEach2(t *testing.T) {
	a := NewStore[int]()
	b := NewStore[string]()
	x, y := NewEntityID(1, 1), NewEntityID(2, 1)
	one, s := 1, "b"
	a.Set(x, &one)
	a.Set(y, &one)
	b.Set(y, &s)

	var hit []EntityID
	Each2(a, b, func(id EntityID, _ *int, _ *string) { hit = append(hit, id) })
	assert.Equal(t, []EntityID{y}, hit)
}
