package future

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveOnce(t *testing.T) {
	f := New[int]()
	_, st, _ := f.Poll()
	assert.Equal(t, Requesting, st)

	assert.True(t, f.Resolve(7))
	assert.False(t, f.Resolve(8))
	v, st, err := f.Poll()
	assert.Equal(t, Resolved, st)
	assert.Equal(t, 7, v)
	assert.NoError(t, err)
}

func TestLateResolveAfterInvalidateIsNoop(t *testing.T) {
	f := New[string]()
	f.Invalidate()
	assert.False(t, f.Resolve("stale"))
	v, st, err := f.Poll()
	assert.Equal(t, Invalid, st)
	assert.Empty(t, v)
	assert.ErrorIs(t, err, ErrInvalidated)
}

func TestInvalidateDropsResolvedValue(t *testing.T) {
	f := Ready(42)
	f.Invalidate()
	v, st, _ := f.Poll()
	assert.Equal(t, Invalid, st)
	assert.Zero(t, v)
}

func TestFailKeepsCause(t *testing.T) {
	cause := errors.New("no planes")
	f := New[int]()
	assert.True(t, f.Fail(cause))
	_, st, err := f.Poll()
	assert.Equal(t, Invalid, st)
	assert.ErrorIs(t, err, cause)
}

func TestConcurrentResolveSettlesExactlyOnce(t *testing.T) {
	f := New[int]()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			if f.Resolve(v) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
