// Package future models an out-of-band asynchronous acquisition as an
// explicit state machine that the tick loop polls. The host may settle a
// Future from any goroutine; the tick loop only ever calls Poll.
package future

import (
	"errors"
	"sync"
)

// State is the acquisition state of a Future.
type State int

const (
	Idle       State = iota // never requested
	Requesting              // request issued, not yet settled
	Resolved                // value available
	Invalid                 // failed or invalidated; terminal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Resolved:
		return "resolved"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// ErrInvalidated is reported by Poll after Invalidate.
var ErrInvalidated = errors.New("future invalidated")

// Future holds the eventual result of one request.
type Future[T any] struct {
	mu    sync.Mutex
	state State
	value T
	err   error
}

// New returns a Future already in the Requesting state.
func New[T any]() *Future[T] {
	return &Future[T]{state: Requesting}
}

// Ready returns a Future resolved to v.
func Ready[T any](v T) *Future[T] {
	return &Future[T]{state: Resolved, value: v}
}

// Failed returns a Future settled with err.
func Failed[T any](err error) *Future[T] {
	return &Future[T]{state: Invalid, err: err}
}

// Resolve settles the future with v. It reports false when the future was
// already settled or invalidated, in which case v is discarded.
func (f *Future[T]) Resolve(v T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Requesting {
		return false
	}
	f.state = Resolved
	f.value = v
	return true
}

// Fail settles the future with err; same no-op rules as Resolve.
func (f *Future[T]) Fail(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Requesting {
		return false
	}
	f.state = Invalid
	f.err = err
	return true
}

// Invalidate cancels the future. A resolved value is dropped so that a
// stale handle can never be observed afterwards.
func (f *Future[T]) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zero T
	f.state = Invalid
	f.value = zero
	if f.err == nil {
		f.err = ErrInvalidated
	}
}

// Poll returns the current state without blocking. The value is meaningful
// only when the state is Resolved; err only when Invalid.
func (f *Future[T]) Poll() (T, State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.state, f.err
}
