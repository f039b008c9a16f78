// Package control carries external input into the tick loop and exposes an
// HTTP surface for UI collaborators.
package control

import (
	"sync/atomic"

	"github.com/arstage/arstage/internal/host"
)

// InputKind discriminates external input.
type InputKind int

const (
	InputSelect       InputKind = iota // discrete placement trigger
	InputCommand                       // ExternalCommand(Name)
	InputResize                        // viewport Width x Height
	InputStartSession                  // start with Required/Optional features
	InputEndSession
)

func (k InputKind) String() string {
	switch k {
	case InputSelect:
		return "select"
	case InputCommand:
		return "command"
	case InputResize:
		return "resize"
	case InputStartSession:
		return "start_session"
	case InputEndSession:
		return "end_session"
	}
	return "unknown"
}

// Input is one external event. Reply, when set, receives the outcome once
// the tick loop has applied it; it must be buffered.
type Input struct {
	Kind     InputKind
	Name     string
	Width    int
	Height   int
	Required []host.Feature
	Optional []host.Feature
	Reply    chan error
}

// Queue is a bounded multi-producer queue drained by the tick goroutine.
type Queue struct {
	ch      chan Input
	dropped atomic.Uint64
	onDrop  func(Input)
}

func NewQueue(size int) *Queue {
	return &Queue{ch: make(chan Input, size)}
}

// OnDrop installs a hook called when Push rejects an input.
func (q *Queue) OnDrop(fn func(Input)) { q.onDrop = fn }

// Push enqueues without blocking. It reports false when the queue is full.
func (q *Queue) Push(in Input) bool {
	select {
	case q.ch <- in:
		return true
	default:
		q.dropped.Add(1)
		if q.onDrop != nil {
			q.onDrop(in)
		}
		return false
	}
}

// Drain applies every input queued at the time of the call, in arrival
// order. Inputs pushed while draining wait for the next call.
func (q *Queue) Drain(fn func(Input)) int {
	n := len(q.ch)
	for i := 0; i < n; i++ {
		select {
		case in := <-q.ch:
			fn(in)
		default:
			return i
		}
	}
	return n
}

// Len returns the number of queued inputs.
func (q *Queue) Len() int { return len(q.ch) }

// Dropped returns how many inputs were rejected because the queue was full.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
