// Package sim is a deterministic in-process host runtime. It backs the
// engine tests and the arstage CLI, which replays YAML scenarios instead of
// talking to a device.
package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/arstage/arstage/internal/core/future"
	"github.com/arstage/arstage/internal/geom"
	"github.com/arstage/arstage/internal/host"
)

// ErrSessionEnded is returned for requests made on an ended session.
var ErrSessionEnded = errors.New("sim: session ended")

// Manual disables automatic resolution; call Session.ResolvePending.
const Manual = -1

// Runtime implements host.Runtime.
type Runtime struct {
	mu           sync.Mutex
	supported    map[host.Feature]bool
	resolveAfter int
	nextID       uint64
	sessions     []*Session
}

// NewRuntime creates a runtime supporting the given features. Futures
// resolve resolveAfter Advance calls after being requested, or only on
// demand when resolveAfter is Manual.
func NewRuntime(resolveAfter int, supported ...host.Feature) *Runtime {
	r := &Runtime{
		supported:    make(map[host.Feature]bool, len(supported)),
		resolveAfter: resolveAfter,
	}
	for _, f := range supported {
		r.supported[f] = true
	}
	return r
}

func (r *Runtime) RequestSession(ctx context.Context, required, optional []host.Feature) (host.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range required {
		if !r.supported[f] {
			return nil, &host.FeatureUnsupportedError{Feature: f}
		}
	}
	enabled := make([]host.Feature, 0, len(required)+len(optional))
	enabled = append(enabled, required...)
	for _, f := range optional {
		if r.supported[f] {
			enabled = append(enabled, f)
		}
	}
	r.nextID++
	s := &Session{id: r.nextID, rt: r, enabled: enabled}
	r.sessions = append(r.sessions, s)
	return s, nil
}

// Advance counts down outstanding requests of every live session and
// resolves those that are due. Call once per host frame.
func (r *Runtime) Advance() {
	r.mu.Lock()
	sessions := append([]*Session(nil), r.sessions...)
	r.mu.Unlock()
	for _, s := range sessions {
		s.advance()
	}
}

// Last returns the most recently created session, or nil.
func (r *Runtime) Last() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) == 0 {
		return nil
	}
	return r.sessions[len(r.sessions)-1]
}

// Sessions returns every session created so far.
func (r *Runtime) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Session(nil), r.sessions...)
}

type pending struct {
	left    int
	resolve func()
}

// Session implements host.Session.
type Session struct {
	id      uint64
	rt      *Runtime
	enabled []host.Feature

	mu             sync.Mutex
	ended          bool
	pending        []*pending
	sources        []*Source
	spaceRequests  int
	sourceRequests int
}

func (s *Session) ID() uint64 { return s.id }

// Enabled lists the features granted at session start.
func (s *Session) Enabled() []host.Feature { return s.enabled }

func (s *Session) RequestReferenceSpace(kind host.SpaceKind) *future.Future[host.ReferenceSpace] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaceRequests++
	f := future.New[host.ReferenceSpace]()
	if s.ended {
		f.Fail(ErrSessionEnded)
		return f
	}
	space := &Space{kind: kind, session: s.id}
	s.enqueue(func() { f.Resolve(space) })
	return f
}

func (s *Session) RequestHitTestSource(space host.ReferenceSpace) *future.Future[host.HitTestSource] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceRequests++
	f := future.New[host.HitTestSource]()
	if s.ended {
		f.Fail(ErrSessionEnded)
		return f
	}
	if sp, ok := space.(*Space); !ok || sp.session != s.id {
		f.Fail(errors.New("sim: reference space belongs to another session"))
		return f
	}
	src := &Source{session: s.id}
	s.sources = append(s.sources, src)
	s.enqueue(func() { f.Resolve(src) })
	return f
}

func (s *Session) enqueue(resolve func()) {
	s.pending = append(s.pending, &pending{left: s.rt.resolveAfter, resolve: resolve})
}

func (s *Session) advance() {
	s.mu.Lock()
	var due []func()
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.left == Manual {
			kept = append(kept, p)
			continue
		}
		if p.left <= 0 {
			due = append(due, p.resolve)
			continue
		}
		p.left--
		kept = append(kept, p)
	}
	s.pending = kept
	s.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}

// ResolvePending resolves every outstanding request now, including requests
// of an ended session. Used to model late host resolutions.
func (s *Session) ResolvePending() {
	s.mu.Lock()
	due := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, p := range due {
		p.resolve()
	}
}

// SpaceRequests returns how many reference spaces were requested.
func (s *Session) SpaceRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spaceRequests
}

// SourceRequests returns how many hit-test sources were requested.
func (s *Session) SourceRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceRequests
}

func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	s.ended = true
	for _, src := range s.sources {
		src.Cancel()
	}
	return nil
}

// Space implements host.ReferenceSpace.
type Space struct {
	kind    host.SpaceKind
	session uint64
}

func (sp *Space) Kind() host.SpaceKind { return sp.kind }

// Source implements host.HitTestSource.
type Source struct {
	session  uint64
	mu       sync.Mutex
	canceled bool
}

func (src *Source) Session() uint64 { return src.session }

func (src *Source) Cancel() {
	src.mu.Lock()
	src.canceled = true
	src.mu.Unlock()
}

func (src *Source) Canceled() bool {
	src.mu.Lock()
	defer src.mu.Unlock()
	return src.canceled
}

// Frame implements host.Frame with a fixed set of surface hits.
type Frame struct {
	Hits []geom.Transform
}

func (f *Frame) HitTestResults(src host.HitTestSource) []geom.Transform {
	s, ok := src.(*Source)
	if !ok || s.Canceled() {
		return nil
	}
	return append([]geom.Transform(nil), f.Hits...)
}

// FrameAt is a convenience for a frame with one hit at p.
func FrameAt(p geom.Vec3) *Frame {
	return &Frame{Hits: []geom.Transform{geom.Pose(p)}}
}
