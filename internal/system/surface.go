package system

import (
	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/core/future"
	coresys "github.com/arstage/arstage/internal/core/system"
	"github.com/arstage/arstage/internal/host"
	"github.com/arstage/arstage/internal/metrics"
	"github.com/arstage/arstage/internal/world"
)

// SessionSource exposes the active session and its epoch.
type SessionSource interface {
	Current() (host.Session, uint64, bool)
}

// acquisition tracks the viewer space -> hit-test source request chain.
type acquisition int

const (
	acquireIdle        acquisition = iota // nothing requested this session
	acquireSpace                          // waiting for the viewer reference space
	acquireSource                         // waiting for the hit-test source
	acquireReady                          // source resolved; hit-testing every frame
	acquireUnavailable                    // request failed; reticle stays hidden
)

func (a acquisition) String() string {
	switch a {
	case acquireIdle:
		return "idle"
	case acquireSpace:
		return "space"
	case acquireSource:
		return "source"
	case acquireReady:
		return "ready"
	case acquireUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// SurfaceTracker hit-tests the viewer ray against detected surfaces each
// frame and owns the reticle. Phase 1 (Track).
type SurfaceTracker struct {
	sessions SessionSource
	metrics  *metrics.Metrics
	log      *zap.Logger

	requested bool // one-shot guard for the acquisition chain
	state     acquisition
	epoch     uint64
	spaceF    *future.Future[host.ReferenceSpace]
	sourceF   *future.Future[host.HitTestSource]
	source    host.HitTestSource
	reticle   world.Reticle
}

func NewSurfaceTracker(sessions SessionSource, m *metrics.Metrics, log *zap.Logger) *SurfaceTracker {
	return &SurfaceTracker{sessions: sessions, metrics: m, log: log}
}

func (s *SurfaceTracker) Phase() coresys.Phase { return coresys.PhaseTrack }

func (s *SurfaceTracker) Update(t *coresys.Tick) {
	if t.Frame == nil {
		return
	}
	sess, epoch, ok := s.sessions.Current()
	if !ok {
		return
	}
	if s.requested && epoch != s.epoch {
		// a session switch that bypassed Reset; never reuse its handles
		s.Reset()
	}
	if !s.requested {
		s.requested = true
		s.epoch = epoch
		s.state = acquireSpace
		s.spaceF = sess.RequestReferenceSpace(host.SpaceViewer)
		s.log.Debug("hit-test acquisition started", zap.Uint64("epoch", epoch), zap.Uint64("tick", t.Seq))
		return
	}

	switch s.state {
	case acquireSpace:
		space, st, err := s.spaceF.Poll()
		switch st {
		case future.Resolved:
			s.state = acquireSource
			s.sourceF = sess.RequestHitTestSource(space)
		case future.Invalid:
			s.unavailable(err)
		}
		return
	case acquireSource:
		src, st, err := s.sourceF.Poll()
		switch st {
		case future.Resolved:
			s.state = acquireReady
			s.source = src
			s.log.Debug("hit-test source ready", zap.Uint64("epoch", epoch), zap.Uint64("tick", t.Seq))
		case future.Invalid:
			s.unavailable(err)
			return
		default:
			return
		}
	case acquireUnavailable, acquireIdle:
		return
	}

	results := t.Frame.HitTestResults(s.source)
	if len(results) > 0 {
		s.reticle.Pose = results[0]
		s.reticle.Visible = true
	} else {
		s.reticle.Visible = false
	}
	if s.reticle.Visible {
		s.metrics.ReticleVisible.Set(1)
	} else {
		s.metrics.ReticleVisible.Set(0)
	}
}

func (s *SurfaceTracker) unavailable(err error) {
	s.state = acquireUnavailable
	s.reticle.Visible = false
	s.metrics.ReticleVisible.Set(0)
	s.log.Warn("hit test unavailable", zap.Uint64("epoch", s.epoch), zap.Error(err))
}

// Reset drops every per-session handle. Outstanding futures are invalidated
// so a late host resolution is discarded instead of leaking into the next
// session.
func (s *SurfaceTracker) Reset() {
	if s.spaceF != nil {
		s.spaceF.Invalidate()
	}
	if s.sourceF != nil {
		s.sourceF.Invalidate()
	}
	if s.source != nil {
		s.source.Cancel()
	}
	s.requested = false
	s.state = acquireIdle
	s.spaceF = nil
	s.sourceF = nil
	s.source = nil
	s.reticle = world.Reticle{}
	s.metrics.ReticleVisible.Set(0)
}

// Reticle returns the current reticle.
func (s *SurfaceTracker) Reticle() world.Reticle { return s.reticle }

// Requested reports whether this session's acquisition was started.
func (s *SurfaceTracker) Requested() bool { return s.requested }

// Ready reports whether a hit-test source is in use.
func (s *SurfaceTracker) Ready() bool { return s.state == acquireReady }

// Acquisition names the acquisition state, for status output.
func (s *SurfaceTracker) Acquisition() string { return s.state.String() }
