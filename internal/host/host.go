// Package host declares the primitives the engine consumes from the AR
// runtime. Implementations wrap a platform SDK; the engine never talks to a
// platform directly.
package host

import (
	"context"
	"fmt"

	"github.com/arstage/arstage/internal/core/future"
	"github.com/arstage/arstage/internal/geom"
)

// Feature names a session capability negotiated at start.
type Feature string

const (
	FeatureHitTest    Feature = "hit-test"
	FeatureDOMOverlay Feature = "dom-overlay"
	FeatureLocal      Feature = "local"
)

// Features converts configured feature names.
func Features(names ...string) []Feature {
	if len(names) == 0 {
		return nil
	}
	out := make([]Feature, len(names))
	for i, n := range names {
		out[i] = Feature(n)
	}
	return out
}

// SpaceKind selects the coordinate frame of a reference space.
type SpaceKind string

const (
	SpaceViewer SpaceKind = "viewer"
	SpaceLocal  SpaceKind = "local"
)

// FeatureUnsupportedError is returned by Runtime.RequestSession when a
// required feature is not available on this device.
type FeatureUnsupportedError struct {
	Feature Feature
}

func (e *FeatureUnsupportedError) Error() string {
	return fmt.Sprintf("required feature %q unsupported", e.Feature)
}

// Runtime is the host AR runtime.
type Runtime interface {
	RequestSession(ctx context.Context, required, optional []Feature) (Session, error)
}

// Session is one immersive AR session. IDs are unique per Runtime.
type Session interface {
	ID() uint64
	RequestReferenceSpace(kind SpaceKind) *future.Future[ReferenceSpace]
	RequestHitTestSource(space ReferenceSpace) *future.Future[HitTestSource]
	End() error
}

// ReferenceSpace is an opaque coordinate frame owned by a session.
type ReferenceSpace interface {
	Kind() SpaceKind
}

// HitTestSource is an opaque handle used to query a frame for surface hits.
type HitTestSource interface {
	Cancel()
}

// Frame is the per-tick AR frame. HitTestResults returns candidate poses
// nearest first; an empty result means no surface under the viewer ray.
type Frame interface {
	HitTestResults(src HitTestSource) []geom.Transform
}
