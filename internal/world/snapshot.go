package world

import (
	"github.com/arstage/arstage/internal/core/ecs"
	"github.com/arstage/arstage/internal/geom"
)

// EntityView is one entity as the renderer sees it.
type EntityView struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"` // "placed" or "anchor"
	Template  string         `json:"template"`
	Transform geom.Transform `json:"transform"`
}

// TrackView is one animation track as the renderer sees it.
type TrackView struct {
	ID           string    `json:"id"`
	Entity       string    `json:"entity"`
	ClipTimes    []float64 `json:"clip_times"`
	ElapsedTicks uint64    `json:"elapsed_ticks"`
	TimeScale    float64   `json:"time_scale"`
	Paused       bool      `json:"paused"`
	Finished     bool      `json:"finished"`
}

// Snapshot is the read-only scene handed to the renderer each tick and
// published as status.
type Snapshot struct {
	Tick     uint64       `json:"tick"`
	Session  string       `json:"session"`
	Reticle  Reticle      `json:"reticle"`
	Entities []EntityView `json:"entities"`
	Tracks   []TrackView  `json:"tracks"`
	Camera   Camera       `json:"camera"`
}

// EntityViews builds views of every transform-bearing entity in handle order.
func (s *State) EntityViews() []EntityView {
	out := make([]EntityView, 0, s.Transforms.Len())
	s.Transforms.Each(func(id ecs.EntityID, tr *geom.Transform) {
		v := EntityView{ID: id.String(), Transform: *tr}
		switch {
		case s.Placed.Has(id):
			v.Kind = "placed"
		case s.Anchors.Has(id):
			v.Kind = "anchor"
		}
		if m, ok := s.Models.Get(id); ok {
			v.Template = m.Template.Path()
		}
		out = append(out, v)
	})
	return out
}
