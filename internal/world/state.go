package world

import (
	"github.com/arstage/arstage/internal/core/ecs"
	"github.com/arstage/arstage/internal/data"
	"github.com/arstage/arstage/internal/geom"
)

// Reticle marks the currently detected placement surface. Only the surface
// tracker writes it.
type Reticle struct {
	Pose    geom.Transform `json:"pose"`
	Visible bool           `json:"visible"`
}

// Placed marks an entity spawned by a placement trigger.
type Placed struct {
	SpawnTick uint64
	Removed   bool // set once, when the entity reaches the floor
}

// Anchor marks an entity spawned to carry a declared animation track.
type Anchor struct {
	TrackID string
}

// Model is an entity's own clone of its template.
type Model struct {
	Template *data.Template
}

// State is the scene: the entity arena plus the component stores systems
// share. Accessed only from the tick goroutine; no locks needed.
type State struct {
	ECS        *ecs.World
	Transforms *ecs.Store[geom.Transform]
	Placed     *ecs.Store[Placed]
	Anchors    *ecs.Store[Anchor]
	Models     *ecs.Store[Model]
	Camera     Camera
}

func NewState() *State {
	s := &State{
		ECS:        ecs.NewWorld(),
		Transforms: ecs.NewStore[geom.Transform](),
		Placed:     ecs.NewStore[Placed](),
		Anchors:    ecs.NewStore[Anchor](),
		Models:     ecs.NewStore[Model](),
		Camera:     DefaultCamera(),
	}
	r := s.ECS.Registry()
	r.Register(s.Transforms)
	r.Register(s.Placed)
	r.Register(s.Anchors)
	r.Register(s.Models)
	return s
}

// Spawn creates an entity carrying its own template clone at pose.
func (s *State) Spawn(tmpl *data.Template, pose geom.Transform) ecs.EntityID {
	id := s.ECS.CreateEntity()
	p := pose
	s.Transforms.Set(id, &p)
	if tmpl != nil {
		s.Models.Set(id, &Model{Template: tmpl.Clone()})
	}
	return id
}

// Alive reports whether id still refers to a live entity.
func (s *State) Alive(id ecs.EntityID) bool { return s.ECS.Alive(id) }
