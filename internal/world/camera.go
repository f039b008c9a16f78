package world

import "github.com/arstage/arstage/internal/geom"

// Camera carries the viewer parameters handed to the renderer. Resize is a
// pass-through: the engine never reads projection state itself.
type Camera struct {
	Position        geom.Vec3 `json:"position"`
	FOV             float64   `json:"fov"` // degrees
	Near            float64   `json:"near"`
	Far             float64   `json:"far"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	Aspect          float64   `json:"aspect"`
	ProjectionDirty bool      `json:"projection_dirty"`
}

func DefaultCamera() Camera {
	return Camera{
		Position: geom.V(0, 0, 5),
		FOV:      75,
		Near:     0.1,
		Far:      1000,
		Width:    1,
		Height:   1,
		Aspect:   1,
	}
}

// Resize updates the viewport. Non-positive sizes are ignored.
func (c *Camera) Resize(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	if width == c.Width && height == c.Height {
		return false
	}
	c.Width, c.Height = width, height
	c.Aspect = float64(width) / float64(height)
	c.ProjectionDirty = true
	return true
}
