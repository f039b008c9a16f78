// Package geom holds the pose types shared by the host, the scene and the
// systems. Vectors and rotations are mgl64 values.
package geom

import (
	"encoding/json"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a point or direction in a reference space, meters.
type Vec3 = mgl64.Vec3

// Quat is a unit rotation quaternion.
type Quat = mgl64.Quat

// Identity is the no-rotation quaternion.
var Identity = mgl64.QuatIdent()

func V(x, y, z float64) Vec3 { return Vec3{x, y, z} }

// AxisAngle builds a rotation of rad radians around axis.
func AxisAngle(axis Vec3, rad float64) Quat {
	return mgl64.QuatRotate(rad, axis.Normalize())
}

// LookRotation returns the rotation that points the local +Z axis from eye
// toward target with +Y kept as close to world up as possible. Degenerate
// inputs (eye == target) yield Identity.
func LookRotation(eye, target Vec3) Quat {
	d := target.Sub(eye)
	if d.Len() == 0 {
		return Identity
	}
	f := d.Normalize()
	up := Vec3{0, 1, 0}
	r := up.Cross(f)
	if r.Len() < 1e-9 {
		// looking straight up or down
		up = Vec3{0, 0, -1}
		r = up.Cross(f)
	}
	r = r.Normalize()
	u := f.Cross(r)
	return mgl64.Mat4ToQuat(mgl64.Mat3FromCols(r, u, f).Mat4()).Normalize()
}

// Transform is a pose plus scale. Hit-test results and entity placements
// are both expressed as Transforms.
type Transform struct {
	Position Vec3
	Rotation Quat
	Scale    Vec3
}

type transformJSON struct {
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"` // x, y, z, w
	Scale    [3]float64 `json:"scale"`
}

func (t Transform) MarshalJSON() ([]byte, error) {
	q := t.Rotation
	return json.Marshal(transformJSON{
		Position: t.Position,
		Rotation: [4]float64{q.V[0], q.V[1], q.V[2], q.W},
		Scale:    t.Scale,
	})
}

func (t *Transform) UnmarshalJSON(b []byte) error {
	var j transformJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	t.Position = j.Position
	t.Rotation = Quat{W: j.Rotation[3], V: Vec3{j.Rotation[0], j.Rotation[1], j.Rotation[2]}}
	t.Scale = j.Scale
	return nil
}

// Pose returns a unit-scale transform at p with no rotation.
func Pose(p Vec3) Transform {
	return Transform{Position: p, Rotation: Identity, Scale: Vec3{1, 1, 1}}
}
