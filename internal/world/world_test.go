package world

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arstage/arstage/internal/data"
	"github.com/arstage/arstage/internal/geom"
)

func TestSpawnClonesTemplate(t *testing.T) {
	s := NewState()
	tmpl := data.NewTemplate("/m", geom.Pose(geom.Vec3{}), data.Clip{Name: "open", Duration: 1})
	a := s.Spawn(tmpl, geom.Pose(geom.V(0, 0, -1)))
	b := s.Spawn(tmpl, geom.Pose(geom.V(0, 0, -1)))

	ma, _ := s.Models.Get(a)
	mb, _ := s.Models.Get(b)
	assert.NotSame(t, ma.Template, mb.Template)
	assert.NotSame(t, tmpl, ma.Template)

	ta, _ := s.Transforms.Get(a)
	ta.Position[1] = 5
	tb, _ := s.Transforms.Get(b)
	assert.Equal(t, -1.0, tb.Position.Z())
	assert.Equal(t, 0.0, tb.Position.Y(), "poses are not shared")
}

func TestDestroyClearsAllStores(t *testing.T) {
	s := NewState()
	id := s.Spawn(nil, geom.Pose(geom.Vec3{}))
	s.Placed.Set(id, &Placed{SpawnTick: 1})
	require.True(t, s.ECS.MarkForDestruction(id))
	s.ECS.FlushDestroyQueue()
	assert.False(t, s.Alive(id))
	assert.False(t, s.Transforms.Has(id))
	assert.False(t, s.Placed.Has(id))
}

func TestCameraResize(t *testing.T) {
	c := DefaultCamera()
	assert.True(t, c.Resize(1920, 1080))
	assert.InDelta(t, 1920.0/1080.0, c.Aspect, 1e-9)
	assert.True(t, c.ProjectionDirty)
	assert.False(t, c.Resize(1920, 1080))
	assert.False(t, c.Resize(0, 10))
}

func TestEntityViews(t *testing.T) {
	s := NewState()
	tmpl := data.NewTemplate("/m", geom.Pose(geom.Vec3{}))
	a := s.Spawn(tmpl, geom.Pose(geom.Vec3{}))
	s.Placed.Set(a, &Placed{})
	b := s.Spawn(tmpl, geom.Pose(geom.Vec3{}))
	s.Anchors.Set(b, &Anchor{TrackID: "envelope"})

	views := s.EntityViews()
	require.Len(t, views, 2)
	assert.Equal(t, "placed", views[0].Kind)
	assert.Equal(t, "anchor", views[1].Kind)
	assert.Equal(t, "/m", views[1].Template)
}

func TestSnapshotJSONKeys(t *testing.T) {
	snap := Snapshot{
		Tick:    7,
		Reticle: Reticle{Pose: geom.Pose(geom.V(0, 0, -1)), Visible: true},
		Camera:  DefaultCamera(),
	}
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	var doc struct {
		Reticle map[string]json.RawMessage `json:"reticle"`
		Camera  map[string]json.RawMessage `json:"camera"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc.Reticle, "pose")
	assert.Contains(t, doc.Reticle, "visible")
	assert.Contains(t, doc.Camera, "projection_dirty")
	assert.Contains(t, doc.Camera, "aspect")
	assert.JSONEq(t, `{"position":[0,0,-1],"rotation":[0,0,0,1],"scale":[1,1,1]}`, string(doc.Reticle["pose"]))
}
