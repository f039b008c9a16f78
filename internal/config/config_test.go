package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stage.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[stage]
tick_rate = "20ms"

[placement]
template = "/models/envelope.glb"
scale = 0.3
offset = [1.0, 2.0, 0.0]
position_scale = 40.0
post_offset = [0.0, 0.0, -35.0]
fall_step = 5.0
floor = -40.0
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Millisecond, cfg.Stage.TickRate)
	assert.Equal(t, 0.05, cfg.Stage.TickDuration, "default kept")
	assert.Equal(t, "/models/envelope.glb", cfg.Placement.Template)
	assert.Equal(t, [3]float64{1, 2, 0}, cfg.Placement.Offset)
	assert.Equal(t, -40.0, cfg.Placement.Floor)
	assert.Equal(t, []string{"hit-test"}, cfg.Session.RequiredFeatures)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
`)
	t.Setenv("ARSTAGE_LOG_LEVEL", "warn")
	t.Setenv("ARSTAGE_JOURNAL_DSN", "postgres://x@localhost/arstage")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Journal.Enabled())
}

func TestValidateRejectsBadTick(t *testing.T) {
	path := writeConfig(t, `
[stage]
tick_duration = 0.0

[control]
queue_size = 0

[journal]
max_buffered = 0
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick_duration")
	assert.Contains(t, err.Error(), "queue_size")
	assert.Contains(t, err.Error(), "max_buffered")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestShippedConfigPlacementPose(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "stage.toml"))
	require.NoError(t, err)

	p := cfg.Placement
	assert.Equal(t, 0.3, p.Scale)
	assert.Equal(t, [3]float64{1, 2, 0}, p.Offset)
	assert.Equal(t, 40.0, p.PositionScale)
	assert.Equal(t, [3]float64{0, 0, -35}, p.PostOffset)
	assert.InDelta(t, math.Pi/2+math.Pi/6, p.TiltRadians, 1e-12)
	assert.Equal(t, -40.0, p.Floor)
	assert.Equal(t, 10000, cfg.Journal.MaxBuffered)
}
