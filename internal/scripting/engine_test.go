package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/milestone"
)

func newEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestLoadsScriptsAndBindsActions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "milestones"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "milestones", "letter.lua"), []byte(`
milestones["Show-Letter"] = function(event)
  command("resume-" .. event.source)
end
`), 0o644))

	e := newEngine(t, dir)
	assert.Equal(t, []string{"show-letter"}, e.Actions())

	var queued []string
	e.SetCommandSink(func(name string) bool {
		queued = append(queued, name)
		return true
	})

	bus := milestone.NewBus(zap.NewNop())
	bus.Declare(milestone.Milestone{Trigger: milestone.AtTick(300, "envelope"), Action: "show-letter"})
	assert.Equal(t, 1, e.Bind(bus))

	bus.Fire(milestone.AtTick(300, ""), "envelope")
	assert.Equal(t, 1, bus.Dispatch())
	assert.Equal(t, []string{"resume-envelope"}, queued)
}

func TestHandlerErrorIsContained(t *testing.T) {
	e := newEngine(t, t.TempDir())
	require.NoError(t, e.LoadString(`milestones["boom"] = function(event) error("nope") end`))

	bus := milestone.NewBus(zap.NewNop())
	bus.Declare(milestone.Milestone{Trigger: milestone.OnSessionStart(), Action: "boom"})
	e.Bind(bus)
	bus.Fire(milestone.OnSessionStart(), "")
	assert.NotPanics(t, func() { bus.Dispatch() })
}

func TestEventFields(t *testing.T) {
	e := newEngine(t, t.TempDir())
	require.NoError(t, e.LoadString(`
seen = {}
milestones["intro"] = function(event)
  seen.kind = event.kind
  seen.tick = event.tick
  log("intro at " .. event.tick)
end
`))
	bus := milestone.NewBus(zap.NewNop())
	bus.Declare(milestone.Milestone{Trigger: milestone.OnSessionStart(), Action: "intro"})
	e.Bind(bus)
	bus.SetTick(4)
	bus.Fire(milestone.OnSessionStart(), "")
	bus.Dispatch()

	require.NoError(t, e.LoadString(`assert(seen.kind == "session_start" and seen.tick == 4)`))
}

func TestMissingDirIsNotAnError(t *testing.T) {
	e := newEngine(t, filepath.Join(t.TempDir(), "absent"))
	assert.Empty(t, e.Actions())
}

func TestCommandWithoutSinkReturnsFalse(t *testing.T) {
	e := newEngine(t, t.TempDir())
	require.NoError(t, e.LoadString(`assert(command("x") == false)`))
}
