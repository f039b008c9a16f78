// Package scripting runs Lua milestone listeners. Scripts register handlers
// in a global `milestones` table keyed by action:
//
//	milestones["show-letter"] = function(event)
//	  log("letter shown at tick " .. event.tick)
//	  command("resume-envelope")
//	end
package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/arstage/arstage/internal/milestone"
)

// CommandSink receives external commands issued by scripts. They are queued
// and applied at the start of the next tick.
type CommandSink func(name string) bool

// Engine wraps a single gopher-lua VM. Single-goroutine access only (tick
// loop).
type Engine struct {
	vm       *lua.LState
	log      *zap.Logger
	commands CommandSink
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory, then from its milestones/ subdirectory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("milestones", vm.NewTable())

	e := &Engine{vm: vm, log: log}
	vm.SetGlobal("command", vm.NewFunction(e.luaCommand))
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))

	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "milestones")} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk of Lua source, for embedded scripts and tests.
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

// SetCommandSink routes the command() builtin.
func (e *Engine) SetCommandSink(sink CommandSink) { e.commands = sink }

// Actions returns the actions that have a Lua handler, sorted.
func (e *Engine) Actions() []string {
	var out []string
	e.handlers().ForEach(func(k, v lua.LValue) {
		if _, ok := v.(*lua.LFunction); ok && k.Type() == lua.LTString {
			out = append(out, milestone.Normalize(k.String()))
		}
	})
	sort.Strings(out)
	return out
}

// Bind subscribes one bus listener per scripted action. Returns the number
// of actions bound.
func (e *Engine) Bind(bus *milestone.Bus) int {
	actions := e.Actions()
	for _, a := range actions {
		bus.Subscribe(a, e.listener())
	}
	return len(actions)
}

func (e *Engine) handlers() *lua.LTable {
	t, ok := e.vm.GetGlobal("milestones").(*lua.LTable)
	if !ok {
		return e.vm.NewTable()
	}
	return t
}

// handler finds the Lua function for a folded action name.
func (e *Engine) handler(action string) *lua.LFunction {
	var fn *lua.LFunction
	e.handlers().ForEach(func(k, v lua.LValue) {
		if f, ok := v.(*lua.LFunction); ok && fn == nil && milestone.Normalize(k.String()) == action {
			fn = f
		}
	})
	return fn
}

func (e *Engine) listener() milestone.Listener {
	return func(n milestone.Notification) {
		fn := e.handler(n.Action)
		if fn == nil {
			return
		}
		ev := e.vm.NewTable()
		ev.RawSetString("action", lua.LString(n.Action))
		ev.RawSetString("kind", lua.LString(n.Trigger.Kind.String()))
		ev.RawSetString("trigger", lua.LString(n.Trigger.String()))
		ev.RawSetString("source", lua.LString(n.Source))
		ev.RawSetString("tick", lua.LNumber(n.Tick))
		ev.RawSetString("session", lua.LNumber(n.Session))

		if err := e.vm.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, ev); err != nil {
			e.log.Error("lua milestone handler error", zap.String("action", n.Action), zap.Error(err))
		}
	}
}

// command(name) -> bool
func (e *Engine) luaCommand(L *lua.LState) int {
	name := L.CheckString(1)
	ok := false
	if e.commands != nil {
		ok = e.commands(name)
	}
	if !ok {
		e.log.Warn("lua command not queued", zap.String("command", name))
	}
	L.Push(lua.LBool(ok))
	return 1
}

// log(msg)
func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
