// Package script exposes light control to Lua. The upstream project ships a
// Python binding for the same purpose; here a small gopher-lua module covers
// scripted sequences (wake-up fades, test loops) without recompiling. The
// core library stands alone without it.
package script

import (
	"log/slog"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Controller is the slice of the light API scripts may drive.
type Controller interface {
	SetState(on bool) error
	SetBrightness(brightness int) error
	SetColor(r, g, b byte) error
	SetTemperature(kelvin int) error
	LoadScenario(id, speed byte) error
	QueryStatus() error
}

// Engine runs Lua scripts against one light session.
type Engine struct {
	light  Controller
	logger *slog.Logger
}

// New creates a script engine for the given light.
func New(light Controller, logger *slog.Logger) *Engine {
	return &Engine{light: light, logger: logger.With("component", "script")}
}

// Run executes the script file at path.
func (e *Engine) Run(path string) error {
	L := lua.NewState()
	defer L.Close()
	e.registerLightModule(L)
	return L.DoFile(path)
}

// RunString executes an inline script.
func (e *Engine) RunString(src string) error {
	L := lua.NewState()
	defer L.Close()
	e.registerLightModule(L)
	return L.DoString(src)
}

// registerLightModule registers the `light` global table in a Lua state.
func (e *Engine) registerLightModule(L *lua.LState) {
	mod := L.NewTable()

	mod.RawSetString("on", L.NewFunction(func(L *lua.LState) int {
		return e.call(L, e.light.SetState(true))
	}))

	mod.RawSetString("off", L.NewFunction(func(L *lua.LState) int {
		return e.call(L, e.light.SetState(false))
	}))

	mod.RawSetString("brightness", L.NewFunction(func(L *lua.LState) int {
		return e.call(L, e.light.SetBrightness(L.CheckInt(1)))
	}))

	mod.RawSetString("color", L.NewFunction(func(L *lua.LState) int {
		r := byte(L.CheckInt(1))
		g := byte(L.CheckInt(2))
		b := byte(L.CheckInt(3))
		return e.call(L, e.light.SetColor(r, g, b))
	}))

	mod.RawSetString("temperature", L.NewFunction(func(L *lua.LState) int {
		return e.call(L, e.light.SetTemperature(L.CheckInt(1)))
	}))

	mod.RawSetString("scenario", L.NewFunction(func(L *lua.LState) int {
		id := byte(L.CheckInt(1))
		speed := byte(L.OptInt(2, 7))
		return e.call(L, e.light.LoadScenario(id, speed))
	}))

	mod.RawSetString("status", L.NewFunction(func(L *lua.LState) int {
		return e.call(L, e.light.QueryStatus())
	}))

	mod.RawSetString("sleep", L.NewFunction(func(L *lua.LState) int {
		time.Sleep(time.Duration(L.CheckInt(1)) * time.Millisecond)
		return 0
	}))

	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		e.logger.Info(L.CheckString(1))
		return 0
	}))

	L.SetGlobal("light", mod)
}

// call logs command failures without aborting the script; the send path is
// fire-and-forget and scripted sequences should keep going.
func (e *Engine) call(L *lua.LState, err error) int {
	if err != nil {
		e.logger.Warn("light command failed", "err", err)
	}
	return 0
}
