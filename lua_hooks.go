// lua_hooks.go: hook units implemented as Lua scripts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"fmt"
	"os"
	"sync"

	"github.com/agilira/go-errors"
	lua "github.com/yuin/gopher-lua"
)

// LuaScheme is the reference scheme of Lua hook scripts.
const LuaScheme = "lua"

// ErrCodeLuaHook identifies a failure inside a Lua hook script.
const ErrCodeLuaHook = "LIFECYCLE_2110"

// Names of the optional global functions a hook script may define.
const (
	luaActivate      = "activate"
	luaDeactivate    = "deactivate"
	luaOnStateChange = "on_state_change"
)

// LuaHookHandler resolves "lua:<path>" references into hooks backed by a
// Lua script. Each hook gets its own interpreter with only the base, table,
// string and math libraries opened; io, os, debug and package are not
// available to scripts.
//
// A script defines any of these globals:
//
//	function activate() end
//	function deactivate() end
//	function on_state_change(state) end
//
// A hook call fails when the function raises an error or returns false,
// optionally followed by a message:
//
//	function activate()
//	  if not ready then return false, "not ready" end
//	end
//
// Scripts can log through the global log(message) function.
type LuaHookHandler struct {
	logger Logger
}

// NewLuaHookHandler creates the handler for the lua scheme.
func NewLuaHookHandler(logger Logger) *LuaHookHandler {
	return &LuaHookHandler{logger: NewLogger(logger)}
}

// Resolve implements SchemeHandler. The script must exist; it is executed
// when a hook is created.
func (h *LuaHookHandler) Resolve(reference, path string) (Resource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, NewResourceNotFoundError(reference, err)
	}
	if info.IsDir() {
		return nil, NewResourceTypeError(reference, "lua script")
	}
	return &luaHookFactory{reference: reference, path: path, logger: h.logger.With("script", path)}, nil
}

type luaHookFactory struct {
	reference string
	path      string
	logger    Logger
}

func (f *luaHookFactory) Reference() string { return f.reference }

// NewHook runs the script in a fresh sandboxed state.
func (f *luaHookFactory) NewHook() (any, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	logger := f.logger
	L.SetGlobal("log", L.NewFunction(func(L *lua.LState) int {
		logger.Info(L.ToString(1))
		return 0
	}))

	if err := L.DoFile(f.path); err != nil {
		L.Close()
		return nil, newLuaHookError(f.path, "load", err)
	}
	return &luaHook{path: f.path, state: L}, nil
}

// luaHook adapts a loaded script to Hook. Calls are serialized because an
// LState is not safe for concurrent use.
type luaHook struct {
	mu     sync.Mutex
	path   string
	state  *lua.LState
	closed bool
}

func (h *luaHook) Activate() error {
	return h.call(luaActivate)
}

func (h *luaHook) Deactivate() error {
	return h.call(luaDeactivate)
}

func (h *luaHook) OnStateChange(state LifecycleState) error {
	return h.call(luaOnStateChange, lua.LString(state.String()))
}

// Close releases the interpreter.
func (h *luaHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.state.Close()
		h.closed = true
	}
	return nil
}

func (h *luaHook) call(name string, args ...lua.LValue) (err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return newLuaHookError(h.path, name, fmt.Errorf("interpreter closed"))
	}

	fn := h.state.GetGlobal(name)
	if fn == lua.LNil {
		return nil
	}
	if fn.Type() != lua.LTFunction {
		return newLuaHookError(h.path, name, fmt.Errorf("%s is not a function (got %s)", name, fn.Type()))
	}

	defer func() {
		if r := recover(); r != nil {
			err = newLuaHookError(h.path, name, fmt.Errorf("lua panic: %v", r))
		}
	}()

	top := h.state.GetTop()
	h.state.Push(fn)
	for _, arg := range args {
		h.state.Push(arg)
	}
	if err := h.state.PCall(len(args), lua.MultRet, nil); err != nil {
		return newLuaHookError(h.path, name, err)
	}

	n := h.state.GetTop() - top
	if n <= 0 {
		return nil
	}
	first := h.state.Get(top + 1)
	message := ""
	if n > 1 {
		message = h.state.Get(top + 2).String()
	}
	h.state.Pop(n)

	if first == lua.LFalse {
		if message == "" {
			message = name + " returned false"
		}
		return newLuaHookError(h.path, name, fmt.Errorf("%s", message))
	}
	return nil
}

func newLuaHookError(path, function string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeLuaHook, "Lua hook "+function+" failed").
		WithUserMessage("A Lua hook script reported an error").
		WithContext("script", path).
		WithContext("function", function).
		WithSeverity("error")
}
