// bundle_test.go: tests for on-disk bundles and Lua hook scripts
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func newBundleLoader(logger Logger) *ResourceLoader {
	loader := NewResourceLoader(logger)
	loader.Register(BundleScheme, NewBundleHandler(nil, ""))
	loader.Register(LuaScheme, NewLuaHookHandler(logger))
	loader.Register(DefaultHookScheme, NewHookRegistry())
	return loader
}

func TestBundleHandler_Resolve(t *testing.T) {
	dir := t.TempDir()
	bundle := writeBundle(t, dir, "greeter", DefaultManifestFile, "PLUGIN-ID: greeter\nVERSION: 1.0\n")

	loader := newBundleLoader(nil)
	res, err := loader.Resolve(BundleReference(bundle))
	require.NoError(t, err)

	plugin, ok := res.(PluginResource)
	require.True(t, ok)
	manifest, err := plugin.Manifest()
	require.NoError(t, err)
	assert.Equal(t, "greeter", manifest.ID())
	assert.Equal(t, BundleReference(bundle), res.Reference())
}

func TestBundleHandler_Errors(t *testing.T) {
	dir := t.TempDir()
	loader := newBundleLoader(nil)

	_, err := loader.Resolve(BundleReference(filepath.Join(dir, "absent")))
	assert.True(t, HasErrorCode(err, ErrCodeResourceNotFound))

	empty := filepath.Join(dir, "empty")
	writeFile(t, filepath.Join(empty, "README"), "no manifest")
	_, err = loader.Resolve(BundleReference(empty))
	assert.True(t, HasErrorCode(err, ErrCodeResourceNotFound))

	file := filepath.Join(dir, "file.txt")
	writeFile(t, file, "x")
	_, err = loader.Resolve(BundleReference(file))
	assert.True(t, HasErrorCode(err, ErrCodeResourceType))

	broken := writeBundle(t, dir, "broken", DefaultManifestFile, "VERSION: 1.0\n")
	_, err = loader.Resolve(BundleReference(broken))
	assert.True(t, IsManifestParseError(err))
}

func TestBundleHandler_CustomManifestFile(t *testing.T) {
	dir := t.TempDir()
	bundle := writeBundle(t, dir, "custom", "bundle.mf", "// header\nPLUGIN-ID: custom\n")

	handler := NewBundleHandler(NewManifestParser(WithCommentMarker("//")), "bundle.mf")
	assert.True(t, handler.hasManifest(bundle))
	assert.False(t, handler.hasManifest(dir))

	res, err := handler.Resolve(BundleReference(bundle), bundle)
	require.NoError(t, err)
	manifest, _ := res.(PluginResource).Manifest()
	assert.Equal(t, "custom", manifest.ID())
}

func TestBundleResource_QualifyHookUnit(t *testing.T) {
	b := &bundleResource{root: "/opt/plugins/greeter"}

	assert.Equal(t, "lua:"+filepath.Join("/opt/plugins/greeter", "hooks/a.lua"), b.QualifyHookUnit("lua:hooks/a.lua"))
	assert.Equal(t, "lua:/abs/a.lua", b.QualifyHookUnit("lua:/abs/a.lua"))
	assert.Equal(t, "hook:greeter.Hook", b.QualifyHookUnit("hook:greeter.Hook"))
}

const luaHookScript = `
calls = {}

function activate()
  table.insert(calls, "activate")
  log("activated")
  if fail_activate then
    return false, "refusing to start"
  end
end

function deactivate()
  table.insert(calls, "deactivate")
end

function on_state_change(state)
  table.insert(calls, "state:" .. state)
end
`

func TestLuaHooks_BundleLifecycle(t *testing.T) {
	dir := t.TempDir()
	bundle := writeBundle(t, dir, "scripted", DefaultManifestFile,
		"PLUGIN-ID: scripted\nPLUGIN-CLASSES: lua:hooks/main.lua\n")
	writeFile(t, filepath.Join(bundle, "hooks", "main.lua"), luaHookScript)

	logger := NewTestLogger()
	p, err := NewPluginLifecycle(BundleReference(bundle), newBundleLoader(logger), WithLifecycleLogger(logger))
	require.NoError(t, err)

	require.NoError(t, p.Load())
	require.NoError(t, p.Install())
	require.NoError(t, p.Activate())
	assert.Equal(t, StateActive, p.State())
	require.NoError(t, p.Deactivate())

	hook, ok := p.Hooks()[0].(*luaHook)
	require.True(t, ok)
	calls, ok := hook.state.GetGlobal("calls").(*lua.LTable)
	require.True(t, ok)
	assert.Equal(t, "state:installed", calls.RawGetInt(1).String())
	assert.Equal(t, "activate", calls.RawGetInt(2).String())
	assert.Equal(t, "deactivate", calls.RawGetInt(4).String())
	assert.True(t, logger.HasMessage("INFO", "activated"))

	require.NoError(t, p.Uninstall())
	require.NoError(t, p.Dispose())
	assert.True(t, hook.closed)
}

func TestLuaHooks_FailingActivation(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fail.lua")
	writeFile(t, script, "fail_activate = true\n"+luaHookScript)

	handler := NewLuaHookHandler(nil)
	res, err := handler.Resolve("lua:"+script, script)
	require.NoError(t, err)
	value, err := res.(HookFactory).NewHook()
	require.NoError(t, err)
	hook := value.(*luaHook)
	defer func() { _ = hook.Close() }()

	err = hook.Activate()
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeLuaHook))
	assert.Contains(t, err.Error(), "activate")
}

func TestLuaHooks_ScriptErrors(t *testing.T) {
	dir := t.TempDir()
	handler := NewLuaHookHandler(nil)

	_, err := handler.Resolve("lua:missing.lua", filepath.Join(dir, "missing.lua"))
	assert.True(t, HasErrorCode(err, ErrCodeResourceNotFound))

	_, err = handler.Resolve("lua:"+dir, dir)
	assert.True(t, HasErrorCode(err, ErrCodeResourceType))

	syntax := filepath.Join(dir, "syntax.lua")
	writeFile(t, syntax, "function activate(")
	res, err := handler.Resolve("lua:"+syntax, syntax)
	require.NoError(t, err)
	_, err = res.(HookFactory).NewHook()
	assert.True(t, HasErrorCode(err, ErrCodeLuaHook))

	raising := filepath.Join(dir, "raise.lua")
	writeFile(t, raising, "function deactivate() error('cannot stop') end\nactivate = 42\n")
	res, err = handler.Resolve("lua:"+raising, raising)
	require.NoError(t, err)
	value, err := res.(HookFactory).NewHook()
	require.NoError(t, err)
	hook := value.(*luaHook)

	assert.Error(t, hook.Deactivate())
	assert.Error(t, hook.Activate(), "non-function globals are rejected")
	assert.NoError(t, hook.OnStateChange(StateActive), "missing functions are no-ops")

	require.NoError(t, hook.Close())
	assert.Error(t, hook.Deactivate())
}

func TestLuaHooks_SandboxedLibraries(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "sandbox.lua")
	writeFile(t, script, "function activate() return os.exit(1) end\n")

	res, err := NewLuaHookHandler(nil).Resolve("lua:"+script, script)
	require.NoError(t, err)
	value, err := res.(HookFactory).NewHook()
	require.NoError(t, err)
	hook := value.(*luaHook)
	defer func() { _ = hook.Close() }()

	assert.Error(t, hook.Activate(), "os library must not be available")
}
