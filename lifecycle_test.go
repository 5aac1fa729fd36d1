// lifecycle_test.go: tests for the per-plugin lifecycle state machine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluginLifecycle_HappyPath(t *testing.T) {
	env := newTestEnv()
	one := env.addHook("one")
	two := env.addHook("two")
	ref := env.addPlugin(t, "p", NewManifestBuilder("p").HookUnits("one", "hook:two"))

	var events []LifecycleEvent
	p := env.newLifecycle(t, ref, WithLifecycleEventHandler(func(e LifecycleEvent) {
		events = append(events, e)
	}))

	assert.Equal(t, StateUninstalled, p.State())
	require.NoError(t, p.Load())
	assert.Equal(t, "p", p.ID())

	require.NoError(t, p.Install())
	assert.Equal(t, StateInstalled, p.State())
	assert.Len(t, p.Hooks(), 2)

	require.NoError(t, p.Activate())
	assert.Equal(t, StateActive, p.State())
	assert.NoError(t, p.Err())

	require.NoError(t, p.Deactivate())
	assert.Equal(t, StateDeactivated, p.State())

	require.NoError(t, p.Activate())
	require.NoError(t, p.Deactivate())

	require.NoError(t, p.Uninstall())
	assert.Equal(t, StateUninstalled, p.State())

	require.NoError(t, p.Dispose())
	assert.Equal(t, StateDisposed, p.State())
	assert.Empty(t, p.Hooks())
	assert.NotNil(t, p.Manifest())

	assert.Equal(t, []LifecycleState{
		StateInstalled, StateActive, StateDeactivated, StateActive, StateDeactivated, StateUninstalled,
	}, one.states)
	assert.Equal(t, one.states, two.states)

	require.Len(t, events, 7)
	assert.Equal(t, StateUninstalled, events[0].From)
	assert.Equal(t, StateInstalled, events[0].To)
	assert.Equal(t, "p", events[0].PluginID)
	assert.Equal(t, ref, events[0].Reference)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, StateDisposed, events[6].To)
}

func TestPluginLifecycle_HooksCalledInDeclarationOrder(t *testing.T) {
	env := newTestEnv()
	env.addHook("a")
	env.addHook("b")
	ref := env.addPlugin(t, "p", NewManifestBuilder("p").HookUnits("a", "b"))

	p := env.newLifecycle(t, ref)
	require.NoError(t, p.Load())
	require.NoError(t, p.Install())
	env.log.calls = nil

	require.NoError(t, p.Activate())
	assert.Equal(t, []string{"a.activate", "b.activate", "a.state:active", "b.state:active"}, env.log.calls)
}

func TestPluginLifecycle_InvalidTransitions(t *testing.T) {
	env := newTestEnv()
	ref := env.addPlugin(t, "p", NewManifestBuilder("p"))
	p := env.newLifecycle(t, ref)

	// Install before Load has no manifest to work with.
	assert.True(t, IsPluginLifecycleError(p.Install()))

	require.NoError(t, p.Load())
	assert.True(t, IsPluginLifecycleError(p.Activate()))
	assert.True(t, IsPluginLifecycleError(p.Deactivate()))
	assert.True(t, IsPluginLifecycleError(p.Uninstall()))

	require.NoError(t, p.Install())
	assert.True(t, IsPluginLifecycleError(p.Install()))
	assert.True(t, IsPluginLifecycleError(p.Load()))
	assert.True(t, IsPluginLifecycleError(p.Dispose()))
	assert.True(t, IsPluginLifecycleError(p.Deactivate()))

	require.NoError(t, p.Activate())
	assert.True(t, IsPluginLifecycleError(p.Activate()))
	assert.True(t, IsPluginLifecycleError(p.Uninstall()))

	require.NoError(t, p.Deactivate())
	require.NoError(t, p.Uninstall())
	require.NoError(t, p.Dispose())
}

func TestPluginLifecycle_DisposeTwiceFails(t *testing.T) {
	env := newTestEnv()
	ref := env.addPlugin(t, "p", NewManifestBuilder("p"))
	p := env.newLifecycle(t, ref)
	require.NoError(t, p.Load())
	require.NoError(t, p.Dispose())

	err := p.Dispose()
	require.Error(t, err)
	assert.True(t, IsPluginLifecycleError(err))
	assert.Contains(t, err.Error(), "disposed")

	assert.True(t, IsPluginLifecycleError(p.Load()))
	assert.Equal(t, StateDisposed, p.State())
}

func TestPluginLifecycle_LoadErrors(t *testing.T) {
	env := newTestEnv()

	missing := env.newLifecycle(t, "mem:nowhere")
	assert.True(t, HasErrorCode(missing.Load(), ErrCodeResourceNotFound))
	assert.Equal(t, StateUninstalled, missing.State())

	unknown := env.newLifecycle(t, "ftp:somewhere")
	assert.True(t, HasErrorCode(unknown.Load(), ErrCodeUnknownScheme))

	env.addHook("h")
	notPlugin := env.newLifecycle(t, "hook:h")
	assert.True(t, HasErrorCode(notPlugin.Load(), ErrCodeResourceType))
}

func TestPluginLifecycle_InstallFailureDisposes(t *testing.T) {
	env := newTestEnv()
	env.addHook("good")
	ref := env.addPlugin(t, "p", NewManifestBuilder("p").HookUnits("good", "missing"))

	var events []LifecycleEvent
	p := env.newLifecycle(t, ref, WithLifecycleEventHandler(func(e LifecycleEvent) {
		events = append(events, e)
	}))
	require.NoError(t, p.Load())

	err := p.Install()
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeHookResolution))
	assert.True(t, HasErrorCode(err, ErrCodeResourceNotFound))
	assert.Equal(t, StateDisposed, p.State())
	assert.Empty(t, p.Hooks())
	assert.Empty(t, env.log.calls, "no hook may be notified after a failed install")

	require.Len(t, events, 1)
	assert.Equal(t, StateDisposed, events[0].To)
	assert.Error(t, events[0].Err)
}

func TestPluginLifecycle_InstallFactoryErrors(t *testing.T) {
	env := newTestEnv()
	env.hooks.Register("nil", func() (any, error) { return nil, nil })
	env.hooks.Register("panics", func() (any, error) { panic("constructor exploded") })

	for _, unit := range []string{"nil", "panics"} {
		t.Run(unit, func(t *testing.T) {
			ref := env.addPlugin(t, unit, NewManifestBuilder("p-"+unit).HookUnits(unit))
			p := env.newLifecycle(t, ref)
			require.NoError(t, p.Load())
			assert.Error(t, p.Install())
			assert.Equal(t, StateDisposed, p.State())
		})
	}
}

func TestPluginLifecycle_AdaptsPartialHooks(t *testing.T) {
	env := newTestEnv()
	partial := &activateOnly{}
	env.hooks.Register("partial", func() (any, error) { return partial, nil })
	env.hooks.Register("plain", func() (any, error) { return struct{}{}, nil })
	ref := env.addPlugin(t, "p", NewManifestBuilder("p").HookUnits("partial", "plain"))

	p := env.newLifecycle(t, ref)
	require.NoError(t, p.Load())
	require.NoError(t, p.Install())
	require.NoError(t, p.Activate())
	require.NoError(t, p.Deactivate())

	assert.True(t, partial.activated)
	assert.Equal(t, StateDeactivated, p.State())
}

func TestPluginLifecycle_ActivationFailureRollsBack(t *testing.T) {
	env := newTestEnv()
	env.addHook("first")
	second := env.addHook("second")
	second.failActivate = true
	env.addHook("third")
	ref := env.addPlugin(t, "p", NewManifestBuilder("p").HookUnits("first", "second", "third"))

	p := env.newLifecycle(t, ref)
	require.NoError(t, p.Load())
	require.NoError(t, p.Install())
	env.log.calls = nil

	require.NoError(t, p.Activate(), "hook failures are reported through state")
	assert.Equal(t, StateDeactivated, p.State())
	assert.True(t, HasErrorCode(p.Err(), ErrCodeHookFailure))

	assert.Equal(t, []string{
		"first.activate",
		"second.activate",
		"first.deactivate",
		"first.state:deactivated",
		"second.state:deactivated",
		"third.state:deactivated",
	}, env.log.calls)
	assert.True(t, env.logger.HasMessage("ERROR", "Plugin activation failed"))

	// A deactivated plugin may try again.
	second.failActivate = false
	require.NoError(t, p.Activate())
	assert.Equal(t, StateActive, p.State())
	assert.NoError(t, p.Err())
}

func TestPluginLifecycle_ActivationPanicIsContained(t *testing.T) {
	env := newTestEnv()
	hook := env.addHook("boom")
	hook.panicActivate = true
	ref := env.addPlugin(t, "p", NewManifestBuilder("p").HookUnits("boom"))

	p := env.newLifecycle(t, ref)
	require.NoError(t, p.Load())
	require.NoError(t, p.Install())

	require.NotPanics(t, func() { _ = p.Activate() })
	assert.Equal(t, StateDeactivated, p.State())
	assert.True(t, HasErrorCode(p.Err(), ErrCodeHookPanic))
}

func TestPluginLifecycle_DeactivationContinuesPastErrors(t *testing.T) {
	env := newTestEnv()
	first := env.addHook("first")
	first.failDeactive = true
	env.addHook("second")
	ref := env.addPlugin(t, "p", NewManifestBuilder("p").HookUnits("first", "second"))

	p := env.newLifecycle(t, ref)
	require.NoError(t, p.Load())
	require.NoError(t, p.Install())
	require.NoError(t, p.Activate())
	env.log.calls = nil

	require.NoError(t, p.Deactivate())
	assert.Equal(t, StateDeactivated, p.State())
	assert.Contains(t, env.log.calls, "second.deactivate")
	assert.True(t, HasErrorCode(p.Err(), ErrCodeHookFailure))
	assert.True(t, env.logger.HasMessage("WARN", "Hook deactivation failed"))
}

func TestPluginLifecycle_NotificationErrorsAreSkipped(t *testing.T) {
	env := newTestEnv()
	first := env.addHook("first")
	first.failNotify = true
	second := env.addHook("second")
	ref := env.addPlugin(t, "p", NewManifestBuilder("p").HookUnits("first", "second"))

	p := env.newLifecycle(t, ref)
	require.NoError(t, p.Load())
	require.NoError(t, p.Install())

	assert.Equal(t, []LifecycleState{StateInstalled}, second.states)
	assert.True(t, env.logger.HasMessage("WARN", "Hook state notification failed"))

	p.NotifyStateChange(StateActive)
	assert.Equal(t, []LifecycleState{StateInstalled, StateActive}, second.states)
}

func TestPluginLifecycle_ReinstallAfterUninstall(t *testing.T) {
	env := newTestEnv()
	created := 0
	env.hooks.Register("counted", func() (any, error) {
		created++
		return &BaseHook{}, nil
	})
	ref := env.addPlugin(t, "p", NewManifestBuilder("p").HookUnits("counted"))

	p := env.newLifecycle(t, ref)
	require.NoError(t, p.Load())
	require.NoError(t, p.Install())
	require.NoError(t, p.Uninstall())
	require.NoError(t, p.Install())

	assert.Equal(t, 2, created)
	assert.Equal(t, StateInstalled, p.State())
}

func TestLifecycleState_String(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "unknown", LifecycleState("").String())
}
