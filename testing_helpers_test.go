// testing_helpers_test.go: shared fixtures for lifecycle, registry and platform tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// callLog records hook calls across hooks, in order.
type callLog struct {
	calls []string
}

func (l *callLog) add(call string) {
	l.calls = append(l.calls, call)
}

// recordingHook implements Hook and records every call.
type recordingHook struct {
	name          string
	log           *callLog
	failActivate  bool
	failDeactive  bool
	failNotify    bool
	panicActivate bool
	states        []LifecycleState
}

func (h *recordingHook) Activate() error {
	h.log.add(h.name + ".activate")
	if h.panicActivate {
		panic("activate panic in " + h.name)
	}
	if h.failActivate {
		return stderrors.New("activate failed in " + h.name)
	}
	return nil
}

func (h *recordingHook) Deactivate() error {
	h.log.add(h.name + ".deactivate")
	if h.failDeactive {
		return stderrors.New("deactivate failed in " + h.name)
	}
	return nil
}

func (h *recordingHook) OnStateChange(state LifecycleState) error {
	h.states = append(h.states, state)
	h.log.add(h.name + ".state:" + state.String())
	if h.failNotify {
		return stderrors.New("notify failed in " + h.name)
	}
	return nil
}

// activateOnly implements only Activator.
type activateOnly struct {
	activated bool
}

func (a *activateOnly) Activate() error {
	a.activated = true
	return nil
}

// testEnv bundles a loader with a static plugin handler and a hook registry.
type testEnv struct {
	loader  *ResourceLoader
	plugins *StaticPluginHandler
	hooks   *HookRegistry
	logger  *TestLogger
	log     *callLog
}

func newTestEnv() *testEnv {
	logger := NewTestLogger()
	env := &testEnv{
		loader:  NewResourceLoader(logger),
		plugins: NewStaticPluginHandler(),
		hooks:   NewHookRegistry(),
		logger:  logger,
		log:     &callLog{},
	}
	env.loader.Register("mem", env.plugins)
	env.loader.Register(DefaultHookScheme, env.hooks)
	return env
}

// addHook registers a recording hook under name and returns it.
func (e *testEnv) addHook(name string) *recordingHook {
	hook := &recordingHook{name: name, log: e.log}
	e.hooks.RegisterHook(name, func() Hook { return hook })
	return hook
}

// addPlugin registers manifest under "mem:<path>" and returns the reference.
func (e *testEnv) addPlugin(t *testing.T, path string, b *ManifestBuilder) string {
	t.Helper()
	manifest, err := b.Build()
	require.NoError(t, err)
	e.plugins.Add(path, manifest)
	return "mem:" + path
}

func (e *testEnv) newLifecycle(t *testing.T, reference string, opts ...LifecycleOption) *PluginLifecycle {
	t.Helper()
	opts = append([]LifecycleOption{WithLifecycleLogger(e.logger)}, opts...)
	p, err := NewPluginLifecycle(reference, e.loader, opts...)
	require.NoError(t, err)
	return p
}

// writeBundle creates dir/name containing a manifest file with content.
func writeBundle(t *testing.T, dir, name, manifestFile, content string) string {
	t.Helper()
	bundle := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(bundle, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundle, manifestFile), []byte(content), 0o644))
	return bundle
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
