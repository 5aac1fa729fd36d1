// lifecycle.go: per-plugin lifecycle state machine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"io"

	"github.com/felixgeelhaar/statekit"
)

// LifecycleState is the state of a plugin inside the registry.
type LifecycleState string

// State ids of the lifecycle machine.
const (
	stateUninstalled = "uninstalled"
	stateInstalled   = "installed"
	stateActive      = "active"
	stateDeactivated = "deactivated"
	stateDisposed    = "disposed"
)

// Lifecycle states. A plugin starts uninstalled and ends disposed:
//
//	uninstalled -> installed -> active <-> deactivated -> uninstalled -> disposed
const (
	StateUninstalled LifecycleState = stateUninstalled
	StateInstalled   LifecycleState = stateInstalled
	StateActive      LifecycleState = stateActive
	StateDeactivated LifecycleState = stateDeactivated
	StateDisposed    LifecycleState = stateDisposed
)

// String returns the state name.
func (s LifecycleState) String() string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}

// Events of the lifecycle machine.
const (
	eventInstall          = "INSTALL"
	eventInstallFailed    = "INSTALL_FAILED"
	eventActivate         = "ACTIVATE"
	eventActivationFailed = "ACTIVATION_FAILED"
	eventDeactivate       = "DEACTIVATE"
	eventUninstall        = "UNINSTALL"
	eventDispose          = "DISPOSE"
)

// DefaultHookScheme is prefixed to hook unit ids that carry no scheme.
const DefaultHookScheme = "hook"

type lifecycleContext struct {
	Reference string
}

func buildLifecycleMachine(reference string) (*statekit.Interpreter[lifecycleContext], error) {
	machine, err := statekit.NewMachine[lifecycleContext]("plugin-lifecycle").
		WithInitial(stateUninstalled).
		WithContext(lifecycleContext{Reference: reference}).
		State(stateUninstalled).
		On(eventInstall).Target(stateInstalled).
		On(eventInstallFailed).Target(stateDisposed).
		On(eventDispose).Target(stateDisposed).Done().
		State(stateInstalled).
		On(eventActivate).Target(stateActive).
		On(eventActivationFailed).Target(stateDeactivated).
		On(eventUninstall).Target(stateUninstalled).Done().
		State(stateActive).
		On(eventDeactivate).Target(stateDeactivated).Done().
		State(stateDeactivated).
		On(eventActivate).Target(stateActive).
		On(eventUninstall).Target(stateUninstalled).Done().
		State(stateDisposed).Done().
		Build()
	if err != nil {
		return nil, err
	}
	return statekit.NewInterpreter(machine), nil
}

// PluginLifecycle drives one plugin through its states and fans every
// transition out to the plugin's hooks.
//
// Hook failures never escape a lifecycle operation: a hook that fails to
// activate leaves the plugin deactivated, and Err reports why. Operations
// return an error only when they are invoked from a state that does not
// allow them, or when the plugin or its hooks cannot be resolved.
//
// A PluginLifecycle is owned by one PluginRegistry and is not safe for
// concurrent use.
type PluginLifecycle struct {
	reference    string
	loader       Loader
	logger       Logger
	onEvent      LifecycleEventHandler
	interp       *statekit.Interpreter[lifecycleContext]
	resource     PluginResource
	manifest     *PluginManifest
	hooks        []Hook
	dependencies []string
	lastErr      error
}

// LifecycleOption configures a PluginLifecycle.
type LifecycleOption func(*PluginLifecycle)

// WithLifecycleLogger sets the logger; the plugin reference is attached to
// every message.
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(p *PluginLifecycle) {
		p.logger = NewLogger(logger)
	}
}

// WithLifecycleEventHandler registers a handler for transition events.
func WithLifecycleEventHandler(handler LifecycleEventHandler) LifecycleOption {
	return func(p *PluginLifecycle) {
		p.onEvent = handler
	}
}

// NewPluginLifecycle creates a lifecycle in the uninstalled state for the
// given plugin reference. Call Load before Install.
func NewPluginLifecycle(reference string, loader Loader, opts ...LifecycleOption) (*PluginLifecycle, error) {
	interp, err := buildLifecycleMachine(reference)
	if err != nil {
		return nil, err
	}

	p := &PluginLifecycle{
		reference: reference,
		loader:    loader,
		logger:    DefaultLogger(),
		interp:    interp,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("reference", reference)
	p.interp.Start()
	return p, nil
}

// Reference returns the discovery handle the plugin was created from.
func (p *PluginLifecycle) Reference() string { return p.reference }

// Manifest returns the loaded manifest, or nil before Load.
func (p *PluginLifecycle) Manifest() *PluginManifest { return p.manifest }

// ID returns the manifest id, or "" before Load.
func (p *PluginLifecycle) ID() string {
	if p.manifest == nil {
		return ""
	}
	return p.manifest.ID()
}

// State returns the current lifecycle state.
func (p *PluginLifecycle) State() LifecycleState {
	return LifecycleState(p.interp.State().Value)
}

// Hooks returns the installed hooks in declaration order.
func (p *PluginLifecycle) Hooks() []Hook {
	return append([]Hook(nil), p.hooks...)
}

// Dependencies returns the ids of the plugins this one depends on.
func (p *PluginLifecycle) Dependencies() []string {
	return append([]string(nil), p.dependencies...)
}

func (p *PluginLifecycle) setDependencies(ids []string) {
	p.dependencies = append([]string(nil), ids...)
}

// Err returns the failure recorded by the last install, activate or
// deactivate attempt, or nil.
func (p *PluginLifecycle) Err() error { return p.lastErr }

// Load resolves the plugin reference and reads its manifest. Loading is
// only possible in the uninstalled state; a disposed plugin can never be
// loaded again.
func (p *PluginLifecycle) Load() error {
	if state := p.State(); state != StateUninstalled {
		return NewPluginLifecycleError(p.ID(), "load", state)
	}

	resource, err := p.loader.Resolve(p.reference)
	if err != nil {
		return err
	}
	pluginResource, ok := resource.(PluginResource)
	if !ok {
		return NewResourceTypeError(p.reference, "plugin")
	}
	manifest, err := pluginResource.Manifest()
	if err != nil {
		return err
	}

	p.resource = pluginResource
	p.manifest = manifest
	p.logger = p.logger.With("plugin_id", manifest.ID())
	p.logger.Debug("Plugin loaded", "version", manifest.Version())
	return nil
}

// Install resolves every hook unit of the manifest into a Hook. If any unit
// cannot be resolved, no hook is kept, the plugin is disposed and the error
// is returned.
func (p *PluginLifecycle) Install() error {
	state := p.State()
	if state != StateUninstalled || p.manifest == nil {
		return NewPluginLifecycleError(p.ID(), "install", state)
	}

	// Hooks survive Uninstall; a reinstall starts from fresh instances.
	p.closeHooks(p.hooks)
	p.hooks = nil

	hooks := make([]Hook, 0, len(p.manifest.hookUnits))
	for _, unit := range p.manifest.hookUnits {
		hook, err := p.resolveHook(unit)
		if err != nil {
			p.lastErr = NewHookResolutionError(p.ID(), unit, err)
			p.logger.Error("Plugin installation failed", "hook_unit", unit, "error", err)
			p.closeHooks(hooks)
			p.hooks = nil
			p.dependencies = nil
			p.transition(eventInstallFailed, p.lastErr)
			return p.lastErr
		}
		hooks = append(hooks, hook)
	}

	p.hooks = hooks
	p.lastErr = nil
	p.transition(eventInstall, nil)
	p.logger.Info("Plugin installed", "hooks", len(hooks))
	p.NotifyStateChange(StateInstalled)
	return nil
}

func (p *PluginLifecycle) resolveHook(unit string) (Hook, error) {
	reference := unit
	if _, _, err := SplitReference(unit); err != nil {
		reference = DefaultHookScheme + ":" + unit
	}
	if q, ok := p.resource.(HookUnitQualifier); ok {
		reference = q.QualifyHookUnit(reference)
	}

	resource, err := p.loader.Resolve(reference)
	if err != nil {
		return nil, err
	}
	factory, ok := resource.(HookFactory)
	if !ok {
		return nil, NewResourceTypeError(reference, "hook factory")
	}

	var value any
	err = callSafely("create", func() error {
		var createErr error
		value, createErr = factory.NewHook()
		return createErr
	})
	if err != nil {
		return nil, err
	}
	return AdaptHook(value)
}

// Activate calls Activate on every hook in declaration order.
//
// If a hook fails, the hooks activated before it are deactivated again in
// reverse order, the plugin ends up deactivated and the failure is recorded
// in Err. The failure is not returned: Activate only errors when called from
// a state other than installed or deactivated.
func (p *PluginLifecycle) Activate() error {
	state := p.State()
	if state != StateInstalled && state != StateDeactivated {
		return NewPluginLifecycleError(p.ID(), "activate", state)
	}

	for i, hook := range p.hooks {
		if err := callSafely("activate", hook.Activate); err != nil {
			p.lastErr = NewHookFailureError(p.ID(), "activate", err)
			p.logger.Error("Plugin activation failed", "hook", i, "error", err)
			p.rollbackActivation(i)

			if state == StateInstalled {
				p.transition(eventActivationFailed, p.lastErr)
			}
			p.NotifyStateChange(StateDeactivated)
			return nil
		}
	}

	p.lastErr = nil
	p.transition(eventActivate, nil)
	p.logger.Info("Plugin activated")
	p.NotifyStateChange(StateActive)
	return nil
}

func (p *PluginLifecycle) rollbackActivation(failed int) {
	for j := failed - 1; j >= 0; j-- {
		if err := callSafely("deactivate", p.hooks[j].Deactivate); err != nil {
			p.logger.Warn("Hook rollback failed", "hook", j, "error", err)
		}
	}
}

// Deactivate calls Deactivate on every hook. A failing hook is logged and
// the remaining hooks are still deactivated; the plugin always ends up
// deactivated.
func (p *PluginLifecycle) Deactivate() error {
	state := p.State()
	if state != StateActive {
		return NewPluginLifecycleError(p.ID(), "deactivate", state)
	}

	p.lastErr = nil
	for i, hook := range p.hooks {
		if err := callSafely("deactivate", hook.Deactivate); err != nil {
			p.logger.Warn("Hook deactivation failed", "hook", i, "error", err)
			if p.lastErr == nil {
				p.lastErr = NewHookFailureError(p.ID(), "deactivate", err)
			}
		}
	}

	p.transition(eventDeactivate, p.lastErr)
	p.logger.Info("Plugin deactivated")
	p.NotifyStateChange(StateDeactivated)
	return nil
}

// Uninstall moves an installed or deactivated plugin back to uninstalled.
func (p *PluginLifecycle) Uninstall() error {
	state := p.State()
	if state != StateInstalled && state != StateDeactivated {
		return NewPluginLifecycleError(p.ID(), "uninstall", state)
	}

	p.transition(eventUninstall, nil)
	p.logger.Info("Plugin uninstalled")
	p.NotifyStateChange(StateUninstalled)
	return nil
}

// Dispose releases the hooks and dependency bookkeeping. Hooks implementing
// io.Closer are closed. Disposed is terminal; disposing twice is an error.
func (p *PluginLifecycle) Dispose() error {
	state := p.State()
	if state != StateUninstalled {
		return NewPluginLifecycleError(p.ID(), "dispose", state)
	}

	p.closeHooks(p.hooks)
	p.hooks = nil
	p.dependencies = nil
	p.transition(eventDispose, nil)
	p.logger.Debug("Plugin disposed")
	return nil
}

// NotifyStateChange calls OnStateChange on every hook. Hook errors are
// logged and never stop the remaining hooks from being notified.
func (p *PluginLifecycle) NotifyStateChange(state LifecycleState) {
	for i, hook := range p.hooks {
		err := callSafely("state change", func() error {
			return hook.OnStateChange(state)
		})
		if err != nil {
			p.logger.Warn("Hook state notification failed", "hook", i, "state", state.String(), "error", err)
		}
	}
}

// closeHooks releases hooks holding resources, such as Lua interpreters.
func (p *PluginLifecycle) closeHooks(hooks []Hook) {
	for i, hook := range hooks {
		closer, ok := hook.(io.Closer)
		if !ok {
			continue
		}
		if err := callSafely("close", closer.Close); err != nil {
			p.logger.Warn("Hook close failed", "hook", i, "error", err)
		}
	}
}

func (p *PluginLifecycle) transition(event string, cause error) {
	from := p.State()
	p.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	to := p.State()

	if p.onEvent != nil && from != to {
		p.onEvent(newLifecycleEvent(p.ID(), p.reference, from, to, cause))
	}
}
