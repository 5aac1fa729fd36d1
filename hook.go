// hook.go: plugin hook contract and adapters
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"io"

	"github.com/agilira/go-errors"
)

// Hook receives the lifecycle notifications of the plugin that declared it.
// A plugin may declare several hook units; each becomes one Hook.
type Hook interface {
	// Activate is called when the plugin is activated.
	Activate() error

	// Deactivate is called when the plugin is deactivated.
	Deactivate() error

	// OnStateChange is called after every lifecycle transition.
	OnStateChange(state LifecycleState) error
}

// Activator is implemented by hook values that react to activation.
type Activator interface {
	Activate() error
}

// Deactivator is implemented by hook values that react to deactivation.
type Deactivator interface {
	Deactivate() error
}

// StateChangeListener is implemented by hook values that observe state
// changes.
type StateChangeListener interface {
	OnStateChange(state LifecycleState) error
}

// BaseHook implements Hook with no-op methods. Embed it to implement only
// the methods a hook cares about.
type BaseHook struct{}

func (BaseHook) Activate() error                    { return nil }
func (BaseHook) Deactivate() error                  { return nil }
func (BaseHook) OnStateChange(LifecycleState) error { return nil }

// adaptedHook forwards to whichever partial interfaces the wrapped value
// implements and no-ops the rest.
type adaptedHook struct {
	target any
}

func (h *adaptedHook) Activate() error {
	if a, ok := h.target.(Activator); ok {
		return a.Activate()
	}
	return nil
}

func (h *adaptedHook) Deactivate() error {
	if d, ok := h.target.(Deactivator); ok {
		return d.Deactivate()
	}
	return nil
}

func (h *adaptedHook) OnStateChange(state LifecycleState) error {
	if l, ok := h.target.(StateChangeListener); ok {
		return l.OnStateChange(state)
	}
	return nil
}

// Close closes the wrapped value when it is an io.Closer.
func (h *adaptedHook) Close() error {
	if c, ok := h.target.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Unwrap returns the adapted value.
func (h *adaptedHook) Unwrap() any {
	return h.target
}

// AdaptHook turns any value produced by a hook factory into a Hook. Values
// already implementing Hook are returned as is; anything else is wrapped so
// missing methods become no-ops. Only nil is rejected.
func AdaptHook(value any) (Hook, error) {
	switch v := value.(type) {
	case nil:
		return nil, errors.New(ErrCodeHookResolution, "Hook factory returned nil").
			WithUserMessage("A hook unit produced no hook instance").
			WithSeverity("error")
	case Hook:
		return v, nil
	default:
		return &adaptedHook{target: v}, nil
	}
}

// HookFuncs builds a Hook from optional functions, for hooks registered
// inline.
type HookFuncs struct {
	OnActivate   func() error
	OnDeactivate func() error
	OnState      func(LifecycleState) error
}

func (f HookFuncs) Activate() error {
	if f.OnActivate == nil {
		return nil
	}
	return f.OnActivate()
}

func (f HookFuncs) Deactivate() error {
	if f.OnDeactivate == nil {
		return nil
	}
	return f.OnDeactivate()
}

func (f HookFuncs) OnStateChange(state LifecycleState) error {
	if f.OnState == nil {
		return nil
	}
	return f.OnState(state)
}
