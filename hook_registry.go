// hook_registry.go: statically registered hook constructors
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"sort"
	"sync"
)

// HookConstructor creates a hook value. The value need not implement every
// Hook method.
type HookConstructor func() (any, error)

// HookRegistry maps hook unit ids to constructors registered at build time.
// It serves the "hook" scheme: the manifest entry "greeter.Hook" (or
// "hook:greeter.Hook") resolves to the constructor registered as
// "greeter.Hook".
//
// Registration is safe for concurrent use, so constructors can be added
// from package init functions.
type HookRegistry struct {
	mu           sync.RWMutex
	constructors map[string]HookConstructor
}

// NewHookRegistry creates an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{constructors: make(map[string]HookConstructor)}
}

// Register adds or replaces the constructor for id.
func (r *HookRegistry) Register(id string, constructor HookConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[id] = constructor
}

// RegisterHook registers a constructor returning a Hook.
func (r *HookRegistry) RegisterHook(id string, constructor func() Hook) {
	r.Register(id, func() (any, error) { return constructor(), nil })
}

// Unregister removes the constructor for id.
func (r *HookRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.constructors, id)
}

// IDs returns the registered ids, sorted.
func (r *HookRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.constructors))
	for id := range r.constructors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve implements SchemeHandler.
func (r *HookRegistry) Resolve(reference, path string) (Resource, error) {
	r.mu.RLock()
	constructor, ok := r.constructors[path]
	r.mu.RUnlock()
	if !ok {
		return nil, NewResourceNotFoundError(reference, nil)
	}
	return &hookFactory{reference: reference, constructor: constructor}, nil
}

type hookFactory struct {
	reference   string
	constructor HookConstructor
}

func (f *hookFactory) Reference() string      { return f.reference }
func (f *hookFactory) NewHook() (any, error) { return f.constructor() }
