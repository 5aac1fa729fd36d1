// plugin_registry.go: plugin registry, capability index and bulk orchestration
//
// This file implements the registry that owns every plugin lifecycle of a
// platform. It indexes exported capabilities, turns manifest requirements
// into dependency edges and drives install, activation and shutdown passes
// in dependency order.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

// PluginRegistry owns all plugin lifecycles of one platform, keyed by id and
// by reference.
//
// Key responsibilities:
//   - Loading plugin references and replacing plugins re-registered under an
//     existing id
//   - Indexing exported capabilities in registration order
//   - Resolving required capabilities and plugins into dependency edges
//   - Installing in dependency order and walking activation and shutdown
//     passes without aborting on a single plugin's failure
//
// The registry holds no package-level state, so several registries can live
// in one process. It is not safe for concurrent use: callers serialize its
// operations (Platform does so with a mutex).
type PluginRegistry struct {
	loader   Loader
	logger   Logger
	handlers []LifecycleEventHandler

	graph       *DependencyGraph
	byID        map[string]*PluginLifecycle
	byReference map[string]*PluginLifecycle
	exports     []exportEntry
}

// exportEntry is one capability in the export index.
type exportEntry struct {
	pluginID   string
	capability ExportedCapability
}

// BulkResult reports the outcome of a pass over several plugins. Plugins
// skipped because they were not in a suitable state appear in neither list.
type BulkResult struct {
	Succeeded []string
	Failed    map[string]error
}

func newBulkResult() BulkResult {
	return BulkResult{Failed: make(map[string]error)}
}

// HasFailures reports whether any plugin failed during the pass.
func (b BulkResult) HasFailures() bool {
	return len(b.Failed) > 0
}

// RegistryOption configures a PluginRegistry.
type RegistryOption func(*PluginRegistry)

// WithRegistryLogger sets the logger used by the registry and every
// lifecycle it creates.
func WithRegistryLogger(logger Logger) RegistryOption {
	return func(r *PluginRegistry) {
		r.logger = NewLogger(logger)
	}
}

// WithRegistryEventHandler registers a lifecycle event handler.
func WithRegistryEventHandler(handler LifecycleEventHandler) RegistryOption {
	return func(r *PluginRegistry) {
		r.OnLifecycleEvent(handler)
	}
}

// NewPluginRegistry creates an empty registry resolving references through
// loader.
func NewPluginRegistry(loader Loader, opts ...RegistryOption) *PluginRegistry {
	r := &PluginRegistry{
		loader:      loader,
		logger:      DefaultLogger(),
		graph:       NewDependencyGraph(),
		byID:        make(map[string]*PluginLifecycle),
		byReference: make(map[string]*PluginLifecycle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnLifecycleEvent adds a handler called for every state transition of
// every plugin in the registry. A nil handler is ignored.
func (r *PluginRegistry) OnLifecycleEvent(handler LifecycleEventHandler) {
	if handler != nil {
		r.handlers = append(r.handlers, handler)
	}
}

func (r *PluginRegistry) emit(event LifecycleEvent) {
	for _, handler := range r.handlers {
		handler(event)
	}
}

// AddPlugin loads reference and registers the plugin. A plugin already
// registered under the same id is retired first. If a requirement of the
// new plugin cannot be met, it is disposed and an UnsatisfiedDependencyError
// is returned.
func (r *PluginRegistry) AddPlugin(reference string) error {
	return r.AddPlugins([]string{reference})[reference]
}

// AddPlugins registers several references as one batch and returns the
// failure of each reference that could not be registered.
//
// Every candidate is loaded and its exports indexed before any requirement
// is evaluated, so plugins of the same batch may depend on each other in any
// order. Requirements are then re-evaluated until no further candidate
// fails: removing a failed plugin's exports may break its dependents, which
// fail in turn.
func (r *PluginRegistry) AddPlugins(references []string) map[string]error {
	failures := make(map[string]error)
	candidates := make([]*PluginLifecycle, 0, len(references))
	seen := make(map[string]bool, len(references))

	for _, reference := range references {
		if seen[reference] {
			failures[reference] = NewDuplicateReferenceError(reference)
			continue
		}
		seen[reference] = true

		p, err := r.loadCandidate(reference)
		if err != nil {
			failures[reference] = err
			continue
		}
		candidates = append(candidates, p)
	}

	resolved := r.resolveCandidates(candidates, failures)

	for _, p := range candidates {
		deps, ok := resolved[p]
		if !ok {
			continue
		}
		p.setDependencies(deps)
		r.graph.AddDependency(p.ID(), deps, p)
		r.logger.Info("Plugin registered",
			"plugin_id", p.ID(),
			"version", p.Manifest().Version(),
			"reference", p.Reference(),
			"dependencies", len(deps))
	}
	return failures
}

// loadCandidate creates and loads a lifecycle, retires any plugin holding
// the same id and indexes the candidate's exports.
func (r *PluginRegistry) loadCandidate(reference string) (*PluginLifecycle, error) {
	p, err := NewPluginLifecycle(reference, r.loader,
		WithLifecycleLogger(r.logger),
		WithLifecycleEventHandler(r.emit))
	if err != nil {
		return nil, err
	}

	if err := p.Load(); err != nil {
		r.logger.Error("Plugin load failed", "reference", reference, "error", err)
		r.disposeQuietly(p)
		return nil, err
	}

	if old, exists := r.byID[p.ID()]; exists {
		r.retire(old)
	}
	if old, exists := r.byReference[reference]; exists {
		r.retire(old)
	}

	r.byID[p.ID()] = p
	r.byReference[reference] = p
	for _, capability := range p.Manifest().Exports() {
		r.exports = append(r.exports, exportEntry{pluginID: p.ID(), capability: capability})
	}
	return p, nil
}

// resolveCandidates evaluates requirements to a fixpoint. Failed candidates
// are unregistered, disposed and recorded in failures.
func (r *PluginRegistry) resolveCandidates(candidates []*PluginLifecycle, failures map[string]error) map[*PluginLifecycle][]string {
	pending := make(map[*PluginLifecycle]bool, len(candidates))
	for _, p := range candidates {
		// Candidates replaced by a later one in the same batch are already disposed.
		if p.State() != StateDisposed {
			pending[p] = true
		}
	}

	for {
		failed := false
		for _, p := range candidates {
			if !pending[p] {
				continue
			}
			if _, err := r.resolveDependencies(p.Manifest()); err != nil {
				r.logger.Error("Plugin registration failed", "plugin_id", p.ID(), "error", err)
				delete(pending, p)
				r.unregister(p)
				r.disposeQuietly(p)
				failures[p.Reference()] = err
				failed = true
			}
		}
		if !failed {
			break
		}
	}

	resolved := make(map[*PluginLifecycle][]string, len(pending))
	for _, p := range candidates {
		if pending[p] {
			deps, _ := r.resolveDependencies(p.Manifest())
			resolved[p] = deps
		}
	}
	return resolved
}

// resolveDependencies maps every requirement of manifest to the id of the
// plugin providing it. Capabilities exported by the plugin itself need no
// edge.
func (r *PluginRegistry) resolveDependencies(manifest *PluginManifest) ([]string, error) {
	var deps []string

	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			deps = append(deps, id)
		}
	}

	for _, ref := range manifest.Requires() {
		provider, ok := r.findExporter(ref)
		if !ok {
			return nil, NewUnsatisfiedDependencyError(manifest.ID(), ref.String(), "capability")
		}
		if provider != manifest.ID() {
			add(provider)
		}
	}

	for _, ref := range manifest.RequiredPlugins() {
		if ref.Name == manifest.ID() {
			continue
		}
		sibling, ok := r.byID[ref.Name]
		if !ok || sibling.State() == StateDisposed || !ref.Range.Contains(sibling.Manifest().Version()) {
			return nil, NewUnsatisfiedDependencyError(manifest.ID(), ref.String(), "plugin")
		}
		add(ref.Name)
	}
	return deps, nil
}

// findExporter returns the id of the first live plugin in the export index
// whose export satisfies ref.
func (r *PluginRegistry) findExporter(ref CapabilityRef) (string, bool) {
	for _, entry := range r.exports {
		if !entry.capability.Satisfies(ref) {
			continue
		}
		if owner, ok := r.byID[entry.pluginID]; ok && owner.State() != StateDisposed {
			return entry.pluginID, true
		}
	}
	return "", false
}

// retire walks a plugin down to disposed and drops every trace of it.
func (r *PluginRegistry) retire(p *PluginLifecycle) {
	r.logger.Info("Retiring plugin", "plugin_id", p.ID(), "reference", p.Reference())

	if p.State() == StateActive {
		_ = p.Deactivate()
	}
	if state := p.State(); state == StateInstalled || state == StateDeactivated {
		if err := p.Uninstall(); err != nil {
			r.logger.Warn("Plugin uninstall failed during retirement", "plugin_id", p.ID(), "error", err)
		}
	}
	r.disposeQuietly(p)
	r.unregister(p)
}

// unregister removes p from the id and reference maps, the graph and the
// export index. Entries that already belong to a newer plugin are kept.
func (r *PluginRegistry) unregister(p *PluginLifecycle) {
	id := p.ID()
	if r.byID[id] == p {
		delete(r.byID, id)
		if r.graph.Owner(id) == p {
			r.graph.DeleteDependency(id)
		}
		r.removeExports(id)
	}
	if r.byReference[p.Reference()] == p {
		delete(r.byReference, p.Reference())
	}
}

func (r *PluginRegistry) removeExports(pluginID string) {
	kept := r.exports[:0]
	for _, entry := range r.exports {
		if entry.pluginID != pluginID {
			kept = append(kept, entry)
		}
	}
	r.exports = kept
}

func (r *PluginRegistry) disposeQuietly(p *PluginLifecycle) {
	if p.State() != StateUninstalled {
		return
	}
	if err := p.Dispose(); err != nil {
		r.logger.Warn("Plugin dispose failed", "reference", p.Reference(), "error", err)
	}
}

// GetPlugin returns the plugin registered under id.
func (r *PluginRegistry) GetPlugin(id string) (*PluginLifecycle, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, NewPluginNotFoundError(id)
	}
	return p, nil
}

// GetPluginByReference returns the plugin registered from reference.
func (r *PluginRegistry) GetPluginByReference(reference string) (*PluginLifecycle, bool) {
	p, ok := r.byReference[reference]
	return p, ok
}

// Len returns the number of registered plugins, disposed ones included
// until Collect runs.
func (r *PluginRegistry) Len() int {
	return len(r.byID)
}

// Plugins returns the plugins that are not disposed, dependencies first.
// When no order can be computed (a cycle or an unresolved edge), plugins
// are returned in registration order.
func (r *PluginRegistry) Plugins() []*PluginLifecycle {
	plugins := make([]*PluginLifecycle, 0, len(r.byID))
	for _, id := range r.order() {
		if p, ok := r.byID[id]; ok && p.State() != StateDisposed {
			plugins = append(plugins, p)
		}
	}
	return plugins
}

func (r *PluginRegistry) order() []string {
	order, err := r.graph.InstallOrder()
	if err != nil {
		return r.graph.IDs()
	}
	return order
}

// InstallPlugin installs one plugin. Its dependencies must already be
// installed.
func (r *PluginRegistry) InstallPlugin(id string) error {
	p, err := r.GetPlugin(id)
	if err != nil {
		return err
	}
	if missing, ok := r.firstUnavailable(id); ok {
		return NewUnsatisfiedDependencyError(id, missing, "plugin")
	}
	if err := p.Install(); err != nil {
		return err
	}
	return r.graph.MarkAvailable(id)
}

func (r *PluginRegistry) firstUnavailable(id string) (string, bool) {
	if r.graph.AllDependenciesSatisfied(id) {
		return "", false
	}
	for _, dep := range r.graph.Dependencies(id) {
		if !r.graph.IsAvailable(dep) {
			return dep, true
		}
	}
	return "", false
}

// InstallAllPlugins installs every uninstalled plugin in dependency order,
// marking each available as soon as it is installed so its dependents can
// follow in the same pass.
//
// A cycle or an edge to an unregistered id aborts the pass before any
// plugin is touched. A plugin whose dependency failed to install is
// disposed and reported in the result.
func (r *PluginRegistry) InstallAllPlugins() (BulkResult, error) {
	result := newBulkResult()

	order, err := r.graph.InstallOrder()
	if err != nil {
		r.logger.Error("Cannot compute install order", "error", err)
		return result, err
	}

	for _, id := range order {
		p := r.graph.Owner(id)
		if p == nil || p.State() != StateUninstalled {
			continue
		}

		if missing, ok := r.firstUnavailable(id); ok {
			err := NewUnsatisfiedDependencyError(id, missing, "plugin")
			r.logger.Error("Plugin installation skipped", "plugin_id", id, "missing", missing)
			r.disposeQuietly(p)
			result.Failed[id] = err
			continue
		}

		if err := p.Install(); err != nil {
			result.Failed[id] = err
			continue
		}
		if err := r.graph.MarkAvailable(id); err != nil {
			result.Failed[id] = err
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	r.logger.Info("Install pass completed", "installed", len(result.Succeeded), "failed", len(result.Failed))
	return result, nil
}

// ActivatePlugin activates one plugin. Hook failures leave the plugin
// deactivated and are reported by its Err method, not returned.
func (r *PluginRegistry) ActivatePlugin(id string) error {
	p, err := r.GetPlugin(id)
	if err != nil {
		return err
	}
	return p.Activate()
}

// ActivateAllPlugins activates every installed or deactivated plugin in
// dependency order. A plugin that fails to activate gets a deactivation
// attempt and the pass moves on.
func (r *PluginRegistry) ActivateAllPlugins() BulkResult {
	result := newBulkResult()

	for _, p := range r.Plugins() {
		state := p.State()
		if state != StateInstalled && state != StateDeactivated {
			continue
		}

		err := p.Activate()
		if err == nil && p.State() != StateActive {
			err = p.Err()
		}
		if err != nil {
			r.logger.Warn("Plugin failed to activate", "plugin_id", p.ID(), "error", err)
			if deactivateErr := r.DeactivatePlugin(p.ID()); deactivateErr != nil {
				r.logger.Warn("Plugin deactivation after failed activation failed", "plugin_id", p.ID(), "error", deactivateErr)
			}
			result.Failed[p.ID()] = err
			continue
		}
		result.Succeeded = append(result.Succeeded, p.ID())
	}

	r.logger.Info("Activation pass completed", "active", len(result.Succeeded), "failed", len(result.Failed))
	return result
}

// DeactivatePlugin deactivates one plugin. It does nothing unless the
// plugin is active.
func (r *PluginRegistry) DeactivatePlugin(id string) error {
	p, err := r.GetPlugin(id)
	if err != nil {
		return err
	}
	if p.State() != StateActive {
		return nil
	}
	return p.Deactivate()
}

// DeactivateAllPlugins deactivates every active plugin, dependents first.
func (r *PluginRegistry) DeactivateAllPlugins() BulkResult {
	return r.reversePass("deactivate", func(p *PluginLifecycle) (bool, error) {
		if p.State() != StateActive {
			return false, nil
		}
		err := p.Deactivate()
		if err == nil {
			err = p.Err()
		}
		return true, err
	})
}

// UninstallPlugin uninstalls one plugin and marks it unavailable to its
// dependents.
func (r *PluginRegistry) UninstallPlugin(id string) error {
	p, err := r.GetPlugin(id)
	if err != nil {
		return err
	}
	if err := p.Uninstall(); err != nil {
		return err
	}
	return r.graph.MarkUnavailable(id)
}

// UninstallAllPlugins uninstalls every installed or deactivated plugin,
// dependents first.
func (r *PluginRegistry) UninstallAllPlugins() BulkResult {
	return r.reversePass("uninstall", func(p *PluginLifecycle) (bool, error) {
		if state := p.State(); state != StateInstalled && state != StateDeactivated {
			return false, nil
		}
		return true, r.UninstallPlugin(p.ID())
	})
}

// DisposePlugin disposes one uninstalled plugin. It stays registered until
// Collect runs.
func (r *PluginRegistry) DisposePlugin(id string) error {
	p, err := r.GetPlugin(id)
	if err != nil {
		return err
	}
	if err := p.Dispose(); err != nil {
		return err
	}
	return r.graph.MarkUnavailable(id)
}

// DisposeAllPlugins disposes every uninstalled plugin, dependents first.
func (r *PluginRegistry) DisposeAllPlugins() BulkResult {
	return r.reversePass("dispose", func(p *PluginLifecycle) (bool, error) {
		if p.State() != StateUninstalled {
			return false, nil
		}
		return true, r.DisposePlugin(p.ID())
	})
}

// Collect drops disposed plugins from the registry and returns how many
// were removed.
func (r *PluginRegistry) Collect() int {
	var disposed []*PluginLifecycle
	for _, id := range r.graph.IDs() {
		if p := r.byID[id]; p != nil && p.State() == StateDisposed {
			disposed = append(disposed, p)
		}
	}

	for _, p := range disposed {
		r.unregister(p)
	}
	if len(disposed) > 0 {
		r.logger.Debug("Disposed plugins collected", "count", len(disposed))
	}
	return len(disposed)
}

// reversePass runs op over the live plugins, dependents before their
// dependencies. op reports whether it applied to the plugin.
func (r *PluginRegistry) reversePass(operation string, op func(*PluginLifecycle) (bool, error)) BulkResult {
	result := newBulkResult()

	plugins := r.Plugins()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		applied, err := op(p)
		if !applied {
			continue
		}
		if err != nil {
			r.logger.Warn("Plugin "+operation+" failed", "plugin_id", p.ID(), "error", err)
			result.Failed[p.ID()] = err
			continue
		}
		result.Succeeded = append(result.Succeeded, p.ID())
	}
	return result
}
