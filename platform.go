// platform.go: top-level start and shutdown sequencing
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"context"
	"sync"
)

// PlatformState is the state of a Platform.
type PlatformState string

// Platform states.
const (
	PlatformInitializing PlatformState = "initializing"
	PlatformActive       PlatformState = "active"
	PlatformShuttingDown PlatformState = "shutting-down"
	PlatformStopped      PlatformState = "stopped"
)

// ClassScheme is accepted as an alias of the hook scheme.
const ClassScheme = "class"

// Platform wires discovery, loading and the plugin registry together and
// runs the start and shutdown sequences:
//
//	Start:    discover -> add -> install all -> activate all
//	Shutdown: deactivate all -> uninstall all -> dispose all -> collect
//
// Public methods are serialized by a mutex, so a Platform may be driven from
// several goroutines (the configuration watcher calls Reload from its own).
//
// Example usage:
//
//	hooks := termite.NewHookRegistry()
//	hooks.RegisterHook("greeter.Hook", func() termite.Hook { return &Greeter{} })
//
//	platform, err := termite.NewPlatform(cfg,
//	    termite.WithLogger(logger),
//	    termite.WithHookRegistry(hooks))
//	if err != nil {
//	    return err
//	}
//	if err := platform.Start(ctx); err != nil {
//	    return err
//	}
//	defer platform.Shutdown(ctx)
type Platform struct {
	mu sync.Mutex

	cfg        Config
	configPath string
	logger     Logger

	loader    Loader
	hooks     *HookRegistry
	discovery Discovery
	bundles   *BundleHandler
	registry  *PluginRegistry
	handlers  []LifecycleEventHandler
	metrics   *LifecycleMetrics

	customDiscovery bool
	watcher         *ConfigWatcher
	state           PlatformState
}

// PlatformOption configures a Platform.
type PlatformOption func(*Platform)

// WithLogger sets the logger. It accepts a Logger, a *slog.Logger or nil.
func WithLogger(logger any) PlatformOption {
	return func(p *Platform) {
		p.logger = NewLogger(logger)
	}
}

// WithLoader replaces the default scheme loader.
func WithLoader(loader Loader) PlatformOption {
	return func(p *Platform) {
		p.loader = loader
	}
}

// WithDiscovery replaces the default directory discovery.
func WithDiscovery(discovery Discovery) PlatformOption {
	return func(p *Platform) {
		p.discovery = discovery
		p.customDiscovery = discovery != nil
	}
}

// WithHookRegistry sets the registry serving the hook and class schemes of
// the default loader.
func WithHookRegistry(hooks *HookRegistry) PlatformOption {
	return func(p *Platform) {
		p.hooks = hooks
	}
}

// WithEventHandler registers a handler for plugin lifecycle events.
func WithEventHandler(handler LifecycleEventHandler) PlatformOption {
	return func(p *Platform) {
		if handler != nil {
			p.handlers = append(p.handlers, handler)
		}
	}
}

// WithMetricsCollector records lifecycle metrics into collector. A nil
// collector selects an in-memory DefaultMetricsCollector.
func WithMetricsCollector(collector MetricsCollector) PlatformOption {
	return func(p *Platform) {
		p.metrics = NewLifecycleMetrics(collector)
	}
}

// WithConfigFile records the file cfg was loaded from. When cfg.Watch is
// set, Start watches the file and reloads the platform when it changes.
func WithConfigFile(path string) PlatformOption {
	return func(p *Platform) {
		p.configPath = path
	}
}

// NewPlatform creates a platform in the initializing state.
func NewPlatform(cfg Config, opts ...PlatformOption) (*Platform, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	p := &Platform{
		cfg:    cfg,
		logger: DefaultLogger(),
		state:  PlatformInitializing,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.hooks == nil {
		p.hooks = NewHookRegistry()
	}
	parser := NewManifestParser(WithCommentMarker(cfg.CommentMarker), WithParserLogger(p.logger))
	p.bundles = NewBundleHandler(parser, cfg.ManifestFile)

	if p.loader == nil {
		p.loader = p.defaultLoader()
	}
	if schemes, ok := p.loader.(interface{ Schemes() []string }); ok {
		parser.ReserveSchemes(schemes.Schemes()...)
	}
	if p.discovery == nil {
		p.discovery = p.defaultDiscovery()
	}

	registryOpts := []RegistryOption{WithRegistryLogger(p.logger)}
	if p.metrics != nil {
		registryOpts = append(registryOpts, WithRegistryEventHandler(p.metrics.Handle))
	}
	for _, handler := range p.handlers {
		registryOpts = append(registryOpts, WithRegistryEventHandler(handler))
	}
	p.registry = NewPluginRegistry(p.loader, registryOpts...)
	return p, nil
}

func (p *Platform) defaultLoader() *ResourceLoader {
	loader := NewResourceLoader(p.logger)
	loader.Register(BundleScheme, p.bundles)
	loader.Register(DefaultHookScheme, p.hooks)
	loader.Register(ClassScheme, p.hooks)
	loader.Register(LuaScheme, NewLuaHookHandler(p.logger))
	return loader
}

func (p *Platform) defaultDiscovery() *DirectoryDiscovery {
	return NewDirectoryDiscovery(p.bundles,
		WithRestrictedCapabilities(p.cfg.RestrictedCapabilities),
		WithMaxDepth(p.cfg.DiscoveryDepth),
		WithDiscoveryLogger(p.logger))
}

// State returns the platform state.
func (p *Platform) State() PlatformState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Config returns the configuration in use.
func (p *Platform) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Registry returns the plugin registry. Callers must not use it while a
// platform operation is running.
func (p *Platform) Registry() *PluginRegistry {
	return p.registry
}

// Metrics returns the lifecycle metrics collector, or nil when the platform
// was created without WithMetricsCollector.
func (p *Platform) Metrics() MetricsCollector {
	if p.metrics == nil {
		return nil
	}
	return p.metrics.Collector()
}

// Hooks returns the hook registry of the default loader.
func (p *Platform) Hooks() *HookRegistry {
	return p.hooks
}

// Start discovers, registers, installs and activates all plugins. Plugins
// failing along the way are logged and left disposed or deactivated; Start
// only fails when discovery fails or no install order exists. In that case
// the platform stays initializing and Shutdown releases what was
// registered.
func (p *Platform) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != PlatformInitializing {
		return NewPlatformStateError("start", p.state)
	}
	p.logger.Debug("Platform starting", "plugin_locations", p.cfg.PluginLocations)

	installed, err := p.bringUp(ctx)
	if err != nil {
		return err
	}
	activated := p.registry.ActivateAllPlugins()

	p.state = PlatformActive
	p.logger.Info("Platform started",
		"plugins", p.registry.Len(),
		"installed", len(installed),
		"active", len(activated.Succeeded))

	p.startWatcher()
	return nil
}

// bringUp discovers plugins not registered yet, adds them and runs an
// install pass. It returns the ids installed by the pass.
func (p *Platform) bringUp(ctx context.Context) ([]string, error) {
	references, err := p.discovery.Discover(ctx, p.cfg.PluginLocations)
	if err != nil {
		p.logger.Error("Plugin discovery failed", "error", err)
		return nil, err
	}

	var fresh []string
	for _, reference := range references {
		if existing, ok := p.registry.GetPluginByReference(reference); ok && existing.State() != StateDisposed {
			continue
		}
		fresh = append(fresh, reference)
	}
	p.logger.Info("Adding plugins", "discovered", len(references), "new", len(fresh))

	for reference, err := range p.registry.AddPlugins(fresh) {
		p.logger.Warn("Plugin skipped", "reference", reference, "error", err)
	}

	result, err := p.registry.InstallAllPlugins()
	if err != nil {
		return nil, err
	}
	for id, err := range result.Failed {
		p.logger.Warn("Plugin installation failed", "plugin_id", id, "error", err)
	}
	return result.Succeeded, nil
}

// Refresh discovers plugins added to the configured locations since the
// last pass and brings them up. Plugins already registered are left as
// they are.
func (p *Platform) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshLocked(ctx)
}

func (p *Platform) refreshLocked(ctx context.Context) error {
	if p.state != PlatformActive {
		return NewPlatformStateError("refresh", p.state)
	}

	installed, err := p.bringUp(ctx)
	if err != nil {
		return err
	}
	for _, id := range installed {
		if err := p.registry.ActivatePlugin(id); err != nil {
			p.logger.Warn("Plugin failed to activate", "plugin_id", id, "error", err)
		}
	}
	p.logger.Info("Platform refreshed", "installed", len(installed))
	return nil
}

// Reload applies the plugin locations and restricted capabilities of cfg
// and refreshes the platform.
func (p *Platform) Reload(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.ApplyDefaults()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.cfg.PluginLocations = cfg.PluginLocations
	p.cfg.RestrictedCapabilities = cfg.RestrictedCapabilities
	p.cfg.DiscoveryDepth = cfg.DiscoveryDepth
	if !p.customDiscovery {
		p.discovery = p.defaultDiscovery()
	}
	return p.refreshLocked(ctx)
}

func (p *Platform) startWatcher() {
	if !p.cfg.Watch || p.configPath == "" {
		return
	}
	watcher, err := NewConfigWatcher(p.configPath, p.cfg.WatchInterval, p.Reload, p.logger)
	if err == nil {
		err = watcher.Start()
	}
	if err != nil {
		p.logger.Warn("Configuration watching disabled", "error", err)
		return
	}
	p.watcher = watcher
}

// Shutdown deactivates, uninstalls and disposes every plugin, dependents
// first, and drops them from the registry. The passes always run to
// completion; per-plugin failures are logged.
func (p *Platform) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.state == PlatformShuttingDown || p.state == PlatformStopped {
		state := p.state
		p.mu.Unlock()
		return NewPlatformStateError("shut down", state)
	}
	p.state = PlatformShuttingDown
	watcher := p.watcher
	p.watcher = nil
	p.mu.Unlock()

	p.logger.Info("Platform shutting down")

	// The watcher calls Reload, which takes the lock.
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			p.logger.Warn("Failed to stop config watcher", "error", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.logFailures("deactivate", p.registry.DeactivateAllPlugins())
	p.logFailures("uninstall", p.registry.UninstallAllPlugins())
	p.logFailures("dispose", p.registry.DisposeAllPlugins())
	collected := p.registry.Collect()

	p.state = PlatformStopped
	p.logger.Info("Platform shutdown complete", "plugins_released", collected)
	return nil
}

func (p *Platform) logFailures(operation string, result BulkResult) {
	for id, err := range result.Failed {
		p.logger.Warn("Plugin "+operation+" failed during shutdown", "plugin_id", id, "error", err)
	}
}
