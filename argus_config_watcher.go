// argus_config_watcher.go: configuration hot reload with Argus
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
)

// ConfigReloadFunc receives every successfully loaded configuration.
type ConfigReloadFunc func(ctx context.Context, cfg Config) error

// ConfigWatcher reloads the configuration file when it changes and hands
// the new configuration to a reload function. A file that fails to load or
// validate is logged and ignored; the previous configuration stays current.
//
// A watcher can be started once. After Stop it cannot be restarted.
type ConfigWatcher struct {
	mu       sync.Mutex
	path     string
	watcher  *argus.Watcher
	onReload ConfigReloadFunc
	logger   Logger

	current atomic.Pointer[Config]
	running bool
	stopped atomic.Bool
}

// NewConfigWatcher creates a watcher polling path every interval
// (DefaultWatchInterval when zero).
func NewConfigWatcher(path string, interval time.Duration, onReload ConfigReloadFunc, logger Logger) (*ConfigWatcher, error) {
	if path == "" {
		return nil, NewConfigValidationError("config watcher needs a file path")
	}
	if onReload == nil {
		return nil, NewConfigValidationError("config watcher needs a reload function")
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	internalLogger := NewLogger(logger).With("config_path", path)

	watcher := argus.New(argus.Config{
		PollInterval:         interval,
		MaxWatchedFiles:      1,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, filepath string) {
			internalLogger.Error("Argus file watching error", "error", err, "file", filepath)
		},
	})

	return &ConfigWatcher{
		path:     path,
		watcher:  watcher,
		onReload: onReload,
		logger:   internalLogger,
	}, nil
}

// Start loads the current file and begins watching it.
func (cw *ConfigWatcher) Start() error {
	if cw.stopped.Load() {
		return NewConfigWatcherError("config watcher has been stopped and cannot be restarted", nil)
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.running {
		return NewConfigWatcherError("config watcher is already running", nil)
	}

	cfg, err := LoadConfigFromFile(cw.path)
	if err != nil {
		return err
	}
	cw.current.Store(&cfg)

	if err := cw.watcher.Watch(cw.path, cw.handleConfigChange); err != nil {
		return NewConfigWatcherError("failed to watch config file", err)
	}
	if err := cw.watcher.Start(); err != nil {
		return NewConfigWatcherError("failed to start config watcher", err)
	}

	cw.running = true
	cw.logger.Info("Configuration watcher started")
	return nil
}

// Stop ends watching. Calling Stop on a watcher that is not running is an
// error.
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.running {
		return NewConfigWatcherError("config watcher is not running", nil)
	}

	cw.running = false
	cw.stopped.Store(true)
	if err := cw.watcher.Stop(); err != nil {
		return NewConfigWatcherError("failed to stop config watcher", err)
	}
	cw.logger.Info("Configuration watcher stopped")
	return nil
}

// IsRunning reports whether the watcher is active.
func (cw *ConfigWatcher) IsRunning() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.running
}

// Current returns the last configuration loaded successfully, or the zero
// Config before Start.
func (cw *ConfigWatcher) Current() Config {
	if cfg := cw.current.Load(); cfg != nil {
		return *cfg
	}
	return Config{}
}

func (cw *ConfigWatcher) handleConfigChange(event argus.ChangeEvent) {
	defer withStackRecover(cw.logger)()

	cw.logger.Info("Configuration file change detected",
		"path", event.Path,
		"is_create", event.IsCreate,
		"is_delete", event.IsDelete,
		"is_modify", event.IsModify)

	if event.IsDelete {
		cw.logger.Warn("Configuration file was deleted, skipping reload")
		return
	}
	if err := cw.Reload(context.Background()); err != nil {
		cw.logger.Error("Configuration reload failed", "error", err)
	}
}

// Reload loads the file now and passes it to the reload function. The
// configuration becomes current only if the reload function succeeds.
func (cw *ConfigWatcher) Reload(ctx context.Context) error {
	cfg, err := LoadConfigFromFile(cw.path)
	if err != nil {
		return err
	}
	if err := cw.onReload(ctx, cfg); err != nil {
		return err
	}
	cw.current.Store(&cfg)
	cw.logger.Info("Configuration reload completed", "plugin_locations", cfg.PluginLocations)
	return nil
}
