// config.go: platform configuration with defaults and validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultPluginLocation = "plugins"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultWatchInterval  = 2 * time.Second
)

// Config holds the process-level settings of a Platform.
//
// Example configuration (platform.ini):
//
//	[platform]
//	plugins-dir = plugins,${TERMITE_HOME:-/opt/termite}/plugins
//	restricted-modules = os,net.raw
//	log-level = debug
//
// The same keys are accepted in YAML, JSON and TOML files, either at the top
// level or below a "platform" section, with underscores or dashes.
type Config struct {
	// PluginLocations are the directories searched for bundles.
	PluginLocations []string `json:"plugin_locations" yaml:"plugin_locations"`

	// RestrictedCapabilities are capability names plugins may neither
	// require nor export.
	RestrictedCapabilities []string `json:"restricted_capabilities" yaml:"restricted_capabilities"`

	// ManifestFile is the descriptor file name inside a bundle.
	ManifestFile string `json:"manifest_file" yaml:"manifest_file"`

	// CommentMarker starts a comment line in manifests.
	CommentMarker string `json:"comment_marker" yaml:"comment_marker"`

	// DiscoveryDepth is how many directory levels below a location are
	// searched for bundles.
	DiscoveryDepth int `json:"discovery_depth" yaml:"discovery_depth"`

	// Logging
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`

	// Watch enables reloading the configuration file when it changes.
	Watch         bool          `json:"watch" yaml:"watch"`
	WatchInterval time.Duration `json:"watch_interval" yaml:"watch_interval"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.PluginLocations) == 0 {
		c.PluginLocations = []string{DefaultPluginLocation}
	}
	if c.ManifestFile == "" {
		c.ManifestFile = DefaultManifestFile
	}
	if c.CommentMarker == "" {
		c.CommentMarker = DefaultCommentMarker
	}
	if c.DiscoveryDepth == 0 {
		c.DiscoveryDepth = DefaultDiscoveryDepth
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.WatchInterval == 0 {
		c.WatchInterval = DefaultWatchInterval
	}
}

// Validate checks the configuration for invalid values. Zero values are
// accepted; they are replaced by ApplyDefaults.
func (c Config) Validate() error {
	for _, location := range c.PluginLocations {
		if strings.TrimSpace(location) == "" {
			return NewConfigValidationError("plugin location cannot be empty")
		}
	}
	if strings.ContainsAny(c.ManifestFile, `/\`) {
		return NewConfigValidationError("manifest file must be a file name, not a path: " + c.ManifestFile)
	}
	if strings.TrimSpace(c.CommentMarker) != c.CommentMarker {
		return NewConfigValidationError("comment marker cannot contain surrounding whitespace")
	}
	if c.DiscoveryDepth < 0 {
		return NewConfigValidationError("discovery depth cannot be negative")
	}
	if c.LogLevel != "" {
		if _, ok := ParseLogLevel(c.LogLevel); !ok {
			return NewConfigValidationError("unknown log level: " + c.LogLevel)
		}
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return NewConfigValidationError("unknown log format: " + c.LogFormat)
	}
	if c.WatchInterval < 0 {
		return NewConfigValidationError("watch interval cannot be negative")
	}
	return nil
}

// splitList splits a comma-separated value, dropping blank items.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
