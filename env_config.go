// env_config.go: environment variable expansion and overrides
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"os"
	"regexp"
)

// Environment variables overriding configuration values.
const (
	EnvPluginsDir             = "TERMITE_PLUGINS_DIR"
	EnvRestrictedCapabilities = "TERMITE_RESTRICTED_CAPABILITIES"
	EnvLogLevel               = "TERMITE_LOG_LEVEL"
)

var variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnvironmentVariables expands ${VAR} and ${VAR:-default} in input.
// An unset or empty variable without a default expands to "".
//
// Example:
//
//	ExpandEnvironmentVariables("${TERMITE_HOME:-/opt/termite}/plugins")
func ExpandEnvironmentVariables(input string) string {
	if input == "" {
		return input
	}
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		submatches := variablePattern.FindStringSubmatch(match)
		if value := os.Getenv(submatches[1]); value != "" {
			return value
		}
		return submatches[3]
	})
}

// ApplyEnvironment expands variables in the plugin locations and then
// applies the TERMITE_* overrides. Overriding lists are comma-separated.
func (c *Config) ApplyEnvironment() {
	if value := os.Getenv(EnvPluginsDir); value != "" {
		c.PluginLocations = splitList(value)
	}
	if value := os.Getenv(EnvRestrictedCapabilities); value != "" {
		c.RestrictedCapabilities = splitList(value)
	}
	if value := os.Getenv(EnvLogLevel); value != "" {
		c.LogLevel = value
	}

	var locations []string
	for _, location := range c.PluginLocations {
		if expanded := ExpandEnvironmentVariables(location); expanded != "" {
			locations = append(locations, expanded)
		}
	}
	c.PluginLocations = locations
}
