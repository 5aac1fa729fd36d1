// env_config_test.go: tests for environment expansion and overrides
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// clearTermiteEnv blanks the override variables for the duration of t.
func clearTermiteEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvPluginsDir, "")
	t.Setenv(EnvRestrictedCapabilities, "")
	t.Setenv(EnvLogLevel, "")
}

func TestExpandEnvironmentVariables(t *testing.T) {
	t.Setenv("TERMITE_TEST_HOME", "/srv/termite")
	t.Setenv("TERMITE_TEST_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Plain", "plugins", "plugins"},
		{"Empty", "", ""},
		{"Set", "${TERMITE_TEST_HOME}/plugins", "/srv/termite/plugins"},
		{"SetWithDefault", "${TERMITE_TEST_HOME:-/opt}/plugins", "/srv/termite/plugins"},
		{"UnsetDefault", "${TERMITE_TEST_UNSET:-/opt/termite}/plugins", "/opt/termite/plugins"},
		{"EmptyDefault", "${TERMITE_TEST_EMPTY:-fallback}", "fallback"},
		{"UnsetNoDefault", "${TERMITE_TEST_UNSET}", ""},
		{"Several", "${TERMITE_TEST_HOME}:${TERMITE_TEST_UNSET:-x}", "/srv/termite:x"},
		{"NotAVariable", "$TERMITE_TEST_HOME/${1BAD}", "$TERMITE_TEST_HOME/${1BAD}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandEnvironmentVariables(tt.input))
		})
	}
}

func TestConfig_ApplyEnvironment(t *testing.T) {
	clearTermiteEnv(t)
	t.Setenv("TERMITE_TEST_HOME", "/srv/termite")

	cfg := Config{
		PluginLocations:        []string{"${TERMITE_TEST_HOME}/plugins", "${TERMITE_TEST_UNSET}", "local"},
		RestrictedCapabilities: []string{"os"},
		LogLevel:               "info",
	}
	cfg.ApplyEnvironment()

	assert.Equal(t, []string{"/srv/termite/plugins", "local"}, cfg.PluginLocations)
	assert.Equal(t, []string{"os"}, cfg.RestrictedCapabilities)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestConfig_ApplyEnvironmentOverrides(t *testing.T) {
	clearTermiteEnv(t)
	t.Setenv("TERMITE_TEST_HOME", "/srv/termite")
	t.Setenv(EnvPluginsDir, "${TERMITE_TEST_HOME}/a, /b")
	t.Setenv(EnvRestrictedCapabilities, "os,net.raw")
	t.Setenv(EnvLogLevel, "debug")

	cfg := Config{PluginLocations: []string{"ignored"}, LogLevel: "error"}
	cfg.ApplyEnvironment()

	assert.Equal(t, []string{"/srv/termite/a", "/b"}, cfg.PluginLocations)
	assert.Equal(t, []string{"os", "net.raw"}, cfg.RestrictedCapabilities)
	assert.Equal(t, "debug", cfg.LogLevel)
}
