// logging_test.go: logging interface tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLogger_BasicMessageCapture covers Debug(), Info(), Warn(), Error() capture
func TestLogger_BasicMessageCapture(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(*TestLogger, string, ...any)
		level   string
		message string
		args    []any
	}{
		{"Debug_SimpleMessage", (*TestLogger).Debug, "DEBUG", "debug message", nil},
		{"Info_SimpleMessage", (*TestLogger).Info, "INFO", "info message", nil},
		{"Warn_SimpleMessage", (*TestLogger).Warn, "WARN", "warn message", nil},
		{"Error_SimpleMessage", (*TestLogger).Error, "ERROR", "error message", nil},
		{"Info_WithStructuredArgs", (*TestLogger).Info, "INFO", "plugin installed", []any{"plugin_id", "p1", "state", "installed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewTestLogger()
			tt.logFunc(logger, tt.message, tt.args...)

			entries := logger.Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			assert.Equal(t, tt.message, entries[0].Message)
			assert.Equal(t, len(tt.args), len(entries[0].Args))
			assert.True(t, logger.HasMessage(tt.level, tt.message))
		})
	}
}

func TestLogger_WithSharesBuffer(t *testing.T) {
	logger := NewTestLogger()
	child := logger.With("plugin_id", "p1")
	child.Warn("hook failed", "error", "boom")

	entries := logger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, []any{"plugin_id", "p1", "error", "boom"}, entries[0].Args)
	assert.Equal(t, 1, logger.CountLevel("WARN"))

	logger.Clear()
	assert.Empty(t, logger.Entries())
}

func TestNewLogger(t *testing.T) {
	assert.IsType(t, &NoOpLogger{}, NewLogger(nil))

	tl := NewTestLogger()
	assert.Same(t, tl, NewLogger(tl))

	assert.IsType(t, &SlogAdapter{}, NewLogger(slog.Default()))

	assert.Panics(t, func() { NewLogger("not a logger") })
}

func TestSlogLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(&buf, "json", slog.LevelInfo)
	logger.Debug("hidden")
	logger.With("plugin_id", "p1").Info("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"visible"`)
	assert.Contains(t, out, `"plugin_id":"p1"`)

	buf.Reset()
	text := NewSlogLogger(&buf, "text", slog.LevelDebug)
	text.Debug("shown", "k", "v")
	assert.True(t, strings.Contains(buf.String(), "k=v"))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in    string
		level slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		level, ok := ParseLogLevel(tt.in)
		assert.Equal(t, tt.level, level, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestLoggerContext(t *testing.T) {
	assert.IsType(t, &NoOpLogger{}, LoggerFromContext(context.Background()))

	tl := NewTestLogger()
	ctx := ContextWithLogger(context.Background(), tl)
	assert.Same(t, tl, LoggerFromContext(ctx))
}
