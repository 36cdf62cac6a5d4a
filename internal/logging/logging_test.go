package logging

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNewHandler_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		level    slog.Level
		log      func(*slog.Logger)
		expected []string
		absent   []string
	}{
		{
			name:  "info drops debug",
			level: slog.LevelInfo,
			log: func(l *slog.Logger) {
				l.Debug("hidden")
				l.Info("shown")
			},
			expected: []string{`"msg":"shown"`, `"level":"info"`},
			absent:   []string{"hidden"},
		},
		{
			name:  "debug keeps debug",
			level: slog.LevelDebug,
			log: func(l *slog.Logger) {
				l.Debug("details")
			},
			expected: []string{`"msg":"details"`, `"level":"debug"`},
		},
		{
			name:  "warn keeps its level",
			level: slog.LevelWarn,
			log: func(l *slog.Logger) {
				l.Info("hidden")
				l.Warn("careful")
			},
			expected: []string{`"msg":"careful"`, `"level":"warn"`},
			absent:   []string{"hidden"},
		},
		{
			name:  "error",
			level: slog.LevelError,
			log: func(l *slog.Logger) {
				l.Warn("hidden")
				l.Error("broken")
			},
			expected: []string{`"msg":"broken"`, `"level":"error"`},
			absent:   []string{"hidden"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(NewHandler(WithLevel(tt.level), WithOutput(&buf)))
			tt.log(logger)

			out := buf.String()
			for _, s := range tt.expected {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestNewHandler_Attributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewHandler(WithOutput(&buf))).With("cycle_id", "abc")
	logger.Info("Synchronization completed", "resource", "folder/tasks.xml")

	out := buf.String()
	assert.Contains(t, out, "cycle_id")
	assert.Contains(t, out, "abc")
	assert.Contains(t, out, "folder/tasks.xml")
}

func TestNewHandler_TraceContext(t *testing.T) {
	t.Parallel()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var buf bytes.Buffer
	logger := slog.New(NewHandler(WithOutput(&buf)))
	logger.InfoContext(ctx, "traced")
	logger.Info("untraced")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "4bf92f3577b34da6a3ce929d0e0e4736")
	assert.Contains(t, string(lines[0]), "00f067aa0ba902b7")
	assert.NotContains(t, string(lines[1]), "trace_id")
}

func TestNewHandler_Development(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewHandler(WithDevelopment(true), WithLevel(slog.LevelDebug), WithOutput(&buf)))
	logger.Debug("console output")

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "console output")
	assert.NotContains(t, out, `"msg"`)
}

func TestNewHandler_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "davsync.log")
	var buf bytes.Buffer
	logger := slog.New(NewHandler(WithOutput(&buf), WithFile(path)))
	logger.Info("to both")

	assert.Contains(t, buf.String(), "to both")
	assert.FileExists(t, path)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
		ok       bool
	}{
		{"", slog.LevelInfo, true},
		{"debug", slog.LevelDebug, true},
		{"DEBUG", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			level, ok := ParseLevel(tt.input)
			assert.Equal(t, tt.expected, level)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	assert.Equal(t, slog.LevelError, LevelFromEnv("DAVSYNC"))

	t.Setenv("DAVSYNC_LOG_LEVEL", "debug")
	assert.Equal(t, slog.LevelDebug, LevelFromEnv("DAVSYNC"))

	t.Setenv("DAVSYNC_LOG_LEVEL", "nonsense")
	assert.Equal(t, slog.LevelInfo, LevelFromEnv("DAVSYNC"))
}
