// Package logging builds the process-wide slog handler.
//
// Records are encoded by zap, as JSON by default or in console form for
// development, and reach it through the logr bridge. Records logged with a
// context carrying a valid span gain trace_id and span_id attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation settings of the log file
const (
	maxFileSizeMB  = 50
	maxFileBackups = 5
	maxFileAgeDays = 28
)

// Option configures NewHandler
type Option func(*options)

type options struct {
	level       slog.Level
	development bool
	output      io.Writer
	file        string
}

// WithLevel sets the minimum level of emitted records
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithDevelopment switches to human-readable console output
func WithDevelopment(development bool) Option {
	return func(o *options) {
		o.development = development
	}
}

// WithOutput sets where records are written. Defaults to stderr.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithFile additionally writes records to a size-rotated file
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// NewHandler creates the slog handler for the process
func NewHandler(opts ...Option) slog.Handler {
	o := &options{level: slog.LevelInfo, output: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	var encoder zapcore.Encoder
	if o.development {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = verbosityEncoder(zapcore.CapitalLevelEncoder)
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "time"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.EncodeLevel = verbosityEncoder(zapcore.LowercaseLevelEncoder)
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	sink := zapcore.AddSync(o.output)
	if o.file != "" {
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(&lumberjack.Logger{
			Filename:   o.file,
			MaxSize:    maxFileSizeMB,
			MaxBackups: maxFileBackups,
			MaxAge:     maxFileAgeDays,
		}))
	}

	// The bridge maps slog levels below info onto zap levels below debug, so
	// the core must not filter anything the level filter lets through.
	coreLevel := zapcore.Level(min(o.level, slog.LevelInfo))
	core := zapcore.NewCore(encoder, zapcore.Lock(sink), zap.NewAtomicLevelAt(coreLevel))

	handler := logr.ToSlogHandler(zapr.NewLogger(zap.New(core)))
	return &traceHandler{Handler: &levelHandler{Handler: handler, level: o.level}}
}

// verbosityEncoder prints every level below debug as debug
func verbosityEncoder(next zapcore.LevelEncoder) zapcore.LevelEncoder {
	return func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		if l < zapcore.DebugLevel {
			l = zapcore.DebugLevel
		}
		next(l, enc)
	}
}

// levelHandler drops records below level
type levelHandler struct {
	slog.Handler
	level slog.Level
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}

// traceHandler injects the trace_id and span_id of the record's context
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

// LevelFromEnv reads DAVSYNC_LOG_LEVEL, falling back to LOG_LEVEL.
// Unset or invalid values yield info.
func LevelFromEnv(envPrefix string) slog.Level {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	level, ok := ParseLevel(levelStr)
	if !ok {
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
	}
	return level
}

// ParseLevel parses a level name. Empty selects info.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
