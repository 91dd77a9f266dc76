// Package logger adapts github.com/charmbracelet/log into the small,
// field-carrying Logger shape used throughout the Kraken core: a logger
// derived with With(...) remembers its fields, every call takes a
// context.Context first so a run's correlation ID is always attached, and
// Options mirrors the teacher's plain-struct-with-defaults construction
// style instead of a builder.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	cblog "github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Options configures a Logger at construction time.
type Options struct {
	Writer        io.Writer
	Level         string
	HumanReadable bool
	Layer         string
	Component     string
}

// Logger is a structured, field-carrying logger bound to a layer/component
// pair (e.g. layer="graph", component="executor").
type Logger struct {
	base   *cblog.Logger
	fields []interface{}
}

type correlationIDKey struct{}

// WithCorrelationID attaches a run identifier to ctx so every Logger call
// made against that context includes it automatically.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// NewRunID mints a fresh correlation ID for a GraphExecutor run.
func NewRunID() string {
	return uuid.NewString()
}

func correlationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// New creates a configured Logger.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}

	level := cblog.InfoLevel
	if opts.Level != "" {
		parsed, err := cblog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	formatter := cblog.TextFormatter
	if !opts.HumanReadable {
		formatter = cblog.JSONFormatter
	}

	base := cblog.NewWithOptions(writer, cblog.Options{
		Level:           level,
		ReportTimestamp: true,
		Formatter:       formatter,
	})

	var fields []interface{}
	if opts.Layer != "" {
		fields = append(fields, "layer", opts.Layer)
	}
	if opts.Component != "" {
		fields = append(fields, "component", opts.Component)
	}

	return &Logger{base: base, fields: fields}, nil
}

// With returns a derived logger that always includes the supplied fields in
// addition to any it already carries. Fields keep first-seen order: l's own
// fields first, then fields, with later duplicates of an already-seen key
// overwriting its value in place rather than appending.
func (l *Logger) With(fields ...interface{}) *Logger {
	if l == nil {
		return nil
	}
	merged := mergeFields(l.fields, fields)
	return &Logger{base: l.base, fields: merged}
}

// Debug writes a debug-level entry.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.DebugLevel, msg, fields...)
}

// Info writes an info-level entry.
func (l *Logger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.InfoLevel, msg, fields...)
}

// Warn writes a warning-level entry.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.WarnLevel, msg, fields...)
}

// Error writes an error-level entry.
func (l *Logger) Error(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, cblog.ErrorLevel, msg, fields...)
}

func (l *Logger) log(ctx context.Context, level cblog.Level, msg string, fields ...interface{}) {
	if l == nil || l.base == nil {
		return
	}
	payload := mergeFields(l.fields, fields)
	if id := correlationID(ctx); id != "" {
		payload = append(payload, "run_id", id)
	}

	switch level {
	case cblog.DebugLevel:
		l.base.Debug(msg, payload...)
	case cblog.WarnLevel:
		l.base.Warn(msg, payload...)
	case cblog.ErrorLevel:
		l.base.Error(msg, payload...)
	default:
		l.base.Info(msg, payload...)
	}
}

// mergeFields combines two key/value slices, later keys overriding earlier
// ones, while preserving first-seen key order for deterministic output.
func mergeFields(base, additions []interface{}) []interface{} {
	store := make(map[string]interface{})
	var order []string

	add := func(values []interface{}) {
		for i := 0; i+1 < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			if _, exists := store[key]; !exists {
				order = append(order, key)
			}
			store[key] = values[i+1]
		}
	}

	add(base)
	add(additions)

	result := make([]interface{}, 0, len(order)*2)
	for _, key := range order {
		result = append(result, key, store[key])
	}
	return result
}
