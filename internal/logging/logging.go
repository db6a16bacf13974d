// Package logging provides structured logging for auspex.
//
// Components obtain a named logger and attach structured fields:
//
//	logger := logging.GetLogger("facts")
//	logger.InfoWithFields("facts written",
//	    logging.Field("host", host),
//	    logging.Field("commands", n),
//	)
//
// Loggers are immutable. WithField and WithFields return child loggers,
// so a logger can be shared across goroutines without coordination.
// Output goes through zerolog; Initialize selects console or JSON format
// and the default level, with optional per-package level overrides
// ("parser=debug", "pipeline.*=warn").
package logging

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Options configures the global logging state.
type Options struct {
	// Level is the default minimum level (debug, info, warn, error, fatal).
	Level string
	// Format selects the output encoding: "console" (default) or "json".
	Format string
	// PackageLevels overrides the minimum level per logger name.
	// Keys are exact names or prefix patterns like "pipeline.*".
	PackageLevels map[string]string
}

var (
	mu          sync.RWMutex
	base        zerolog.Logger
	defLevel    LogLevel
	initialized bool

	// exitFunc is called by Fatal. Overridable in tests.
	exitFunc = os.Exit
)

// Initialize configures the global logger. Safe to call more than once;
// the last call wins. Invalid per-package levels are rejected.
func Initialize(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		level = INFO
	}
	if opts.PackageLevels != nil {
		if err := SetPackageLevels(opts.PackageLevels); err != nil {
			return err
		}
	}

	var zl zerolog.Logger
	switch strings.ToLower(opts.Format) {
	case "json":
		zl = zerolog.New(os.Stderr).With().Timestamp().Logger()
	default:
		cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		zl = zerolog.New(cw).With().Timestamp().Logger()
	}

	mu.Lock()
	base = zl
	defLevel = level
	initialized = true
	mu.Unlock()
	return nil
}

func ensureInit() {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return
	}
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	base = zerolog.New(cw).With().Timestamp().Logger()
	defLevel = INFO
	initialized = true
}

// Logger emits structured log lines under a component name.
type Logger struct {
	name   string
	fields map[string]interface{}
	ctx    context.Context
}

// GetLogger returns a logger for the named component.
func GetLogger(name string) *Logger {
	ensureInit()
	return &Logger{name: name, fields: map[string]interface{}{}}
}

// WithName returns a logger with a different component name.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{name: name, fields: cloneFields(l.fields), ctx: l.ctx}
}

// WithField returns a child logger carrying an extra persistent field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	child := &Logger{name: l.name, fields: cloneFields(l.fields), ctx: l.ctx}
	child.fields[key] = value
	return child
}

// WithFields returns a child logger carrying extra persistent fields.
func (l *Logger) WithFields(fields ...LogField) *Logger {
	child := &Logger{name: l.name, fields: cloneFields(l.fields), ctx: l.ctx}
	for _, f := range fields {
		child.fields[f.Key] = f.Value
	}
	return child
}

// WithContext returns a child logger that stamps trace_id and span_id
// from the active OpenTelemetry span in ctx, when one is recording.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{name: l.name, fields: cloneFields(l.fields), ctx: ctx}
}

func (l *Logger) enabled(level LogLevel) bool {
	if pkg, ok := packageLevel(l.name); ok {
		return level >= pkg
	}
	mu.RLock()
	defer mu.RUnlock()
	return level >= defLevel
}

// Debug logs a debug message with optional printf args.
func (l *Logger) Debug(msg string, args ...interface{}) { l.logf(DEBUG, msg, args...) }

// Info logs an info message with optional printf args.
func (l *Logger) Info(msg string, args ...interface{}) { l.logf(INFO, msg, args...) }

// Warn logs a warning with optional printf args.
func (l *Logger) Warn(msg string, args ...interface{}) { l.logf(WARN, msg, args...) }

// Error logs an error message with optional printf args.
func (l *Logger) Error(msg string, args ...interface{}) { l.logf(ERROR, msg, args...) }

// ErrorWithErr logs an error message together with an error value.
func (l *Logger) ErrorWithErr(msg string, err error) {
	l.write(ERROR, msg, map[string]interface{}{"error": fmt.Sprint(err)})
}

// Fatal logs at fatal level and terminates the process with exit code 1.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.logf(FATAL, msg, args...)
	exitFunc(1)
}

// DebugWithFields logs a debug message with structured fields.
func (l *Logger) DebugWithFields(msg string, fields ...LogField) {
	l.write(DEBUG, msg, collect(fields))
}

// InfoWithFields logs an info message with structured fields.
func (l *Logger) InfoWithFields(msg string, fields ...LogField) {
	l.write(INFO, msg, collect(fields))
}

// WarnWithFields logs a warning with structured fields.
func (l *Logger) WarnWithFields(msg string, fields ...LogField) {
	l.write(WARN, msg, collect(fields))
}

// ErrorWithFields logs an error message with structured fields.
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) {
	l.write(ERROR, msg, collect(fields))
}

func (l *Logger) logf(level LogLevel, msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.write(level, msg, nil)
}

func (l *Logger) write(level LogLevel, msg string, extra map[string]interface{}) {
	if !l.enabled(level) {
		return
	}
	mu.RLock()
	zl := base
	mu.RUnlock()

	ev := zl.WithLevel(zerologLevel(level)).Str("logger", l.name)
	if l.ctx != nil {
		if sc := trace.SpanContextFromContext(l.ctx); sc.IsValid() {
			ev = ev.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
	}
	for k, v := range l.fields {
		ev = ev.Interface(k, v)
	}
	for k, v := range extra {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func collect(fields []LogField) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}

func cloneFields(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	}
	return zerolog.InfoLevel
}
