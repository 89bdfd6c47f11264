package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides structured logging with consistent fields.
type Logger struct {
	base zerolog.Logger
}

// Options controls where and how a Logger writes.
type Options struct {
	Level  string
	Format string // "json" or "console"
	Out    io.Writer
}

// NewLogger creates a JSON logger on stderr with component metadata.
func NewLogger(component string) *Logger {
	l, _ := New(component, Options{})
	return l
}

// New creates a logger with component metadata. Unknown levels are an error.
func New(component string, opts Options) (*Logger, error) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	l := zerolog.New(out).With().
		Timestamp().
		Str("component", component).
		Logger().
		Level(level)
	zerolog.DurationFieldUnit = time.Millisecond
	return &Logger{base: l}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{base: zerolog.Nop()}
}

// With returns a child logger carrying the key/value pairs on every entry.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{base: l.base.With().Fields(kvToMap(keyvals...)).Logger()}
}

// Debug logs verbose diagnostics with optional key/value pairs.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.base.Debug().Fields(kvToMap(keyvals...)).Msg(msg)
}

// Info logs informational messages with optional key/value pairs.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.base.Info().Fields(kvToMap(keyvals...)).Msg(msg)
}

// Warn logs warning messages with optional key/value pairs.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.base.Warn().Fields(kvToMap(keyvals...)).Msg(msg)
}

// Error logs error messages with optional key/value pairs.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.base.Error().Fields(kvToMap(keyvals...)).Msg(msg)
}

// kvToMap converts a flat list of key/value pairs into a map for zerolog.
func kvToMap(kv ...interface{}) map[string]interface{} {
	fields := make(map[string]interface{})
	for i := 0; i < len(kv)-1; i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}
