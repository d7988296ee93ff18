// Package logging provides the component logger used across ydoc.
//
// Messages are printf-style and rendered through log/slog, either as
// key=value text or as JSON lines. Loggers derived with WithField or
// WithComponent share the level of the logger they came from.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Level represents the severity level of a log message.
type Level int

const (
	// LevelDebug is for detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo is for general informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses a string into a Level. Unknown names map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format selects the output encoding.
type Format string

const (
	// FormatText writes key=value lines.
	FormatText Format = "text"
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
)

// Config configures a logger.
type Config struct {
	// Level is the minimum log level to output.
	Level Level
	// Format selects text or JSON output. Defaults to text.
	Format Format
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Prefix is attached to every record as the "app" attribute.
	Prefix string
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatText,
		Output: os.Stderr,
		Prefix: "ydoc",
	}
}

// Logger provides structured logging for ydoc components.
type Logger struct {
	slog     *slog.Logger
	level    *slog.LevelVar
	disabled *atomic.Bool
}

// New creates a logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	level := new(slog.LevelVar)
	level.Set(cfg.Level.slog())
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		h = slog.NewTextHandler(cfg.Output, opts)
	}
	l := slog.New(h)
	if cfg.Prefix != "" {
		l = l.With("app", cfg.Prefix)
	}
	return &Logger{slog: l, level: level, disabled: new(atomic.Bool)}
}

// Nop returns a logger that discards all output.
func Nop() *Logger {
	l := New(Config{Output: io.Discard, Level: LevelError})
	l.disabled.Store(true)
	return l
}

// WithField returns a new logger with the given field added.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{slog: l.slog.With(key, value), level: l.level, disabled: l.disabled}
}

// WithFields returns a new logger with the given fields added.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{slog: l.slog.With(args...), level: l.level, disabled: l.disabled}
}

// WithComponent returns a new logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level.slog())
}

// Disable disables all logging.
func (l *Logger) Disable() { l.disabled.Store(true) }

// Enable enables logging.
func (l *Logger) Enable() { l.disabled.Store(false) }

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return !l.disabled.Load() && l.slog.Enabled(context.Background(), level.slog())
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, msg, args...)
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.slog.Log(context.Background(), level.slog(), msg)
}

// Slog returns the underlying slog logger.
func (l *Logger) Slog() *slog.Logger { return l.slog }
