// Package log wraps log/slog with the conventions used across this
// module: a process-wide default logger, per-subsystem child loggers
// carrying a "module" attribute, and terminal output through the
// formatters in this package.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a thin wrapper over slog.Logger.
type Logger struct {
	s *slog.Logger
}

// defaultLogger backs the package-level logging functions.
var defaultLogger = New(slog.LevelInfo)

// New creates a logger that writes JSON lines to stderr, dropping
// records below level.
func New(level slog.Level) *Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{s: slog.New(h)}
}

// NewWithHandler wraps an existing slog.Handler. Tests use this to
// capture output.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{s: slog.New(h)}
}

// NewTerminal creates a logger for interactive use, writing plain or
// colored lines to w. Services should keep the JSON output of New.
func NewTerminal(w io.Writer, level LogLevel, color bool) *Logger {
	var f LogFormatter = &TextFormatter{}
	if color {
		f = &ColorFormatter{}
	}
	return &Logger{s: slog.New(NewFormatHandler(w, level, f))}
}

// Default returns the process-wide logger.
func Default() *Logger { return defaultLogger }

// SetDefault replaces the process-wide logger. A nil argument leaves
// the current logger in place.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Module returns a child logger tagged with a "module" attribute. Each
// subsystem takes one at startup and hands it down.
func (l *Logger) Module(name string) *Logger {
	return &Logger{s: l.s.With("module", name)}
}

// With returns a child logger carrying extra key-value context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{s: l.s.With(args...)}
}

// Debug logs msg at debug level with alternating key-value args.
func (l *Logger) Debug(msg string, args ...any) { l.s.Debug(msg, args...) }

// Info logs msg at info level.
func (l *Logger) Info(msg string, args ...any) { l.s.Info(msg, args...) }

// Warn logs msg at warn level.
func (l *Logger) Warn(msg string, args ...any) { l.s.Warn(msg, args...) }

// Error logs msg at error level.
func (l *Logger) Error(msg string, args ...any) { l.s.Error(msg, args...) }

// Debug logs to the default logger.
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }

// Info logs to the default logger.
func Info(msg string, args ...any) { defaultLogger.Info(msg, args...) }

// Warn logs to the default logger.
func Warn(msg string, args ...any) { defaultLogger.Warn(msg, args...) }

// Error logs to the default logger.
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }
