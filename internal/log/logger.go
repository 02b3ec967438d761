package log

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with a component attribute so each part of
// the system (allocation, forecast, server) logs under its own name.
type Logger struct {
	*slog.Logger
}

// New creates a logger writing text records to stdout at the given level.
func New(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{Logger: slog.New(handler)}
}

// WithComponent returns a child logger tagged with a component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}

// With returns a child logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
