package uniquestore

import (
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/uniquestore/core"
)

// Logger wraps slog.Logger with store-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithRef adds an entry ref field to the logger.
func (l *Logger) WithRef(ref core.EntryRef) *Logger {
	return &Logger{
		Logger: l.Logger.With("ref", ref.Ref()),
	}
}

// WithGeneration adds a generation field to the logger.
func (l *Logger) WithGeneration(gen core.Generation) *Logger {
	return &Logger{
		Logger: l.Logger.With("generation", uint64(gen)),
	}
}

// LogCompaction logs a completed compaction sweep.
func (l *Logger) LogCompaction(buffers, moved int, duration time.Duration) {
	l.Debug("compaction completed",
		"buffers", buffers,
		"moved", moved,
		"duration", duration,
	)
}

// LogReclaim logs a hold-list trim.
func (l *Logger) LogReclaim(firstUsed core.Generation, duration time.Duration) {
	l.Debug("hold lists trimmed",
		"first_used", uint64(firstUsed),
		"duration", duration,
	)
}
