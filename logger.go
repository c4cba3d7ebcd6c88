package vecgate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with gateway-specific context.
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

// NewJSONLogger creates a Logger that outputs JSON-formatted logs to w.
// level may be a slog.Level or a *slog.LevelVar.
func NewJSONLogger(w io.Writer, level slog.Leveler) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs to w.
func NewTextLogger(w io.Writer, level slog.Leveler) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewFormatLogger creates a JSON or text Logger by format name.
func NewFormatLogger(w io.Writer, format string, level slog.Leveler) (*Logger, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return NewTextLogger(w, level), nil
	case "json":
		return NewJSONLogger(w, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithRequestID adds a request id field to the logger.
func (l *Logger) WithRequestID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("request_id", id),
	}
}

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogLoad logs the outcome of loading an index.
func (l *Logger) LogLoad(ctx context.Context, location string, dimension, count int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index load failed",
			"location", location,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index loaded",
			"location", location,
			"dimension", dimension,
			"count", count,
			"elapsed", elapsed,
		)
	}
}

// LogSearch logs a batch search.
func (l *Logger) LogSearch(ctx context.Context, queries, k, neighbors int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"queries", queries,
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"queries", queries,
			"k", k,
			"neighbors", neighbors,
			"elapsed", elapsed,
		)
	}
}

// LogValidation logs a rejected batch.
func (l *Logger) LogValidation(ctx context.Context, queries, k int, err error) {
	l.DebugContext(ctx, "batch rejected",
		"queries", queries,
		"k", k,
		"reason", err,
	)
}

// LogOverload logs a request rejected by admission control.
func (l *Logger) LogOverload(ctx context.Context, err error) {
	l.WarnContext(ctx, "request rejected",
		"error", err,
	)
}
