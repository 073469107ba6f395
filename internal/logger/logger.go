// Package logger provides the zerolog setup shared by the binaries and
// a context carrier so library code logs through the caller's logger.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type contextKey struct{}

// New returns the default console logger. Level comes from
// FINBOT_LOG_LEVEL (zerolog names: trace, debug, info, ...), defaulting
// to info.
func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(levelFromEnv()).With().Timestamp().Caller().Logger()
}

// NewWithWriter returns a logger writing JSON lines to w. Used by
// tests and by deployments that ship logs to a collector.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// WithContext attaches the logger to the context.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger carried by ctx, or the default logger
// when none was attached.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(zerolog.Logger); ok {
		return logger
	}
	return New()
}

func levelFromEnv() zerolog.Level {
	raw := os.Getenv("FINBOT_LOG_LEVEL")
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
