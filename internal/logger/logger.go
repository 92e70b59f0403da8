// Package logger configures the process-wide slog logger and derives
// request-scoped loggers from a context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Init builds the process logger and installs it as the slog default.
// env "production" selects JSON output at info level; anything else selects
// human-readable text at debug level.
func Init(env string) *slog.Logger {
	return New(os.Stdout, env)
}

// New is Init with an explicit destination.
func New(w io.Writer, env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler).With("service", "image-drop")
	slog.SetDefault(l)
	return l
}

// WithRequestID stores the request id in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns the default logger annotated with the request id
// carried by ctx, if any.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := RequestID(ctx); id != "" {
		l = l.With("request_id", id)
	}
	return l
}
