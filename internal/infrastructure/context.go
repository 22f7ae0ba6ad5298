package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// ContextWithTraceID returns a context carrying a freshly generated
// trace ID.
func ContextWithTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, uuid.New().String())
}

// EnsureTraceID adds a trace ID only when the context has none. The CLI
// binaries call it once at startup so a whole run shares one ID; HTTP
// requests get theirs from the RequestID middleware instead.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		return ContextWithTraceID(ctx)
	}
	return ctx
}

// WithComponent tags a logger with the subsystem it speaks for.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithError attaches err to the logger. A nil err returns the logger
// unchanged.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With("error", err.Error())
}
