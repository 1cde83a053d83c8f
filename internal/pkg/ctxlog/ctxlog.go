// Package ctxlog carries a request-scoped slog.Logger in the context. The
// HTTP logging middleware attaches a logger enriched with the request id;
// handlers and clients below it retrieve it with FromContext.
package ctxlog

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// FromContext extracts the request logger from the context, falling back
// to slog.Default() outside a request scope.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger returns a context carrying the given logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}
