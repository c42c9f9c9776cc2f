package http

import (
	"context"
	"log/slog"

	"github.com/example/meeting-lifecycle/internal/logging"
)

type contextKey string

const actorContextKey contextKey = "actor_id"

// ContextWithActorID returns a derived context carrying the acting user id.
func ContextWithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorContextKey, actorID)
}

// ActorIDFromContext extracts the acting user id placed by ActorFromHeader.
func ActorIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorContextKey).(string)
	return id, ok && id != ""
}

// ContextWithLogger attaches a request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
