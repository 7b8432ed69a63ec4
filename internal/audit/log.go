package audit

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"savdo.org/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Event writes an append-only audit entry enriched with request and user
// context. Token material must never be passed in fields.
func Event(ctx context.Context, logger *zap.Logger, event string, fields ...zap.Field) {
	event = strings.TrimSpace(event)
	if event == "" || logger == nil {
		return
	}
	enriched := make([]zap.Field, 0, len(fields)+3)
	enriched = append(enriched, zap.String("type", "audit"), zap.String("event", event))
	if rid := RequestIDFromContext(ctx); rid != "" {
		enriched = append(enriched, zap.String("request_id", rid))
	}
	if principal, ok := auth.PrincipalFromContext(ctx); ok {
		enriched = append(enriched, zap.String("user_id", principal.User.ID))
	}
	enriched = append(enriched, fields...)
	logger.Info("audit", enriched...)
}
