package domain

import "context"

const (
	RequesterIdCtxKey = "cc-requesterId"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
)

// RequesterFromContext returns the identity attributed to the current call.
func RequesterFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(RequesterIdCtxKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return Identity(id), true
}

// WithRequester attaches the calling identity to ctx.
func WithRequester(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, RequesterIdCtxKey, string(id))
}
