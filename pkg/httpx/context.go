package httpx

import "context"

type ctxKey string

const (
	// CtxKeyUserID carries the authenticated backend user id, set by the
	// gateway session middleware and consumed by per-user rate limiting.
	CtxKeyUserID ctxKey = "user_id"
)

// UserIDFromContext returns the authenticated user id, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// ContextWithUserID attaches the authenticated user id to ctx.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxKeyUserID, userID)
}
