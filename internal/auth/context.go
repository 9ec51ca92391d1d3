package auth

import "context"

type accountContextKey struct{}

// ContextWithAccountID attaches the authenticated account id for audit
// enrichment.
func ContextWithAccountID(ctx context.Context, accountID string) context.Context {
	if accountID == "" {
		return ctx
	}
	return context.WithValue(ctx, accountContextKey{}, accountID)
}

// AccountIDFromContext returns the authenticated account id, if any.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(accountContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
