package middleware

import "context"

type contextKey string

const (
	ctxAPIKeyPrefix contextKey = "api_key_prefix"
	ctxAPIKeyName   contextKey = "api_key_name"
)

// APIKeyPrefixFromContext returns the public prefix of the authenticated API key.
func APIKeyPrefixFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAPIKeyPrefix).(string); ok {
		return v
	}
	return ""
}

// APIKeyNameFromContext returns the label the authenticated key was issued with.
func APIKeyNameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAPIKeyName).(string); ok {
		return v
	}
	return ""
}

// WithAPIKey injects the authenticated key identity into the context.
func WithAPIKey(ctx context.Context, prefix, name string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAPIKeyPrefix, prefix)
	return context.WithValue(ctx, ctxAPIKeyName, name)
}
