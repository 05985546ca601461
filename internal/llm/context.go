package llm

import "context"

type contextKey string

const (
	purposeKey contextKey = "llm_purpose"
	apiKeyKey  contextKey = "llm_api_key"
)

// WithPurpose attaches a purpose label to the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithAPIKey attaches an API key to the context. Providers prefer it over
// the key they were configured with.
func WithAPIKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, apiKeyKey, key)
}

// APIKeyFrom returns the context API key, or fallback when none is set.
func APIKeyFrom(ctx context.Context, fallback string) string {
	if v, ok := ctx.Value(apiKeyKey).(string); ok && v != "" {
		return v
	}
	return fallback
}
