package llm

import (
	"context"
)

// KeySource yields the API key to use for a request. An empty key with a
// nil error means no key is configured.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// CredentialProvider is a decorator that reads the API key from a KeySource
// on every call and hands it to the inner provider through the context.
// When no key is available the inner provider is not called at all.
type CredentialProvider struct {
	inner Provider
	keys  KeySource
}

// WithCredentials wraps a Provider with call-time key resolution.
func WithCredentials(p Provider, keys KeySource) Provider {
	return &CredentialProvider{inner: p, keys: keys}
}

func (c *CredentialProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return nil, &ErrMissingCredential{Err: err}
	}
	if key == "" {
		return nil, &ErrMissingCredential{}
	}
	return c.inner.Generate(WithAPIKey(ctx, key), req)
}

func (c *CredentialProvider) ModelID() string {
	return c.inner.ModelID()
}
