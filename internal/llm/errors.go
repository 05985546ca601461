package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the LLM returned content that does not
// conform to the requested schema.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down or unreachable.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded indicates the response was truncated because it
// hit the MaxTokens limit.
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}

// checkTruncated turns a max_tokens stop into *ErrMaxTokensExceeded when the
// partial response is unusable: structured output, or no text at all. A cut
// off plain-text reply is still returned to the caller.
func checkTruncated(stopReason string, content json.RawMessage, schema *Schema) error {
	if stopReason != "max_tokens" {
		return nil
	}
	if schema == nil && len(content) > 0 {
		return nil
	}
	return &ErrMaxTokensExceeded{Content: content}
}

// ErrMissingCredential indicates no usable API key was available at call
// time, either because none was configured or because the provider rejected
// it. It is never retried.
type ErrMissingCredential struct {
	Provider string
	Err      error
}

func (e *ErrMissingCredential) Error() string {
	msg := "API key is missing"
	if e.Provider != "" {
		msg = e.Provider + " API key is missing"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ErrMissingCredential) Unwrap() error { return e.Err }

// IsMissingCredential reports whether err is or wraps *ErrMissingCredential.
func IsMissingCredential(err error) bool {
	var mc *ErrMissingCredential
	return errors.As(err, &mc)
}

// mentionsAPIKey reports whether a provider error message blames the key.
// Gemini answers an invalid key with 400 INVALID_ARGUMENT, not 401.
func mentionsAPIKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "api key")
}
