package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticKey string

func (k staticKey) APIKey(context.Context) (string, error) { return string(k), nil }

type failingKey struct{ err error }

func (f failingKey) APIKey(context.Context) (string, error) { return "", f.err }

// keyRecorder captures the key each call carried.
type keyRecorder struct {
	*MockProvider
	keys []string
}

func (r *keyRecorder) Generate(ctx context.Context, req Request) (*Response, error) {
	r.keys = append(r.keys, APIKeyFrom(ctx, ""))
	return r.MockProvider.Generate(ctx, req)
}

func TestWithCredentials_EmptyKeyNeverCallsInner(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`"hi"`)})
	p := WithCredentials(mock, staticKey(""))

	_, err := p.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, IsMissingCredential(err))
	assert.Equal(t, 0, mock.CallCount())
}

func TestWithCredentials_SourceErrorIsMissingCredential(t *testing.T) {
	mock := NewMockProvider()
	cause := errors.New("permission denied")
	p := WithCredentials(mock, failingKey{err: cause})

	_, err := p.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, IsMissingCredential(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, mock.CallCount())
}

func TestWithCredentials_PassesKeyThroughContext(t *testing.T) {
	rec := &keyRecorder{MockProvider: NewMockProvider(MockResponse{Content: json.RawMessage(`"hi"`)})}
	p := WithCredentials(rec, staticKey("AIza-test"))

	resp, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, `"hi"`, string(resp.Content))
	assert.Equal(t, []string{"AIza-test"}, rec.keys)
	assert.Equal(t, "mock", p.ModelID())
}

// rotatingKey returns a different key on every read.
type rotatingKey struct{ keys []string }

func (r *rotatingKey) APIKey(context.Context) (string, error) {
	k := r.keys[0]
	r.keys = r.keys[1:]
	return k, nil
}

func TestWithCredentials_ReadsKeyPerCall(t *testing.T) {
	rec := &keyRecorder{MockProvider: NewMockProvider(
		MockResponse{Content: json.RawMessage(`"a"`)},
		MockResponse{Content: json.RawMessage(`"b"`)},
	)}
	p := WithCredentials(rec, &rotatingKey{keys: []string{"old", "new"}})

	_, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), Request{})
	require.NoError(t, err)

	assert.Equal(t, []string{"old", "new"}, rec.keys)
}

func TestErrMissingCredential_Message(t *testing.T) {
	assert.Equal(t, "API key is missing", (&ErrMissingCredential{}).Error())
	assert.Equal(t, "gemini API key is missing", (&ErrMissingCredential{Provider: "gemini"}).Error())
	assert.Equal(t, "gemini API key is missing: bad",
		(&ErrMissingCredential{Provider: "gemini", Err: errors.New("bad")}).Error())
}
