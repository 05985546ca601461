package llm

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustech/latch/internal/store"
)

func openEventRepo(t *testing.T) store.EventRepo {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "llm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.EventRepo()
}

func TestLogging_RecordsSuccess(t *testing.T) {
	repo := openEventRepo(t)
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage("Why write else?"),
		Usage:   Usage{InputTokens: 30, OutputTokens: 5},
	})
	p := WithLogging(mock, ProviderGemini, repo)

	ctx := WithPurpose(context.Background(), "reply")
	_, err := p.Generate(ctx, Request{
		System:   "persona",
		Messages: []Message{{Role: RoleUser, Content: "this is a latch"}},
	})
	require.NoError(t, err)

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, ProviderGemini, e.Provider)
	assert.Equal(t, "mock", e.Model)
	assert.Equal(t, "reply", e.Purpose)
	assert.True(t, e.Success)
	assert.Equal(t, 30, e.InputTokens)
	assert.Equal(t, "Why write else?", e.ResponseBody)
	assert.True(t, strings.Contains(e.RequestBody, "[system]\npersona"))
	assert.True(t, strings.Contains(e.RequestBody, "[user]\nthis is a latch"))
}

func TestLogging_RecordsFailure(t *testing.T) {
	repo := openEventRepo(t)
	mock := NewMockProvider(MockResponse{Err: errors.New("boom")})
	p := WithLogging(mock, ProviderGemini, repo)

	_, err := p.Generate(WithPurpose(context.Background(), "judge"), Request{})
	require.Error(t, err)

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{Purpose: "judge"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Equal(t, "boom", events[0].ErrorMessage)
}

func TestLogging_NilRepo(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`"ok"`)})
	p := WithLogging(mock, ProviderMock, nil)

	resp, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(resp.Content))
}

func TestNewProvider_MissingKeyIsNotLogged(t *testing.T) {
	repo := openEventRepo(t)
	cfg := DefaultConfig()
	p, err := NewProvider(cfg, staticKey(""), repo)
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.True(t, IsMissingCredential(err))

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	assert.Empty(t, events)
}
