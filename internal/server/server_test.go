package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustech/latch/internal/credential"
	"github.com/sustech/latch/internal/dialog"
	"github.com/sustech/latch/internal/judge"
	"github.com/sustech/latch/internal/levels"
	"github.com/sustech/latch/internal/llm"
	"github.com/sustech/latch/internal/store"
)

type fixture struct {
	mock    *llm.MockProvider
	handler http.Handler
	repo    store.SessionRepo
}

// newFixture builds a server whose provider only sees a key from the
// X-API-Key header.
func newFixture(t *testing.T, responses ...llm.MockResponse) *fixture {
	t.Helper()
	mock := llm.NewMockProvider(responses...)
	p := llm.WithCredentials(mock, credential.ContextSource{})

	cfg := dialog.DefaultConfig()
	cfg.Retry.InitialWait = time.Millisecond
	cfg.Retry.MaxWait = time.Millisecond

	s, err := store.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg := levels.Default()
	srv := New(dialog.NewDriver(p, reg, cfg), judge.NewEvaluator(p, reg, judge.DefaultConfig()), reg, s.SessionRepo())
	return &fixture{mock: mock, handler: srv.Router(), repo: s.SessionRepo()}
}

func (f *fixture) do(t *testing.T, method, path string, body any, key string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func latchBody() TranscriptRequest {
	return TranscriptRequest{Messages: []Message{
		{Role: "model", Content: "Why write else?"},
		{Role: "user", Content: "This creates a latch because there's no else branch"},
	}}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodOptions, "/levels/level-1/reply", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), APIKeyHeader)
}

func TestListLevels(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/levels", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []LevelSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 3)
	assert.Equal(t, "level-1", out[0].ID)
	assert.Equal(t, 3, out[0].GoalCount)
}

func TestGetLevel(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/levels/level-2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "The Time-Traveler", out["title"])
	assert.NotContains(t, out, "system_prompt")
	assert.Len(t, out["goals"], 3)

	rec = f.do(t, http.MethodGet, "/levels/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReply_WithHeaderKey(t *testing.T) {
	f := newFixture(t, llm.MockResponse{Content: json.RawMessage("A latch? Please.")})

	rec := f.do(t, http.MethodPost, "/levels/level-1/reply", latchBody(), "AIza-test")
	require.Equal(t, http.StatusOK, rec.Code)

	var out ReplyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "A latch? Please.", out.Reply)

	require.Equal(t, 1, f.mock.CallCount())
	msgs := f.mock.Calls[0].Messages
	assert.Equal(t, llm.RoleAssistant, msgs[0].Role)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
}

func TestReply_WithoutKey(t *testing.T) {
	f := newFixture(t, llm.MockResponse{Content: json.RawMessage("unreachable")})

	rec := f.do(t, http.MethodPost, "/levels/level-1/reply", latchBody(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out ReplyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, dialog.MissingCredentialMessage, out.Reply)
	assert.Equal(t, 0, f.mock.CallCount())
}

func TestReply_BadRequests(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/levels/level-1/reply", TranscriptRequest{}, "k")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/levels/level-1/reply", TranscriptRequest{Messages: []Message{{Role: "system", Content: "x"}}}, "k")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown role")

	req := httptest.NewRequest(http.MethodPost, "/levels/level-1/reply", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	f.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	assert.Equal(t, 0, f.mock.CallCount())
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t, llm.MockResponse{Content: json.RawMessage("```json\n{\"satisfied_goals\":[\"propose_fix\",\"identify_latch\",\"bogus\"]}\n```")})

	rec := f.do(t, http.MethodPost, "/levels/level-1/evaluate", latchBody(), "AIza-test")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"satisfied_goals":["identify_latch","propose_fix"]}`, rec.Body.String())
}

func TestEvaluate_EmptyTranscript(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/levels/level-1/evaluate", TranscriptRequest{}, "AIza-test")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"satisfied_goals":[]}`, rec.Body.String())
	assert.Equal(t, 0, f.mock.CallCount())

	rec = f.do(t, http.MethodPost, "/levels/level-1/evaluate", TranscriptRequest{Messages: []Message{{Role: "system", Content: "x"}}}, "AIza-test")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluate_UnknownLevel(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/levels/nope/evaluate", latchBody(), "AIza-test")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"satisfied_goals":[]}`, rec.Body.String())
	assert.Equal(t, 0, f.mock.CallCount())
}

func TestSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.repo.CreateSession(ctx, "level-1")
	require.NoError(t, err)
	require.NoError(t, f.repo.AppendMessage(ctx, id, "user", "latch!"))
	require.NoError(t, f.repo.RecordGoals(ctx, id, []string{"identify_latch"}))

	rec := f.do(t, http.MethodGet, "/sessions", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []SessionSummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].MessageCount)
	assert.Equal(t, 1, list[0].GoalCount)

	rec = f.do(t, http.MethodGet, "/sessions/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, []string{"identify_latch"}, sess.Goals)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "latch!", sess.Messages[0].Content)

	rec = f.do(t, http.MethodGet, "/sessions/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/sessions?limit=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
