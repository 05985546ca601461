package judge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustech/latch/internal/levels"
	"github.com/sustech/latch/internal/llm"
)

// geminiJudge runs the evaluator against a Gemini endpoint that answers
// every request with text and finishReason.
func geminiJudge(t *testing.T, text, finishReason string) (*Evaluator, *[]string) {
	t.Helper()
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": text}},
				},
				"finishReason": finishReason,
			}},
		})
	}))
	t.Cleanup(server.Close)

	p := llm.NewGeminiProvider(llm.GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-flash",
		BaseURL: server.URL + "/",
	}, 5*time.Second)
	return NewEvaluator(p, levels.Default(), DefaultConfig()), &bodies
}

func TestEvaluate_Gemini(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		finish string
		want   GoalSet
	}{
		{
			name:   "extra properties are ignored",
			text:   `{"satisfied_goals":["identify_latch"],"reasoning":"student said latch"}`,
			finish: "STOP",
			want:   NewGoalSet("identify_latch"),
		},
		{
			name:   "fenced verdict",
			text:   "```json\n{\"satisfied_goals\":[\"identify_latch\",\"propose_fix\"]}\n```",
			finish: "STOP",
			want:   NewGoalSet("identify_latch", "propose_fix"),
		},
		{
			name:   "missing list",
			text:   `{"reasoning":"nothing yet"}`,
			finish: "STOP",
			want:   GoalSet{},
		},
		{
			name:   "non-string item",
			text:   `{"satisfied_goals":[1]}`,
			finish: "STOP",
			want:   GoalSet{},
		},
		{
			name:   "truncated before any text",
			text:   "",
			finish: "MAX_TOKENS",
			want:   GoalSet{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, bodies := geminiJudge(t, tt.text, tt.finish)

			got := e.Evaluate(context.Background(), "level-1", latchTranscript())

			assert.Equal(t, tt.want, got)
			require.Len(t, *bodies, 1, "the judge never retries")
		})
	}
}

func TestEvaluate_GeminiRequestHasNoOutputCap(t *testing.T) {
	e, bodies := geminiJudge(t, `{"satisfied_goals":[]}`, "STOP")

	e.Evaluate(context.Background(), "level-1", latchTranscript())

	require.Len(t, *bodies, 1)
	assert.NotContains(t, (*bodies)[0], "maxOutputTokens")
	assert.Contains(t, (*bodies)[0], "satisfied_goals")
}
