package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGeminiModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gemini-flash", "gemini-3-flash-preview"},
		{"gemini-pro", "gemini-3-pro-preview"},
		{"gemini-lite", "gemini-2.5-flash-lite"},
		{"gemini-2.5-flash", "gemini-2.5-flash"}, // Pass-through
	}
	for _, tt := range tests {
		got := resolveModel(tt.input, geminiModels)
		if got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func newTestGeminiProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewGeminiProvider(GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-flash",
		BaseURL: server.URL + "/",
	}, 5*time.Second)
}

func TestGeminiProvider_HappyPath(t *testing.T) {
	var gotPath string
	handler := func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": "Why write else? The synthesizer will optimize it."}},
				},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{
				"promptTokenCount":     42,
				"candidatesTokenCount": 12,
				"totalTokenCount":      54,
			},
		})
	}

	p := newTestGeminiProvider(t, handler)
	resp, err := p.Generate(context.Background(), Request{
		System: "You are a senior C++ engineer.",
		Messages: []Message{
			{Role: RoleAssistant, Content: "Let's look at this code."},
			{Role: RoleUser, Content: "This creates a latch."},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotPath, "gemini-3-flash-preview") {
		t.Fatalf("request path %q does not name the resolved model", gotPath)
	}
	if string(resp.Content) != "Why write else? The synthesizer will optimize it." {
		t.Fatalf("unexpected content: %s", resp.Content)
	}
	if resp.Usage.InputTokens != 42 || resp.Usage.OutputTokens != 12 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
	if resp.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp.StopReason)
	}
}

func TestGeminiProvider_InvalidKey(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    400,
				"message": "API key not valid. Please pass a valid API key.",
				"status":  "INVALID_ARGUMENT",
			},
		})
	}

	p := newTestGeminiProvider(t, handler)
	_, err := p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if !IsMissingCredential(err) {
		t.Fatalf("expected missing credential error, got: %T (%v)", err, err)
	}
}

func TestGeminiProvider_NoKey(t *testing.T) {
	p := NewGeminiProvider(GeminiConfig{Model: "gemini-flash"}, time.Second)
	_, err := p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if !IsMissingCredential(err) {
		t.Fatalf("expected missing credential error, got %v", err)
	}
}

func TestBuildGeminiContents(t *testing.T) {
	contents := buildGeminiContents([]Message{
		{Role: RoleAssistant, Content: "opening"},
		{Role: RoleUser, Content: "answer"},
	})
	if len(contents) != 2 {
		t.Fatalf("got %d contents, want 2", len(contents))
	}
	if contents[0].Role != "model" || contents[1].Role != "user" {
		t.Fatalf("roles = %q, %q; want model, user", contents[0].Role, contents[1].Role)
	}
	if contents[1].Parts[0].Text != "answer" {
		t.Fatalf("unexpected text: %q", contents[1].Parts[0].Text)
	}
}

func TestBuildGeminiSchema(t *testing.T) {
	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"age":   map[string]any{"type": "integer"},
			"grade": map[string]any{"type": "string", "enum": []any{"A", "B", "C"}},
			"scores": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer"},
			},
		},
		"required": []any{"name", "age"},
	}

	schema := buildGeminiSchema(def)

	if schema.Type != "OBJECT" {
		t.Fatalf("expected OBJECT type, got %s", schema.Type)
	}
	if len(schema.Properties) != 4 {
		t.Fatalf("expected 4 properties, got %d", len(schema.Properties))
	}
	if schema.Properties["name"].Type != "STRING" {
		t.Fatalf("expected STRING for name, got %s", schema.Properties["name"].Type)
	}
	if schema.Properties["age"].Type != "INTEGER" {
		t.Fatalf("expected INTEGER for age, got %s", schema.Properties["age"].Type)
	}
	if len(schema.Properties["grade"].Enum) != 3 {
		t.Fatalf("expected 3 enum values, got %d", len(schema.Properties["grade"].Enum))
	}
	if schema.Properties["scores"].Type != "ARRAY" {
		t.Fatalf("expected ARRAY for scores, got %s", schema.Properties["scores"].Type)
	}
	if schema.Properties["scores"].Items.Type != "INTEGER" {
		t.Fatalf("expected INTEGER for scores items, got %s", schema.Properties["scores"].Items.Type)
	}
	if len(schema.Required) != 2 {
		t.Fatalf("expected 2 required fields, got %d", len(schema.Required))
	}
}

func geminiTextHandler(text, finishReason string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
	}
}

func TestGeminiProvider_MaxTokens(t *testing.T) {
	t.Run("partial reply is kept", func(t *testing.T) {
		p := newTestGeminiProvider(t, geminiTextHandler("Why write else? The synth", "MAX_TOKENS"))
		resp, err := p.Generate(context.Background(), Request{
			Messages: []Message{{Role: RoleUser, Content: "latch"}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StopReason != "max_tokens" {
			t.Fatalf("stop reason = %q, want max_tokens", resp.StopReason)
		}
	})

	t.Run("empty reply", func(t *testing.T) {
		p := newTestGeminiProvider(t, geminiTextHandler("", "MAX_TOKENS"))
		_, err := p.Generate(context.Background(), Request{
			Messages: []Message{{Role: RoleUser, Content: "latch"}},
		})
		var maxTok *ErrMaxTokensExceeded
		if !errors.As(err, &maxTok) {
			t.Fatalf("expected ErrMaxTokensExceeded, got: %v", err)
		}
	})

	t.Run("structured output", func(t *testing.T) {
		p := newTestGeminiProvider(t, geminiTextHandler(`{"satisfied_goals":["identify_la`, "MAX_TOKENS"))
		_, err := p.Generate(context.Background(), Request{
			Messages: []Message{{Role: RoleUser, Content: "latch"}},
			Schema:   goalListSchema(),
		})
		var maxTok *ErrMaxTokensExceeded
		if !errors.As(err, &maxTok) {
			t.Fatalf("expected ErrMaxTokensExceeded, got: %v", err)
		}
	})
}

func TestGeminiProvider_ListModels(t *testing.T) {
	var gotKey string
	handler := func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Goog-Api-Key")
		if !strings.HasSuffix(r.URL.Path, "/models") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "models/gemini-3-flash-preview", "displayName": "Gemini 3 Flash Preview", "inputTokenLimit": 1048576, "outputTokenLimit": 65536},
				{"name": "models/gemini-2.5-flash-lite", "displayName": "Gemini 2.5 Flash-Lite"},
			},
		})
	}

	p := newTestGeminiProvider(t, handler)
	models, err := p.ListModels(WithAPIKey(context.Background(), "AIza-listing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "AIza-listing" {
		t.Errorf("api key header = %q, want the context key", gotKey)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if models[0].Name != "models/gemini-3-flash-preview" || models[0].OutputTokenLimit != 65536 {
		t.Errorf("first model = %+v", models[0])
	}
}

func TestGeminiProvider_ListModelsNoKey(t *testing.T) {
	p := NewGeminiProvider(GeminiConfig{Model: "gemini-flash"}, time.Second)
	_, err := p.ListModels(context.Background())
	if !IsMissingCredential(err) {
		t.Fatalf("expected missing credential, got: %v", err)
	}
}
