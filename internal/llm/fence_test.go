package llm

import (
	"encoding/json"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"whitespace", "  {\"a\":1}\n", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"upper fence", "```JSON\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		SatisfiedGoals []string `json:"satisfied_goals"`
	}
	raw := json.RawMessage("```json\n{\"satisfied_goals\":[\"identify_latch\",\"propose_fix\"]}\n```")
	if err := DecodeJSON(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.SatisfiedGoals) != 2 || out.SatisfiedGoals[0] != "identify_latch" {
		t.Fatalf("unexpected goals: %v", out.SatisfiedGoals)
	}

	if err := DecodeJSON(json.RawMessage("not json"), &out); err == nil {
		t.Fatal("expected error for malformed input")
	}
}
