package judge

import "github.com/sustech/latch/internal/llm"

// JudgeSchema defines the JSON schema for goal judgement responses. Extra
// properties are allowed and a missing list decodes as no goals.
var JudgeSchema = &llm.Schema{
	Name:        "goal-judgement",
	Description: "IDs of the goals the student has clearly satisfied",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"satisfied_goals": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Goal IDs from the list that the student clearly satisfied; empty if none",
			},
		},
	},
}
