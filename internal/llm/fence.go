package llm

import (
	"encoding/json"
	"strings"
)

// StripCodeFence removes Markdown code-fence markers that models sometimes
// wrap around JSON even when structured output was requested, e.g.
//
//	```json
//	{"satisfied_goals":["identify_latch"]}
//	```
//
// Text without fences is returned trimmed but otherwise unchanged.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// DecodeJSON strips code fences from raw and unmarshals the result into v.
func DecodeJSON(raw json.RawMessage, v any) error {
	return json.Unmarshal([]byte(StripCodeFence(string(raw))), v)
}
