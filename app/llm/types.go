package llm

import (
	"encoding/json"
	"strings"
)

// Result is the outcome of one successful summarization call
type Result struct {
	TopicID      int64
	Summary      string // payload in the deployment's output format
	Model        string
	PromptHash   string
	InputTokens  int
	OutputTokens int
}

// StructuredSummary is the strict JSON output schema
type StructuredSummary struct {
	Headline  string   `json:"headline"`
	Bullets   []string `json:"bullets"`
	Citations []string `json:"citations"`
}

// TokenCounter counts tokens locally from exact request/response strings.
// Counts reported by the inference server are never trusted.
type TokenCounter interface {
	Count(text string) int
}

// Display flattens a stored summary payload for human-facing output.
// Structured JSON payloads become "headline bullet bullet ..."; plain-text
// payloads pass through unchanged.
func Display(payload string) string {
	var structured StructuredSummary
	if err := json.Unmarshal([]byte(payload), &structured); err != nil {
		return payload
	}
	if structured.Headline == "" && len(structured.Bullets) == 0 {
		return payload
	}

	parts := make([]string, 0, len(structured.Bullets)+1)
	if structured.Headline != "" {
		parts = append(parts, structured.Headline)
	}
	for _, bullet := range structured.Bullets {
		if b := strings.TrimSpace(bullet); b != "" {
			parts = append(parts, b)
		}
	}
	return strings.Join(parts, " ")
}
