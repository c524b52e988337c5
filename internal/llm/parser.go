package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FactResponse is a single fact returned by the fact-extraction prompt.
type FactResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	// SourceIndexes are 0-based positions into the memory list that was
	// sent in the prompt. The consolidator maps them back to memory ids.
	SourceIndexes []int `json:"source_indexes"`
}

// FactExtractionResponse is the complete fact-extraction payload.
type FactExtractionResponse struct {
	Facts []FactResponse `json:"facts"`
}

// extractJSON extracts the first valid JSON object from a string that may
// contain extra text. LLMs add explanations and markdown fences around the
// JSON despite instructions.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	// Walk the braces to find the matching close, ignoring strings.
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}

// ParseFactResponse parses a fact-extraction completion. Facts with empty
// text or out-of-range confidence are dropped rather than failing the whole
// response.
func ParseFactResponse(raw string) ([]FactResponse, error) {
	cleaned := extractJSON(raw)

	var resp FactExtractionResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("llm: failed to parse fact response: %w", err)
	}

	var out []FactResponse
	for _, f := range resp.Facts {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		if f.Confidence < 0 || f.Confidence > 1 {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
