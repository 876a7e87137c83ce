package summarize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Draft is the structured output requested from the model. Summary,
// key_contributions, and main_results are required; the rest may be empty.
type Draft struct {
	Summary          string        `json:"summary"`
	KeyContributions []string      `json:"key_contributions"`
	Methodology      string        `json:"methodology"`
	MainResults      []string      `json:"main_results"`
	Limitations      string        `json:"limitations"`
	RelatedWork      []RelatedWork `json:"related_work"`
}

// RelatedWork is one related-paper entry in a draft.
type RelatedWork struct {
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Year       int      `json:"year"`
	WhyRelated string   `json:"why_related"`
}

// parseDraft extracts and validates a Draft from a raw model response.
func parseDraft(response string) (*Draft, error) {
	jsonStr := extractJSON(response)

	var d Draft
	if err := json.Unmarshal([]byte(jsonStr), &d); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if strings.TrimSpace(d.Summary) == "" {
		return nil, fmt.Errorf("missing field \"summary\"")
	}
	if len(d.KeyContributions) == 0 {
		return nil, fmt.Errorf("missing field \"key_contributions\"")
	}
	if len(d.MainResults) == 0 {
		return nil, fmt.Errorf("missing field \"main_results\"")
	}

	return &d, nil
}

// extractJSON pulls a JSON object out of a response that may carry prose or
// markdown code fences around it.
func extractJSON(response string) string {
	trimmed := strings.TrimSpace(response)

	// Pure JSON: take the outermost balanced object.
	if strings.HasPrefix(trimmed, "{") {
		depth := 0
		for i, c := range trimmed {
			switch c {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return trimmed[:i+1]
				}
			}
		}
	}

	// ```json fenced block.
	if start := strings.Index(trimmed, "```json"); start != -1 {
		rest := trimmed[start+7:]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
	}

	// Bare ``` fence, possibly with a language line.
	if start := strings.Index(trimmed, "```"); start != -1 {
		rest := trimmed[start+3:]
		if end := strings.Index(rest, "```"); end != -1 {
			content := strings.TrimSpace(rest[:end])
			if nl := strings.Index(content, "\n"); nl != -1 {
				afterLang := strings.TrimSpace(content[nl+1:])
				if strings.HasPrefix(afterLang, "{") {
					return afterLang
				}
			}
			return content
		}
	}

	return trimmed
}
