package validate

import (
	"github.com/goccy/go-json"

	"github.com/polydev-ai/polygate/internal/registry"
	"github.com/polydev-ai/polygate/pkg/types"
)

// ExtractUsage recovers token accounting from a response body, trying the
// family's native usage block first and falling back through alternate
// shapes. A non-empty completion never yields zero tokens; when nothing in
// the body reports usage, the count is estimated from content length.
func ExtractUsage(body []byte, family registry.WireFamily, content string) types.Usage {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return estimateUsage(content)
	}

	if u, ok := openaiUsage(payload); ok {
		return finishUsage(u, content)
	}
	if u, ok := anthropicUsage(payload); ok {
		return finishUsage(u, content)
	}
	if u, ok := googleUsage(payload); ok {
		return finishUsage(u, content)
	}
	if u, ok := topLevelTokenFields(payload); ok {
		return finishUsage(u, content)
	}
	if u, ok := nestedUsageSearch(payload); ok {
		return finishUsage(u, content)
	}
	return estimateUsage(content)
}

func finishUsage(u types.Usage, content string) types.Usage {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	if u.CompletionTokens == 0 && content != "" {
		u.CompletionTokens = estimateTokens(content)
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func estimateUsage(content string) types.Usage {
	if content == "" {
		return types.Usage{}
	}
	n := estimateTokens(content)
	return types.Usage{CompletionTokens: n, TotalTokens: n}
}

// estimateTokens is the coarse 4-chars-per-token floor used when a provider
// reports nothing.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

func openaiUsage(payload map[string]json.RawMessage) (types.Usage, bool) {
	raw, ok := payload["usage"]
	if !ok {
		return types.Usage{}, false
	}
	var u struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return types.Usage{}, false
	}
	if u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0 {
		return types.Usage{}, false
	}
	return types.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}, true
}

func anthropicUsage(payload map[string]json.RawMessage) (types.Usage, bool) {
	raw, ok := payload["usage"]
	if !ok {
		return types.Usage{}, false
	}
	var u struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return types.Usage{}, false
	}
	if u.InputTokens == 0 && u.OutputTokens == 0 {
		return types.Usage{}, false
	}
	return types.Usage{PromptTokens: u.InputTokens, CompletionTokens: u.OutputTokens}, true
}

func googleUsage(payload map[string]json.RawMessage) (types.Usage, bool) {
	raw, ok := payload["usageMetadata"]
	if !ok {
		return types.Usage{}, false
	}
	var u struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return types.Usage{}, false
	}
	if u.PromptTokenCount == 0 && u.CandidatesTokenCount == 0 && u.TotalTokenCount == 0 {
		return types.Usage{}, false
	}
	return types.Usage{PromptTokens: u.PromptTokenCount, CompletionTokens: u.CandidatesTokenCount, TotalTokens: u.TotalTokenCount}, true
}

// topLevelTokenFields covers providers that flatten counts onto the root.
func topLevelTokenFields(payload map[string]json.RawMessage) (types.Usage, bool) {
	var u types.Usage
	found := false
	if raw, ok := payload["prompt_tokens"]; ok && json.Unmarshal(raw, &u.PromptTokens) == nil {
		found = true
	}
	if raw, ok := payload["completion_tokens"]; ok && json.Unmarshal(raw, &u.CompletionTokens) == nil {
		found = true
	}
	if raw, ok := payload["total_tokens"]; ok && json.Unmarshal(raw, &u.TotalTokens) == nil {
		found = true
	}
	return u, found
}

// nestedUsageSearch walks one level of nesting looking for a usage object.
func nestedUsageSearch(payload map[string]json.RawMessage) (types.Usage, bool) {
	for key, raw := range payload {
		if key == "usage" || key == "usageMetadata" {
			continue
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			continue
		}
		if u, ok := openaiUsage(nested); ok {
			return u, true
		}
		if u, ok := anthropicUsage(nested); ok {
			return u, true
		}
		if u, ok := googleUsage(nested); ok {
			return u, true
		}
	}
	return types.Usage{}, false
}
