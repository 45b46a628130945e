// Package tokencount estimates token usage without provider tokenizers.
// Counts are heuristic character ratios; callers treat them as advisory
// input for rate limiting and context-window checks, never for billing
// reconciliation.
package tokencount

import (
	"math"
	"strings"

	"github.com/goccy/go-json"

	"github.com/polydev-ai/polygate/pkg/types"
)

// Characters-per-token ratios by model family.
var tokenRatios = map[string]float64{
	"gpt":    0.25,
	"claude": 0.24,
	"gemini": 0.25,
	"llama":  0.22,
}

const (
	defaultRatio = 0.25

	// Fixed per-message character overhead covering role tags and separators.
	messageOverheadChars = 20
)

// Provider-level adjustments applied after the base estimate.
var providerAdjust = map[string]float64{
	"anthropic": 1.05,
	"google":    0.95,
	"gemini":    0.95,
}

// Context window sizes. Ordered so longer prefixes are checked first.
var contextWindows = []struct {
	prefix string
	window int
}{
	{"claude", 200000},
	{"gpt-4o", 128000},
	{"gpt-4", 8192},
	{"gpt-3.5", 16385},
	{"gemini-2.0", 1000000},
	{"gemini-1.5-pro", 2000000},
	{"gemini", 1000000},
}

const fallbackContextWindow = 4096

// ratioFor picks the character ratio for a model name.
func ratioFor(model string) float64 {
	lower := strings.ToLower(model)
	for family, ratio := range tokenRatios {
		if strings.Contains(lower, family) {
			return ratio
		}
	}
	return defaultRatio
}

// CountText estimates tokens for a raw text string under the given model.
func CountText(text, model string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len(text)) * ratioFor(model)))
}

// CountMessages estimates tokens for a conversation. Each message carries a
// fixed character overhead before the ratio is applied.
func CountMessages(messages []types.ChatMessage, model string) int {
	ratio := ratioFor(model)
	chars := 0
	for i := range messages {
		chars += len(messages[i].Text()) + messageOverheadChars
	}
	return int(math.Ceil(float64(chars) * ratio))
}

// CountTools estimates tokens consumed by tool schemas via their serialized
// JSON size.
func CountTools(tools []types.Tool, model string) int {
	if len(tools) == 0 {
		return 0
	}
	raw, err := json.Marshal(tools)
	if err != nil {
		return 0
	}
	return CountText(string(raw), model)
}

// CountForProvider applies the provider-level adjustment on top of the
// message estimate.
func CountForProvider(messages []types.ChatMessage, model, provider string) int {
	base := CountMessages(messages, model)
	if adj, ok := providerAdjust[strings.ToLower(provider)]; ok {
		return int(math.Ceil(float64(base) * adj))
	}
	return base
}

// ContextWindow returns the context window for a model, falling back to a
// conservative default for unknown models.
func ContextWindow(model string) int {
	lower := strings.ToLower(model)

	// gemini-1.5-pro must win over the generic gemini entry.
	best := 0
	bestLen := -1
	for _, cw := range contextWindows {
		if strings.HasPrefix(lower, cw.prefix) && len(cw.prefix) > bestLen {
			best = cw.window
			bestLen = len(cw.prefix)
		}
	}
	if bestLen >= 0 {
		return best
	}
	return fallbackContextWindow
}

// ContextUsage describes how much of a model's window a request consumes.
type ContextUsage struct {
	Used   int
	Window int
	Fits   bool
}

// EstimateContextUsage reports the estimated prompt size against the model's
// window, reserving room for the requested completion.
func EstimateContextUsage(messages []types.ChatMessage, tools []types.Tool, model string, maxTokens int) ContextUsage {
	used := CountMessages(messages, model) + CountTools(tools, model)
	window := ContextWindow(model)
	return ContextUsage{
		Used:   used,
		Window: window,
		Fits:   used+maxTokens <= window,
	}
}
