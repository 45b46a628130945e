package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polydev-ai/polygate/pkg/types"
)

func TestCountTextRatios(t *testing.T) {
	text := strings.Repeat("a", 100)

	tests := []struct {
		model string
		want  int
	}{
		{"gpt-4o", 25},
		{"claude-sonnet-4", 24},
		{"gemini-2.0-flash", 25},
		{"llama-3.1-70b", 22},
		{"mystery-model", 25},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, CountText(text, tt.model))
		})
	}
}

func TestCountTextEmpty(t *testing.T) {
	assert.Equal(t, 0, CountText("", "gpt-4o"))
}

func TestCountMessagesOverhead(t *testing.T) {
	msgs := []types.ChatMessage{
		types.NewTextMessage("user", strings.Repeat("x", 80)),
	}
	// 80 chars + 20 overhead at gpt ratio 0.25.
	assert.Equal(t, 25, CountMessages(msgs, "gpt-4o"))

	// Two empty messages still cost their overhead.
	empty := []types.ChatMessage{
		types.NewTextMessage("user", ""),
		types.NewTextMessage("assistant", ""),
	}
	assert.Equal(t, 10, CountMessages(empty, "gpt-4o"))
}

func TestCountForProviderAdjustment(t *testing.T) {
	msgs := []types.ChatMessage{
		types.NewTextMessage("user", strings.Repeat("x", 980)),
	}
	base := CountMessages(msgs, "claude-sonnet-4")

	anthropic := CountForProvider(msgs, "claude-sonnet-4", "anthropic")
	assert.Greater(t, anthropic, base)

	google := CountForProvider(msgs, "gemini-1.5-pro", "google")
	assert.Less(t, google, CountMessages(msgs, "gemini-1.5-pro"))

	same := CountForProvider(msgs, "gpt-4o", "openai")
	assert.Equal(t, CountMessages(msgs, "gpt-4o"), same)
}

func TestContextWindow(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"claude-sonnet-4", 200000},
		{"gpt-4o-mini", 128000},
		{"gpt-4-turbo", 8192},
		{"gpt-3.5-turbo", 16385},
		{"gemini-2.0-flash", 1000000},
		{"gemini-1.5-pro", 2000000},
		{"gemini-1.5-flash", 1000000},
		{"unknown-model", 4096},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, ContextWindow(tt.model))
		})
	}
}

func TestEstimateContextUsage(t *testing.T) {
	msgs := []types.ChatMessage{
		types.NewTextMessage("user", strings.Repeat("a", 4000)),
	}

	usage := EstimateContextUsage(msgs, nil, "unknown-model", 4000)
	assert.Equal(t, 4096, usage.Window)
	assert.False(t, usage.Fits)

	usage = EstimateContextUsage(msgs, nil, "claude-sonnet-4", 4000)
	assert.True(t, usage.Fits)
}

func TestCountTools(t *testing.T) {
	tools := []types.Tool{{
		Type: "function",
		Function: types.ToolFunction{
			Name:        "get_weather",
			Description: "Look up current weather",
		},
	}}
	assert.Greater(t, CountTools(tools, "gpt-4o"), 0)
	assert.Equal(t, 0, CountTools(nil, "gpt-4o"))
}
