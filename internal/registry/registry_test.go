package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinDescriptors(t *testing.T) {
	r := New()

	anthropic, ok := r.Get("anthropic")
	require.True(t, ok)
	assert.Equal(t, "https://api.anthropic.com", anthropic.BaseURL)
	assert.Equal(t, FamilyAnthropic, anthropic.WireFamily)
	assert.Equal(t, "x-api-key", anthropic.APIKeyHeader)
	assert.Equal(t, "2023-06-01", anthropic.ExtraHeaders["anthropic-version"])
	assert.Equal(t, 1000, anthropic.Limits.RequestsPerMinute)
	assert.Equal(t, 80000, anthropic.Limits.TokensPerMinute)

	gemini, ok := r.Get("gemini")
	require.True(t, ok)
	assert.Equal(t, FamilyGoogle, gemini.WireFamily)
	assert.Equal(t, "x-goog-api-key", gemini.APIKeyHeader)

	groq, ok := r.Get("groq")
	require.True(t, ok)
	assert.Equal(t, 30, groq.Limits.RequestsPerMinute)
	assert.Equal(t, 14400, groq.Limits.TokensPerMinute)

	ollama, ok := r.Get("ollama")
	require.True(t, ok)
	assert.Equal(t, AuthNone, ollama.AuthType)

	cli, ok := r.Get("claude-code")
	require.True(t, ok)
	assert.True(t, cli.IsCLI())
	assert.Equal(t, "claude", cli.CLICommand())

	vertex, ok := r.Get("vertex")
	require.True(t, ok)
	assert.Equal(t, AuthOAuth, vertex.AuthType)
}

func TestDetermineProvider(t *testing.T) {
	r := New()

	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o", "openai"},
		{"o1-preview", "openai"},
		{"o3-mini", "openai"},
		{"claude-sonnet-4-20250514", "anthropic"},
		{"gemini-2.0-flash-exp", "gemini"},
		{"grok-3", "xai"},
		{"deepseek-chat", "deepseek"},
		{"mistral-large-latest", "mistral"},
		{"mixtral-8x22b", "mistral"},
		{"sonar-pro", "perplexity"},
		{"qwen-2.5-coder", "cerebras"},
		{"meta-llama/llama-3.1-70b", "openrouter"},
		{"llama-3.1-70b-versatile", "openrouter"},
		{"totally-unknown-model", "openai"},
		{"openrouter/some/nested/id", "openrouter"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			d, ok := r.DetermineProvider(tt.model)
			require.True(t, ok)
			assert.Equal(t, tt.want, d.ID)
		})
	}
}

func TestDetermineProviderEmpty(t *testing.T) {
	r := New()
	_, ok := r.DetermineProvider("")
	assert.False(t, ok)
}

func TestRegisterOverride(t *testing.T) {
	r := NewEmpty()
	require.NoError(t, r.Register(Descriptor{ID: "custom", BaseURL: "http://internal:9000/v1"}))

	d, ok := r.Get("custom")
	require.True(t, ok)
	assert.Equal(t, FamilyOpenAI, d.WireFamily)

	assert.Error(t, r.Register(Descriptor{}))
}

func TestDeregister(t *testing.T) {
	r := New()
	_, ok := r.Get("anthropic")
	require.True(t, ok)

	r.Deregister("anthropic")
	_, ok = r.Get("anthropic")
	assert.False(t, ok)

	// Unknown ids are a no-op.
	r.Deregister("never-registered")
}

func TestListOrdered(t *testing.T) {
	r := New()
	list := r.List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}
