package types

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequestExtraPassthrough(t *testing.T) {
	raw := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"logit_bias":{"50256":-100},"seed":7}`)

	var req ChatRequest
	require.NoError(t, json.Unmarshal(raw, &req))

	assert.Equal(t, "gpt-4o", req.Model)
	require.Len(t, req.Extra, 2)
	assert.Contains(t, req.Extra, "logit_bias")
	assert.Contains(t, req.Extra, "seed")

	out, err := json.Marshal(req)
	require.NoError(t, err)

	var round map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &round))
	assert.Contains(t, round, "seed")
	assert.Contains(t, round, "logit_bias")
}

func TestTargetModels(t *testing.T) {
	tests := []struct {
		name string
		req  ChatRequest
		want []string
	}{
		{"single model", ChatRequest{Model: "gpt-4o"}, []string{"gpt-4o"}},
		{"models list wins", ChatRequest{Model: "gpt-4o", Models: []string{"a", "b"}}, []string{"a", "b"}},
		{"empty", ChatRequest{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.TargetModels())
		})
	}
}

func TestMessageText(t *testing.T) {
	m := NewTextMessage("user", "hello")
	assert.Equal(t, "hello", m.Text())

	parts := ChatMessage{Role: "user", Content: json.RawMessage(`[{"type":"text","text":"a"},{"type":"text","text":"b"}]`)}
	assert.Equal(t, "ab", parts.Text())

	empty := ChatMessage{Role: "user"}
	assert.Equal(t, "", empty.Text())
}

func TestSplitProviderModel(t *testing.T) {
	tests := []struct {
		in            string
		wantProvider  string
		wantModelName string
	}{
		{"openai/gpt-4o", "openai", "gpt-4o"},
		{"gpt-4o", "", "gpt-4o"},
		{"meta-llama/llama-3.1-70b", "meta-llama", "llama-3.1-70b"},
		{"", "", ""},
	}

	for _, tt := range tests {
		provider, model := SplitProviderModel(tt.in)
		assert.Equal(t, tt.wantProvider, provider, tt.in)
		assert.Equal(t, tt.wantModelName, model, tt.in)
	}
}
