package transform

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polydev-ai/polygate/internal/registry"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
	"github.com/polydev-ai/polygate/pkg/types"
)

func openaiDescriptor() *registry.Descriptor {
	return &registry.Descriptor{
		ID:           "openai",
		BaseURL:      "https://api.openai.com/v1",
		AuthType:     registry.AuthAPIKey,
		WireFamily:   registry.FamilyOpenAI,
		APIKeyHeader: "Authorization",
		APIKeyPrefix: "Bearer ",
	}
}

func decodeBody(t *testing.T, req *http.Request) map[string]json.RawMessage {
	t.Helper()
	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestOpenAIBuildRequest(t *testing.T) {
	tr := For(registry.FamilyOpenAI)
	temp := 0.7
	req := &types.ChatRequest{
		Model:       "gpt-4o",
		Messages:    []types.ChatMessage{types.NewTextMessage("user", "hi")},
		Temperature: &temp,
		MaxTokens:   256,
	}

	httpReq, err := tr.BuildRequest(context.Background(), openaiDescriptor(), "sk-test", req)
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1/chat/completions", httpReq.URL.String())
	assert.Equal(t, "Bearer sk-test", httpReq.Header.Get("Authorization"))
	assert.Equal(t, "application/json", httpReq.Header.Get("Content-Type"))

	body := decodeBody(t, httpReq)
	assert.JSONEq(t, `"gpt-4o"`, string(body["model"]))
	assert.JSONEq(t, `0.7`, string(body["temperature"]))
	assert.NotContains(t, body, "models")
}

func TestOpenAIBuildRequestGPT5ForcesTemperature(t *testing.T) {
	tr := For(registry.FamilyOpenAI)
	temp := 0.2
	req := &types.ChatRequest{
		Model:       "gpt-5-2025-08-07",
		Messages:    []types.ChatMessage{types.NewTextMessage("user", "hi")},
		Temperature: &temp,
	}

	httpReq, err := tr.BuildRequest(context.Background(), openaiDescriptor(), "sk", req)
	require.NoError(t, err)

	body := decodeBody(t, httpReq)
	assert.JSONEq(t, `1`, string(body["temperature"]))
}

func TestOpenAIBuildRequestReasoningModelRestrictions(t *testing.T) {
	tr := For(registry.FamilyOpenAI)
	temp := 0.5
	req := &types.ChatRequest{
		Model: "o1-preview",
		Messages: []types.ChatMessage{
			types.NewTextMessage("system", "be brief"),
			types.NewTextMessage("user", "hi"),
		},
		Temperature: &temp,
	}

	httpReq, err := tr.BuildRequest(context.Background(), openaiDescriptor(), "sk", req)
	require.NoError(t, err)

	body := decodeBody(t, httpReq)
	assert.NotContains(t, body, "temperature")

	var msgs []types.ChatMessage
	require.NoError(t, json.Unmarshal(body["messages"], &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}

func TestOpenAIParseResponse(t *testing.T) {
	tr := For(registry.FamilyOpenAI)
	raw := []byte(`{"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`)

	resp, err := tr.ParseResponse(raw, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content())
	assert.Equal(t, "stop", resp.FinishReason())
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestOpenAIParseStreamChunk(t *testing.T) {
	tr := For(registry.FamilyOpenAI)

	ev, err := tr.ParseStreamChunk([]byte(`{"model":"gpt-4o","choices":[{"delta":{"content":"tok"}}]}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, types.EventDelta, ev.Type)
	assert.Equal(t, "tok", ev.Token)

	ev, err = tr.ParseStreamChunk([]byte(`{"choices":[{"delta":{},"finish_reason":"stop"}]}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, types.EventDone, ev.Type)

	ev, err = tr.ParseStreamChunk([]byte(`{"choices":[{"delta":{"tool_calls":[{"id":"c1","type":"function","function":{"name":"f","arguments":"{}"}}]}}]}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, types.EventToolUse, ev.Type)

	ev, err = tr.ParseStreamChunk([]byte(`{"choices":[{"delta":{}}]}`))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestOpenAIMapError(t *testing.T) {
	tr := For(registry.FamilyOpenAI)
	d := openaiDescriptor()

	err := tr.MapError(d, "gpt-4o", 401, []byte(`{"error":{"message":"Incorrect API key"}}`))
	ge := gwerrors.AsGatewayError(err)
	assert.Equal(t, gwerrors.TypeAuthentication, ge.Type)
	assert.Equal(t, "Incorrect API key", ge.Message)

	err = tr.MapError(d, "gpt-4o", 429, []byte(`rate limited`))
	assert.Equal(t, gwerrors.TypeRateLimit, gwerrors.AsGatewayError(err).Type)

	err = tr.MapError(d, "gpt-4o", 503, nil)
	ge = gwerrors.AsGatewayError(err)
	assert.Equal(t, gwerrors.TypeUpstream, ge.Type)
	assert.True(t, ge.Retryable)
}
