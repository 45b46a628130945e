package transform

import (
	"context"
	"io"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polydev-ai/polygate/internal/registry"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
	"github.com/polydev-ai/polygate/pkg/types"
)

func anthropicDescriptor() *registry.Descriptor {
	return &registry.Descriptor{
		ID:           "anthropic",
		BaseURL:      "https://api.anthropic.com",
		AuthType:     registry.AuthAPIKey,
		WireFamily:   registry.FamilyAnthropic,
		APIKeyHeader: "x-api-key",
		ExtraHeaders: map[string]string{"anthropic-version": "2023-06-01"},
	}
}

func TestAnthropicBuildRequestLiftsSystem(t *testing.T) {
	tr := For(registry.FamilyAnthropic)
	req := &types.ChatRequest{
		Model: "claude-sonnet-4-20250514",
		Messages: []types.ChatMessage{
			types.NewTextMessage("system", "be brief"),
			types.NewTextMessage("user", "hi"),
			types.NewTextMessage("assistant", "hello"),
			types.NewTextMessage("user", "bye"),
		},
	}

	httpReq, err := tr.BuildRequest(context.Background(), anthropicDescriptor(), "sk-ant", req)
	require.NoError(t, err)

	assert.Equal(t, "https://api.anthropic.com/v1/messages", httpReq.URL.String())
	assert.Equal(t, "sk-ant", httpReq.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", httpReq.Header.Get("anthropic-version"))

	raw, _ := io.ReadAll(httpReq.Body)
	var body anthropicRequest
	require.NoError(t, json.Unmarshal(raw, &body))

	assert.Equal(t, "be brief", body.System)
	require.Len(t, body.Messages, 3)
	assert.Equal(t, "user", body.Messages[0].Role)
	assert.Equal(t, "assistant", body.Messages[1].Role)
	assert.Equal(t, anthropicDefaultMaxTokens, body.MaxTokens)
}

func TestAnthropicBuildRequestTools(t *testing.T) {
	tr := For(registry.FamilyAnthropic)
	req := &types.ChatRequest{
		Model:    "claude-sonnet-4-20250514",
		Messages: []types.ChatMessage{types.NewTextMessage("user", "weather?")},
		Tools: []types.Tool{{
			Type: "function",
			Function: types.ToolFunction{
				Name:       "get_weather",
				Parameters: json.RawMessage(`{"type":"object"}`),
			},
		}},
	}

	httpReq, err := tr.BuildRequest(context.Background(), anthropicDescriptor(), "k", req)
	require.NoError(t, err)

	raw, _ := io.ReadAll(httpReq.Body)
	var body anthropicRequest
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Len(t, body.Tools, 1)
	assert.Equal(t, "get_weather", body.Tools[0].Name)
	assert.JSONEq(t, `{"type":"object"}`, string(body.Tools[0].InputSchema))
}

func TestAnthropicParseResponse(t *testing.T) {
	tr := For(registry.FamilyAnthropic)
	raw := []byte(`{"id":"msg_01","type":"message","model":"claude-sonnet-4-20250514","content":[{"type":"text","text":"hello"}],"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":8}}`)

	resp, err := tr.ParseResponse(raw, "claude-sonnet-4-20250514")
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content())
	assert.Equal(t, "stop", resp.FinishReason())
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 8, resp.Usage.CompletionTokens)
	assert.Equal(t, 20, resp.Usage.TotalTokens)
}

func TestAnthropicParseResponseToolUse(t *testing.T) {
	tr := For(registry.FamilyAnthropic)
	raw := []byte(`{"id":"msg_02","type":"message","content":[{"type":"tool_use","id":"tu_1","name":"get_weather","input":{"city":"Paris"}}],"stop_reason":"tool_use","usage":{"input_tokens":5,"output_tokens":3}}`)

	resp, err := tr.ParseResponse(raw, "claude-sonnet-4-20250514")
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", resp.FinishReason())
	require.Len(t, resp.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "get_weather", resp.Choices[0].Message.ToolCalls[0].Function.Name)
}

func TestAnthropicParseResponseErrorBody(t *testing.T) {
	tr := For(registry.FamilyAnthropic)
	raw := []byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)

	_, err := tr.ParseResponse(raw, "claude-sonnet-4-20250514")
	require.Error(t, err)
	assert.Equal(t, gwerrors.TypeUpstream, gwerrors.AsGatewayError(err).Type)
}

func TestAnthropicParseStreamChunk(t *testing.T) {
	tr := For(registry.FamilyAnthropic)

	ev, err := tr.ParseStreamChunk([]byte(`{"type":"content_block_delta","delta":{"type":"text_delta","text":"tok"}}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "tok", ev.Token)

	ev, err = tr.ParseStreamChunk([]byte(`{"type":"message_stop"}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, types.EventDone, ev.Type)

	ev, err = tr.ParseStreamChunk([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Nil(t, ev)

	ev, err = tr.ParseStreamChunk([]byte(`{"type":"message_start","message":{"model":"claude-sonnet-4","usage":{"input_tokens":9}}}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.NotNil(t, ev.Usage)
	assert.Equal(t, 9, ev.Usage.PromptTokens)
	assert.Empty(t, ev.Token)

	ev, err = tr.ParseStreamChunk([]byte(`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":42}}`))
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.NotNil(t, ev.Usage)
	assert.Equal(t, 42, ev.Usage.CompletionTokens)
}

func TestAnthropicMapError(t *testing.T) {
	tr := For(registry.FamilyAnthropic)
	d := anthropicDescriptor()

	err := tr.MapError(d, "claude-sonnet-4", 401, []byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	ge := gwerrors.AsGatewayError(err)
	assert.Equal(t, gwerrors.TypeAuthentication, ge.Type)
	assert.Equal(t, "invalid x-api-key", ge.Message)

	err = tr.MapError(d, "claude-sonnet-4", 529, []byte(`overloaded`))
	assert.Equal(t, gwerrors.TypeRateLimit, gwerrors.AsGatewayError(err).Type)
}
