package transform

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/polydev-ai/polygate/internal/registry"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
	"github.com/polydev-ai/polygate/pkg/types"
)

// AnthropicTransformer implements the Anthropic messages wire format.
type AnthropicTransformer struct{}

// Family returns the wire family identifier.
func (t *AnthropicTransformer) Family() registry.WireFamily { return registry.FamilyAnthropic }

const anthropicDefaultMaxTokens = 4096

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	Stop        []string           `json:"stop_sequences,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

// BuildRequest lifts system messages to the top-level system field and
// serializes the rest as alternating user/assistant turns.
func (t *AnthropicTransformer) BuildRequest(ctx context.Context, d *registry.Descriptor, credential string, req *types.ChatRequest) (*http.Request, error) {
	body := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
		Stop:        req.Stop,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = anthropicDefaultMaxTokens
	}

	var system []string
	for i := range req.Messages {
		m := &req.Messages[i]
		if m.Role == "system" {
			system = append(system, m.Text())
			continue
		}
		role := m.Role
		if role != "user" && role != "assistant" {
			role = "user"
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: role, Content: m.Text()})
	}
	body.System = strings.Join(system, "\n\n")

	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, anthropicTool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: tool.Function.Parameters,
		})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, gwerrors.NewInternalError(d.ID, req.Model, "marshal request: "+err.Error())
	}

	url := strings.TrimRight(d.BaseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, gwerrors.NewInternalError(d.ID, req.Model, "build request: "+err.Error())
	}

	applyAuth(httpReq, d, credential)
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	return httpReq, nil
}

type anthropicContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func mapAnthropicStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return reason
	}
}

// ParseResponse converts a messages response into the unified shape.
func (t *AnthropicTransformer) ParseResponse(body []byte, model string) (*types.ChatResponse, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, gwerrors.NewMalformedResponseError("anthropic", model, "decode response: "+err.Error())
	}
	if resp.Type == "error" && resp.Error != nil {
		return nil, gwerrors.NewUpstreamError("anthropic", model, http.StatusBadGateway, resp.Error.Message)
	}

	msg := types.ChatMessage{Role: "assistant"}
	var text string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: types.ToolCallFunction{
					Name:      block.Name,
					Arguments: string(block.Input),
				},
			})
		}
	}
	content, _ := json.Marshal(text)
	msg.Content = content

	respModel := resp.Model
	if respModel == "" {
		respModel = model
	}

	return &types.ChatResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   respModel,
		Choices: []types.Choice{{
			Message:      msg,
			FinishReason: mapAnthropicStopReason(resp.StopReason),
		}},
		Usage: &types.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	ContentBlock *anthropicContentBlock `json:"content_block"`
	Message      *struct {
		Model string `json:"model"`
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ParseStreamChunk handles one Anthropic stream event.
func (t *AnthropicTransformer) ParseStreamChunk(data []byte) (*types.StreamEvent, error) {
	var ev anthropicStreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}

	switch ev.Type {
	case "content_block_delta":
		if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
			return &types.StreamEvent{Type: types.EventDelta, Token: ev.Delta.Text}, nil
		}
		return nil, nil
	case "content_block_start":
		if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
			raw, err := json.Marshal(ev.ContentBlock)
			if err != nil {
				return nil, err
			}
			return &types.StreamEvent{Type: types.EventToolUse, ToolUse: raw}, nil
		}
		return nil, nil
	case "message_start":
		if ev.Message != nil && ev.Message.Usage.InputTokens > 0 {
			return &types.StreamEvent{
				Type:  types.EventDelta,
				Usage: &types.Usage{PromptTokens: ev.Message.Usage.InputTokens},
			}, nil
		}
		return nil, nil
	case "message_delta":
		if ev.Usage != nil {
			// output_tokens is the running total, not an increment.
			return &types.StreamEvent{
				Type:  types.EventDelta,
				Usage: &types.Usage{CompletionTokens: ev.Usage.OutputTokens},
			}, nil
		}
		return nil, nil
	case "message_stop":
		return &types.StreamEvent{Type: types.EventDone}, nil
	default:
		// ping and unknown event types carry no client data.
		return nil, nil
	}
}

// MapError classifies an upstream error status.
func (t *AnthropicTransformer) MapError(d *registry.Descriptor, model string, statusCode int, body []byte) error {
	msg := upstreamMessage(body)
	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return gwerrors.NewAuthenticationError(d.ID, model, msg)
	case http.StatusTooManyRequests:
		return gwerrors.NewRateLimitError(d.ID, model, msg)
	case http.StatusNotFound:
		return gwerrors.NewNotFoundError(d.ID, model, msg)
	case http.StatusBadRequest:
		return gwerrors.NewInvalidRequestError(d.ID, model, msg)
	case 529:
		// Anthropic's overloaded status behaves like a rate limit.
		return gwerrors.NewRateLimitError(d.ID, model, msg)
	}
	return gwerrors.NewUpstreamError(d.ID, model, statusCode, msg)
}
