package transform

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/polydev-ai/polygate/internal/registry"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
	"github.com/polydev-ai/polygate/pkg/types"
)

// OpenAITransformer implements the OpenAI-compatible chat completions wire
// format. Most providers in the catalog speak this dialect.
type OpenAITransformer struct{}

// Family returns the wire family identifier.
func (t *OpenAITransformer) Family() registry.WireFamily { return registry.FamilyOpenAI }

// isReasoningModel matches the o-series models with restricted parameters.
func isReasoningModel(model string) bool {
	lower := strings.ToLower(model)
	return strings.HasPrefix(lower, "o1") || strings.HasPrefix(lower, "o3") || strings.HasPrefix(lower, "o4")
}

// BuildRequest serializes the unified request into an OpenAI chat body.
// gpt-5 models only accept temperature 1; o-series models reject temperature
// and system messages outright.
func (t *OpenAITransformer) BuildRequest(ctx context.Context, d *registry.Descriptor, credential string, req *types.ChatRequest) (*http.Request, error) {
	body := *req
	body.Models = nil
	body.Stream = req.Stream

	lower := strings.ToLower(body.Model)
	if strings.HasPrefix(lower, "gpt-5") {
		one := 1.0
		body.Temperature = &one
	}
	if isReasoningModel(body.Model) {
		body.Temperature = nil
		filtered := make([]types.ChatMessage, 0, len(body.Messages))
		for _, m := range body.Messages {
			if m.Role == "system" {
				continue
			}
			filtered = append(filtered, m)
		}
		body.Messages = filtered
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, gwerrors.NewInternalError(d.ID, req.Model, "marshal request: "+err.Error())
	}

	url := strings.TrimRight(d.BaseURL, "/") + "/chat/completions"
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

// ParseResponse decodes a chat.completion body.
func (t *OpenAITransformer) ParseResponse(body []byte, model string) (*types.ChatResponse, error) {
	var resp types.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, gwerrors.NewMalformedResponseError("", model, "decode response: "+err.Error())
	}
	if resp.Model == "" {
		resp.Model = model
	}
	return &resp, nil
}

// ParseStreamChunk handles one chunk of an OpenAI SSE stream.
func (t *OpenAITransformer) ParseStreamChunk(data []byte) (*types.StreamEvent, error) {
	var chunk types.StreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, err
	}
	if len(chunk.Choices) == 0 {
		if chunk.Usage != nil {
			return &types.StreamEvent{Type: types.EventDone, Usage: chunk.Usage}, nil
		}
		return nil, nil
	}

	choice := chunk.Choices[0]
	if len(choice.Delta.ToolCalls) > 0 {
		raw, err := json.Marshal(choice.Delta.ToolCalls[0])
		if err != nil {
			return nil, err
		}
		return &types.StreamEvent{Type: types.EventToolUse, Model: chunk.Model, ToolUse: raw}, nil
	}
	if choice.Delta.Content != "" {
		return &types.StreamEvent{Type: types.EventDelta, Model: chunk.Model, Token: choice.Delta.Content}, nil
	}
	if choice.FinishReason != "" {
		return &types.StreamEvent{Type: types.EventDone, Model: chunk.Model, Usage: chunk.Usage}, nil
	}
	return nil, nil
}

// openaiErrorBody is the error envelope the OpenAI dialect returns.
type openaiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// MapError classifies an upstream error status.
func (t *OpenAITransformer) MapError(d *registry.Descriptor, model string, statusCode int, body []byte) error {
	msg := upstreamMessage(body)
	var parsed openaiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
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
	}
	if statusCode >= 500 {
		return gwerrors.NewUpstreamError(d.ID, model, statusCode, msg)
	}
	return gwerrors.NewUpstreamError(d.ID, model, statusCode, msg)
}

// upstreamMessage trims an error body down to a loggable message.
func upstreamMessage(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		s = s[:max]
	}
	if s == "" {
		s = "upstream error"
	}
	return s
}
