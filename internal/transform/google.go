package transform

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/polydev-ai/polygate/internal/registry"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
	"github.com/polydev-ai/polygate/pkg/types"
)

// GoogleTransformer implements the Gemini generateContent wire format.
type GoogleTransformer struct{}

// Family returns the wire family identifier.
func (t *GoogleTransformer) Family() registry.WireFamily { return registry.FamilyGoogle }

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	Contents          []googleContent `json:"contents"`
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
	Tools             []googleTools   `json:"tools,omitempty"`
	GenerationConfig  *googleGenCfg   `json:"generationConfig,omitempty"`
}

type googleTools struct {
	FunctionDeclarations []googleFunctionDecl `json:"functionDeclarations"`
}

type googleFunctionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type googleGenCfg struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// BuildRequest maps roles onto user/model, folds system messages into
// systemInstruction, and targets the generateContent endpoint (streaming uses
// streamGenerateContent with SSE framing).
func (t *GoogleTransformer) BuildRequest(ctx context.Context, d *registry.Descriptor, credential string, req *types.ChatRequest) (*http.Request, error) {
	body := googleRequest{}

	var system []string
	for i := range req.Messages {
		m := &req.Messages[i]
		switch m.Role {
		case "system":
			system = append(system, m.Text())
		case "assistant":
			body.Contents = append(body.Contents, googleContent{Role: "model", Parts: []googlePart{{Text: m.Text()}}})
		default:
			body.Contents = append(body.Contents, googleContent{Role: "user", Parts: []googlePart{{Text: m.Text()}}})
		}
	}
	if len(system) > 0 {
		body.SystemInstruction = &googleContent{Parts: []googlePart{{Text: strings.Join(system, "\n\n")}}}
	}

	if len(req.Tools) > 0 {
		decls := make([]googleFunctionDecl, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decls = append(decls, googleFunctionDecl{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			})
		}
		body.Tools = []googleTools{{FunctionDeclarations: decls}}
	}

	if req.Temperature != nil || req.TopP != nil || req.MaxTokens > 0 || len(req.Stop) > 0 {
		body.GenerationConfig = &googleGenCfg{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.Stop,
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, gwerrors.NewInternalError(d.ID, req.Model, "marshal request: "+err.Error())
	}

	verb := "generateContent"
	query := ""
	if req.Stream {
		verb = "streamGenerateContent"
		query = "?alt=sse"
	}
	url := fmt.Sprintf("%s/models/%s:%s%s", strings.TrimRight(d.BaseURL, "/"), req.Model, verb, query)

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

type googleCandidate struct {
	Content      googleContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type googleResponse struct {
	// candidates normally arrives as an array, but some proxied deployments
	// emit a bare object. Keep it raw and normalize below.
	Candidates     json.RawMessage `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// firstCandidate normalizes the array-or-object candidates field.
func firstCandidate(raw json.RawMessage) (*googleCandidate, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var list []googleCandidate
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return nil, false
		}
		return &list[0], true
	}
	var single googleCandidate
	if err := json.Unmarshal(raw, &single); err == nil {
		return &single, true
	}
	return nil, false
}

func mapGoogleFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	case "":
		return ""
	default:
		return strings.ToLower(reason)
	}
}

// ParseResponse converts a generateContent body into the unified shape.
// Safety blocks surface as errors, not empty completions.
func (t *GoogleTransformer) ParseResponse(body []byte, model string) (*types.ChatResponse, error) {
	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, gwerrors.NewMalformedResponseError("google", model, "decode response: "+err.Error())
	}
	if resp.Error != nil {
		return nil, gwerrors.NewUpstreamError("google", model, http.StatusBadGateway, resp.Error.Message)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, gwerrors.NewSafetyBlockedError("google", model, "prompt blocked: "+resp.PromptFeedback.BlockReason)
	}

	cand, ok := firstCandidate(resp.Candidates)
	if !ok {
		return nil, gwerrors.NewMalformedResponseError("google", model, "response has no candidates")
	}
	if cand.FinishReason == "SAFETY" {
		return nil, gwerrors.NewSafetyBlockedError("google", model, "candidate blocked: SAFETY")
	}

	var text string
	for _, p := range cand.Content.Parts {
		text += p.Text
	}
	content, _ := json.Marshal(text)

	out := &types.ChatResponse{
		ID:      fmt.Sprintf("gemini-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []types.Choice{{
			Message:      types.ChatMessage{Role: "assistant", Content: content},
			FinishReason: mapGoogleFinishReason(cand.FinishReason),
		}},
	}
	if resp.UsageMetadata != nil {
		out.Usage = &types.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

// ParseStreamChunk handles one block of a streamGenerateContent stream.
func (t *GoogleTransformer) ParseStreamChunk(data []byte) (*types.StreamEvent, error) {
	var resp googleResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}

	cand, ok := firstCandidate(resp.Candidates)
	if !ok {
		return nil, nil
	}

	var text string
	for _, p := range cand.Content.Parts {
		text += p.Text
	}

	if cand.FinishReason != "" && cand.FinishReason != "STOP" && text == "" {
		if cand.FinishReason == "SAFETY" {
			return &types.StreamEvent{Type: types.EventError, Error: "candidate blocked: SAFETY"}, nil
		}
	}

	if text != "" {
		ev := &types.StreamEvent{Type: types.EventDelta, Token: text}
		if resp.UsageMetadata != nil {
			ev.Usage = &types.Usage{
				PromptTokens:     resp.UsageMetadata.PromptTokenCount,
				CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      resp.UsageMetadata.TotalTokenCount,
			}
		}
		return ev, nil
	}
	if cand.FinishReason != "" {
		ev := &types.StreamEvent{Type: types.EventDone}
		if resp.UsageMetadata != nil {
			ev.Usage = &types.Usage{
				PromptTokens:     resp.UsageMetadata.PromptTokenCount,
				CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      resp.UsageMetadata.TotalTokenCount,
			}
		}
		return ev, nil
	}
	return nil, nil
}

// MapError classifies an upstream error status.
func (t *GoogleTransformer) MapError(d *registry.Descriptor, model string, statusCode int, body []byte) error {
	msg := upstreamMessage(body)
	var parsed googleResponse
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
	}
	return gwerrors.NewUpstreamError(d.ID, model, statusCode, msg)
}
