package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/polydev-ai/polygate/internal/httputil"
	"github.com/polydev-ai/polygate/internal/observability"
	"github.com/polydev-ai/polygate/internal/orchestrate"
	"github.com/polydev-ai/polygate/internal/streaming"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
	"github.com/polydev-ai/polygate/pkg/types"
)

// Routing headers honored on chat requests.
const (
	headerOriginTool = "X-Origin-Tool"
	headerDisableCLI = "X-Disable-CLI"
	headerSessionID  = "X-Session-ID"
)

// ChatCompletions handles POST /v1/chat/completions. A request naming one
// model behaves like a plain OpenAI proxy; a request naming several fans
// out concurrently and reports per-model results.
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadLimitedBody(r.Body, h.maxBodyBytes)
	if err != nil {
		if err == httputil.ErrBodyTooLarge {
			h.writeError(w, gwerrors.NewInvalidRequestError("", "", "request body too large"))
			return
		}
		h.writeError(w, gwerrors.NewInvalidRequestError("", "", "read request body: "+err.Error()))
		return
	}

	var req types.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, gwerrors.NewInvalidRequestError("", "", "invalid JSON: "+err.Error()))
		return
	}

	models := req.TargetModels()
	if len(models) == 0 {
		h.writeError(w, gwerrors.NewInvalidRequestError("", "", "model is required"))
		return
	}
	if len(req.Messages) == 0 {
		h.writeError(w, gwerrors.NewInvalidRequestError("", "", "messages are required"))
		return
	}

	opts := h.requestOptions(r)
	ctx := r.Context()

	if req.Stream {
		h.streamChat(w, r, &req, models, opts)
		return
	}

	if len(models) == 1 {
		out := h.orch.Run(ctx, &req, models[0], opts)
		if out.Err != nil {
			h.writeError(w, out.Err)
			return
		}
		h.writeJSON(w, http.StatusOK, completionResponse(out))
		return
	}

	outs := h.orch.FanOut(ctx, &req, models, opts)
	results := make([]types.ModelResult, len(outs))
	for i, out := range outs {
		res := out.Result()
		res.Content = out.Content
		results[i] = res
	}
	h.writeJSON(w, http.StatusOK, fanOutResponse{
		ID:      "fanout-" + uuid.NewString(),
		Object:  "chat.fanout",
		Created: time.Now().Unix(),
		Results: results,
		Usage:   orchestrate.AggregateUsage(outs),
	})
}

// streamChat serves SSE for one or many models over a single connection.
func (h *Handler) streamChat(w http.ResponseWriter, r *http.Request, req *types.ChatRequest, models []string, opts orchestrate.Options) {
	forwarder, err := streaming.NewForwarder(w)
	if err != nil {
		h.writeError(w, gwerrors.NewInternalError("", "", err.Error()))
		return
	}

	h.orch.FanOutStream(r.Context(), req, models, opts, forwarder.Send)
	if err := forwarder.Done(); err != nil {
		h.logger.Debug("stream terminator not delivered", "error", err)
	}
}

// requestOptions derives the per-request identity and routing switches.
func (h *Handler) requestOptions(r *http.Request) orchestrate.Options {
	sessionID := r.Header.Get(headerSessionID)
	if sessionID == "" {
		sessionID = observability.RequestIDFromContext(r.Context())
	}
	return orchestrate.Options{
		UserID:     UserFromContext(r.Context()),
		SessionID:  sessionID,
		OriginTool: r.Header.Get(headerOriginTool),
		DisableCLI: r.Header.Get(headerDisableCLI) != "",
	}
}

// completionResponse shapes a terminal outcome as an OpenAI completion.
func completionResponse(out *orchestrate.Outcome) *types.ChatResponse {
	usage := out.Usage
	return &types.ChatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   out.Model,
		Choices: []types.Choice{{
			Message:      types.NewTextMessage("assistant", out.Content),
			FinishReason: "stop",
		}},
		Usage: &usage,
	}
}

// fanOutResponse is the non-streaming multi-model envelope. Usage carries
// the token totals summed across every model that answered.
type fanOutResponse struct {
	ID      string              `json:"id"`
	Object  string              `json:"object"`
	Created int64               `json:"created"`
	Results []types.ModelResult `json:"results"`
	Usage   types.Usage         `json:"usage"`
}
