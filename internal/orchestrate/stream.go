package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/polydev-ai/polygate/internal/streaming"
	"github.com/polydev-ai/polygate/internal/transform"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
	"github.com/polydev-ai/polygate/pkg/types"
)

// RunStream orchestrates one model, pushing normalized events through emit
// as they arrive. The terminal Outcome carries the accumulated content and
// usage either way.
func (o *Orchestrator) RunStream(ctx context.Context, req *types.ChatRequest, model string, opts Options, emit func(*types.StreamEvent) error) *Outcome {
	return o.run(ctx, req, model, opts, emit)
}

// streamCall opens one streaming upstream request and drains it. Retry only
// covers connection establishment: attempt marks any failure after the
// first emitted event non-retryable, because a replay would hand the client
// content it already received.
func (o *Orchestrator) streamCall(ctx context.Context, src Source, model, resolved string, req *types.ChatRequest, timeout time.Duration, emit func(*types.StreamEvent) error) (*types.ChatResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tr := transform.For(src.Descriptor.WireFamily)
	httpReq, err := tr.BuildRequest(callCtx, src.Descriptor, src.Credential, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, gwerrors.NewTimeoutError(src.Provider, resolved,
				fmt.Sprintf("request timed out after %s", timeout))
		}
		return nil, gwerrors.NewTransportError(src.Provider, resolved, err.Error())
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
		httpResp.Body.Close()
		return nil, tr.MapError(src.Descriptor, resolved, httpResp.StatusCode, body)
	}

	reader := streaming.NewReader(httpResp.Body, tr)
	defer reader.Close()

	var content strings.Builder
	var usage types.Usage

	for {
		ev, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if callCtx.Err() == context.DeadlineExceeded {
				return nil, gwerrors.NewTimeoutError(src.Provider, resolved,
					fmt.Sprintf("stream timed out after %s", timeout))
			}
			return nil, gwerrors.NewTransportError(src.Provider, resolved, "stream read: "+err.Error())
		}

		switch ev.Type {
		case types.EventDelta:
			// Gemini and Anthropic attach cumulative usage to chunks, so
			// the latest value of each field supersedes earlier ones.
			mergeUsage(&usage, ev.Usage)
			if ev.Token != "" {
				content.WriteString(ev.Token)
				out := &types.StreamEvent{Type: types.EventDelta, Model: model, Token: ev.Token}
				if err := emit(out); err != nil {
					return nil, err
				}
			}
		case types.EventToolUse:
			out := &types.StreamEvent{Type: types.EventToolUse, Model: model, ToolUse: ev.ToolUse}
			if err := emit(out); err != nil {
				return nil, err
			}
		case types.EventError:
			return nil, gwerrors.NewUpstreamError(src.Provider, resolved, 502, ev.Error)
		case types.EventDone:
			if ev.Usage != nil {
				// A terminal usage block is authoritative over deltas.
				usage = *ev.Usage
			}
		}
	}

	text := content.String()
	if usage.TotalTokens == 0 {
		if usage.CompletionTokens == 0 && text != "" {
			usage.CompletionTokens = (len(text) + 3) / 4
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return &types.ChatResponse{
		Model: resolved,
		Choices: []types.Choice{{
			Message:      types.NewTextMessage("assistant", text),
			FinishReason: "stop",
		}},
		Usage: &usage,
	}, nil
}

// mergeUsage folds a chunk's running usage counters into dst. Counters are
// cumulative on the wire, so each field is replaced, never summed.
func mergeUsage(dst *types.Usage, src *types.Usage) {
	if src == nil {
		return
	}
	if src.PromptTokens > 0 {
		dst.PromptTokens = src.PromptTokens
	}
	if src.CompletionTokens > 0 {
		dst.CompletionTokens = src.CompletionTokens
	}
	if src.TotalTokens > 0 {
		dst.TotalTokens = src.TotalTokens
	}
}

// terminalAfterDelivery strips retryability from a failure raised once
// events have reached the client.
func terminalAfterDelivery(provider, resolved string, err error) error {
	if ge, ok := err.(*gwerrors.GatewayError); ok {
		ge.Retryable = false
		return ge
	}
	ge := gwerrors.NewTransportError(provider, resolved, err.Error())
	ge.Retryable = false
	return ge
}
