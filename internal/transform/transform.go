// Package transform converts unified chat requests into provider wire
// formats and provider responses back into the unified shape. Three wire
// families cover the whole catalog: OpenAI-compatible (the default),
// Anthropic messages, and Google generateContent.
package transform

import (
	"context"
	"net/http"

	"github.com/polydev-ai/polygate/internal/registry"
	"github.com/polydev-ai/polygate/pkg/types"
)

// Transformer handles one wire family end to end.
type Transformer interface {
	// Family returns the wire family this transformer implements.
	Family() registry.WireFamily

	// BuildRequest produces the provider-specific HTTP request. The
	// credential is applied according to the descriptor's auth settings.
	BuildRequest(ctx context.Context, d *registry.Descriptor, credential string, req *types.ChatRequest) (*http.Request, error)

	// ParseResponse converts a raw non-streaming body into the unified shape.
	ParseResponse(body []byte, model string) (*types.ChatResponse, error)

	// ParseStreamChunk parses one JSON block from a stream. Returns nil, nil
	// for keep-alives and blocks that carry nothing.
	ParseStreamChunk(data []byte) (*types.StreamEvent, error)

	// MapError converts an upstream error status into a GatewayError.
	MapError(d *registry.Descriptor, model string, statusCode int, body []byte) error
}

var (
	openaiTransformer    = &OpenAITransformer{}
	anthropicTransformer = &AnthropicTransformer{}
	googleTransformer    = &GoogleTransformer{}
)

// For selects the transformer for a wire family. Unknown families fall back
// to the OpenAI-compatible transformer.
func For(family registry.WireFamily) Transformer {
	switch family {
	case registry.FamilyAnthropic:
		return anthropicTransformer
	case registry.FamilyGoogle:
		return googleTransformer
	default:
		return openaiTransformer
	}
}

// applyAuth sets auth and extra headers from the descriptor.
func applyAuth(httpReq *http.Request, d *registry.Descriptor, credential string) {
	httpReq.Header.Set("Content-Type", "application/json")
	if d.AuthType == registry.AuthAPIKey || d.AuthType == registry.AuthOAuth {
		if d.APIKeyHeader != "" && credential != "" {
			httpReq.Header.Set(d.APIKeyHeader, d.APIKeyPrefix+credential)
		}
	}
	for k, v := range d.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}
}
