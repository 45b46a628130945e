// Package polygate provides a multi-provider LLM gateway as a Go library.
// It resolves friendly model names onto providers, walks a credential
// fallback chain per model, and fans requests out across models
// concurrently.
//
// Polygate can be used in two modes:
//   - Library Mode: import and use directly in your Go application
//   - Gateway Mode: run cmd/server as a standalone HTTP proxy
//
// Basic usage:
//
//	client, err := polygate.New(
//	    polygate.WithProviderKey("openai", os.Getenv("OPENAI_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Chat(ctx, &polygate.ChatRequest{
//	    Model: "gpt-5",
//	    Messages: []polygate.ChatMessage{
//	        polygate.NewTextMessage("user", "Hello!"),
//	    },
//	})
package polygate

import (
	"github.com/polydev-ai/polygate/pkg/errors"
	"github.com/polydev-ai/polygate/pkg/types"
)

// Version is the current version of polygate.
const Version = "0.1.0"

// Re-export core request/response types for convenience. Users can write
// polygate.ChatRequest instead of types.ChatRequest.
type (
	// ChatRequest is an OpenAI-compatible chat completion request. The
	// model field accepts a single name or a list for fan-out.
	ChatRequest = types.ChatRequest

	// ChatResponse is an OpenAI-compatible chat completion response.
	ChatResponse = types.ChatResponse

	// ChatMessage is a single message in the conversation.
	ChatMessage = types.ChatMessage

	// StreamEvent is one event on a streaming response.
	StreamEvent = types.StreamEvent

	// ModelResult is one model's terminal result in a fan-out.
	ModelResult = types.ModelResult

	// Usage contains token usage for a request.
	Usage = types.Usage

	// Choice is a single completion choice.
	Choice = types.Choice

	// Tool is a function the model can call.
	Tool = types.Tool

	// ToolCall is a function call made by the model.
	ToolCall = types.ToolCall
)

// NewTextMessage builds a plain-text chat message.
var NewTextMessage = types.NewTextMessage

// Stream event kinds.
const (
	EventDelta   = types.EventDelta
	EventToolUse = types.EventToolUse
	EventDone    = types.EventDone
	EventError   = types.EventError
	EventSummary = types.EventSummary
	EventFinal   = types.EventFinal
)

// GatewayError is the normalized error shape every failure maps onto.
type GatewayError = errors.GatewayError

// Error type constants.
const (
	TypeTransport          = errors.TypeTransport
	TypeUpstream           = errors.TypeUpstream
	TypeSafetyBlocked      = errors.TypeSafetyBlocked
	TypeAuthentication     = errors.TypeAuthentication
	TypeQuotaExceeded      = errors.TypeQuotaExceeded
	TypeMalformedResponse  = errors.TypeMalformedResponse
	TypeRateLimit          = errors.TypeRateLimit
	TypeInvalidRequest     = errors.TypeInvalidRequest
	TypeNotFound           = errors.TypeNotFound
	TypeTimeout            = errors.TypeTimeout
	TypeServiceUnavailable = errors.TypeServiceUnavailable
	TypeInternalError      = errors.TypeInternalError
)

// Re-export error helpers.
var (
	AsGatewayError  = errors.AsGatewayError
	IsAuthFailure   = errors.IsAuthFailure
	IsQuotaExceeded = errors.IsQuotaExceeded
)
