package types //nolint:revive // package name is intentional

import "github.com/goccy/go-json"

// Stream event kinds emitted by the gateway. Every upstream wire format is
// normalized into this vocabulary before it reaches a client.
const (
	EventDelta   = "delta"
	EventToolUse = "tool_use"
	EventDone    = "done"
	EventError   = "error"
	EventSummary = "summary"
	EventFinal   = "final"
)

// StreamEvent is a single normalized streaming event.
type StreamEvent struct {
	Type    string          `json:"type"`
	Model   string          `json:"model,omitempty"`
	Token   string          `json:"token,omitempty"`
	ToolUse json.RawMessage `json:"tool_use,omitempty"`
	Error   string          `json:"error,omitempty"`
	Usage   *Usage          `json:"usage,omitempty"`

	// Summary payload, present only on EventSummary.
	Results []ModelResult `json:"results,omitempty"`
}

// ModelResult is the per-model outcome reported by fan-out summary and
// final events. Content and Cost are filled only on the final event.
type ModelResult struct {
	Model          string  `json:"model"`
	Provider       string  `json:"provider,omitempty"`
	FallbackMethod string  `json:"fallback_method,omitempty"`
	Error          string  `json:"error,omitempty"`
	Content        string  `json:"content,omitempty"`
	Usage          *Usage  `json:"usage,omitempty"`
	Cost           float64 `json:"cost,omitempty"`
	LatencyMS      int64   `json:"latency_ms"`
}

// StreamChunk represents an OpenAI-format chunk parsed from an SSE stream.
type StreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// StreamChoice represents a choice in a streaming response.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// StreamDelta contains the incremental content in a stream chunk.
type StreamDelta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}
