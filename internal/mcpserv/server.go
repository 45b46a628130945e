// Package mcpserv exposes the gateway as an MCP server so agent tools can
// request multi-model perspectives over the same orchestration path the
// HTTP API uses.
package mcpserv

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/polydev-ai/polygate/internal/orchestrate"
	"github.com/polydev-ai/polygate/pkg/types"
)

const (
	serverName    = "polygate"
	serverVersion = "0.1.0"

	// maxPerspectiveModels caps one tool call's fan-out width.
	maxPerspectiveModels = 8
)

// Server wraps the MCP tool server.
type Server struct {
	orch   *orchestrate.Orchestrator
	logger *slog.Logger
	mcp    *server.MCPServer
}

// New creates the MCP server and registers the gateway tools.
func New(orch *orchestrate.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		orch:   orch,
		logger: logger,
	}

	m := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
	)
	m.AddTool(perspectivesTool(), s.handlePerspectives)
	s.mcp = m
	return s
}

// HTTPHandler returns the streamable HTTP transport for mounting under the
// gateway mux.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

func perspectivesTool() mcp.Tool {
	return mcp.NewTool("perspectives",
		mcp.WithDescription("Ask several models the same question and compare their answers. Models are fanned out concurrently; a failure of one model does not block the others."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The question or task to send to every model."),
		),
		mcp.WithString("models",
			mcp.Required(),
			mcp.Description("Comma-separated model ids, e.g. \"gpt-5,claude-opus-4-1,gemini-2.5-pro\"."),
		),
		mcp.WithString("system",
			mcp.Description("Optional system prompt applied to every model."),
		),
		mcp.WithString("user_id",
			mcp.Description("Account to attribute usage to. Defaults to the anonymous account."),
		),
	)
}

// perspectiveAnswer is one model's entry in the tool result.
type perspectiveAnswer struct {
	Model          string `json:"model"`
	Provider       string `json:"provider,omitempty"`
	FallbackMethod string `json:"fallback_method,omitempty"`
	Content        string `json:"content,omitempty"`
	Error          string `json:"error,omitempty"`
	TotalTokens    int    `json:"total_tokens,omitempty"`
	LatencyMS      int64  `json:"latency_ms"`
}

func (s *Server) handlePerspectives(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawModels, err := req.RequireString("models")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var models []string
	for _, m := range strings.Split(rawModels, ",") {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		return mcp.NewToolResultError("models must name at least one model"), nil
	}
	if len(models) > maxPerspectiveModels {
		return mcp.NewToolResultError(fmt.Sprintf("at most %d models per call", maxPerspectiveModels)), nil
	}

	chatReq := &types.ChatRequest{
		Messages: []types.ChatMessage{types.NewTextMessage("user", prompt)},
	}
	if system := req.GetString("system", ""); system != "" {
		chatReq.Messages = append([]types.ChatMessage{types.NewTextMessage("system", system)}, chatReq.Messages...)
	}

	opts := orchestrate.Options{
		UserID:    req.GetString("user_id", "anonymous"),
		SessionID: "mcp",
	}

	outs := s.orch.FanOut(ctx, chatReq, models, opts)

	answers := make([]perspectiveAnswer, len(outs))
	for i, out := range outs {
		answers[i] = perspectiveAnswer{
			Model:          out.Model,
			Provider:       out.Provider,
			FallbackMethod: out.FallbackMethod,
			Content:        out.Content,
			TotalTokens:    out.Usage.TotalTokens,
			LatencyMS:      out.Latency.Milliseconds(),
		}
		if out.Err != nil {
			answers[i].Error = out.Err.Error()
		}
	}

	payload, err := json.MarshalIndent(answers, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}
