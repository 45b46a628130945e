package mcpserv

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polydev-ai/polygate/internal/credits"
	"github.com/polydev-ai/polygate/internal/keystore"
	"github.com/polydev-ai/polygate/internal/orchestrate"
	"github.com/polydev-ai/polygate/internal/quota"
	"github.com/polydev-ai/polygate/internal/registry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestServer(t *testing.T, upstream http.HandlerFunc) *Server {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	reg := registry.NewEmpty()
	require.NoError(t, reg.Register(registry.Descriptor{
		ID:            "alpha",
		BaseURL:       srv.URL,
		AuthType:      registry.AuthAPIKey,
		WireFamily:    registry.FamilyOpenAI,
		APIKeyHeader:  "Authorization",
		APIKeyPrefix:  "Bearer ",
		ModelPrefixes: []string{"alpha-"},
	}))

	catalog := quota.NewCatalogWith([]quota.ModelInfo{{
		FriendlyID: "alpha-one",
		Provider:   "alpha",
		ModelID:    "alpha-one-v1",
		Tier:       quota.TierNormal,
	}})

	keys := keystore.NewMemoryStore()
	require.NoError(t, keys.SetAdminKey(context.Background(), "alpha", "ak"))

	gate := quota.NewGate(quota.NewMemoryStore(), quota.DefaultLimits, discardLogger())
	creditMgr := credits.NewManager(credits.NewMemoryLedger(), nil, discardLogger())

	resolver := orchestrate.NewResolver(reg, catalog, keys, creditMgr, nil, discardLogger())
	orch := orchestrate.New(orchestrate.Config{
		Registry: reg,
		Catalog:  catalog,
		Resolver: resolver,
		Gate:     gate,
		Credits:  creditMgr,
		Logger:   discardLogger(),
	})

	return New(orch, discardLogger())
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "perspectives",
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestPerspectivesSingleModel(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","model":"alpha-one-v1","choices":[{"index":0,"message":{"role":"assistant","content":"blue"},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":1,"total_tokens":5}}`)
	})

	res, err := s.handlePerspectives(context.Background(), callRequest(map[string]any{
		"prompt": "what color is the sky",
		"models": "alpha-one",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var answers []perspectiveAnswer
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &answers))
	require.Len(t, answers, 1)
	assert.Equal(t, "alpha-one", answers[0].Model)
	assert.Equal(t, "alpha", answers[0].Provider)
	assert.Equal(t, "blue", answers[0].Content)
	assert.Equal(t, 5, answers[0].TotalTokens)
	assert.Empty(t, answers[0].Error)
}

func TestPerspectivesMixedOutcomes(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","model":"alpha-one-v1","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":1,"total_tokens":5}}`)
	})

	res, err := s.handlePerspectives(context.Background(), callRequest(map[string]any{
		"prompt": "hi",
		"models": "alpha-one, no-such-model",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var answers []perspectiveAnswer
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &answers))
	require.Len(t, answers, 2)
	assert.Equal(t, "ok", answers[0].Content)
	assert.Empty(t, answers[0].Error)
	assert.Equal(t, "no-such-model", answers[1].Model)
	assert.NotEmpty(t, answers[1].Error)
}

func TestPerspectivesValidation(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	cases := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing prompt", map[string]any{"models": "alpha-one"}, "prompt"},
		{"missing models", map[string]any{"prompt": "hi"}, "models"},
		{"blank models", map[string]any{"prompt": "hi", "models": " , ,"}, "at least one"},
		{"too many models", map[string]any{"prompt": "hi", "models": "a,b,c,d,e,f,g,h,i"}, "at most"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := s.handlePerspectives(context.Background(), callRequest(tc.args))
			require.NoError(t, err)
			require.True(t, res.IsError)
			assert.True(t, strings.Contains(resultText(t, res), tc.want),
				"error %q should mention %q", resultText(t, res), tc.want)
		})
	}
}

func TestHTTPHandlerMounts(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, s.HTTPHandler())
}
