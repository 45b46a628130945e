package polygate

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/polydev-ai/polygate/internal/cliexec"
	"github.com/polydev-ai/polygate/internal/credits"
	"github.com/polydev-ai/polygate/internal/keystore"
	"github.com/polydev-ai/polygate/internal/orchestrate"
	"github.com/polydev-ai/polygate/internal/quota"
	"github.com/polydev-ai/polygate/internal/registry"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
	"github.com/polydev-ai/polygate/pkg/types"
)

// Client is the entry point for library mode. It owns the provider
// registry, the credential stores, and the orchestrator, and is safe for
// concurrent use by multiple goroutines.
type Client struct {
	registry *registry.Registry
	keys     *keystore.MemoryStore
	gate     *quota.Gate
	orch     *orchestrate.Orchestrator
	config   *ClientConfig
}

// New creates a polygate client.
//
// Example:
//
//	client, err := polygate.New(
//	    polygate.WithProviderKey("openai", os.Getenv("OPENAI_API_KEY")),
//	    polygate.WithQuotaLimits(map[string]int{"premium": 100}),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	reg := registry.New()
	for provider, url := range cfg.BaseURLs {
		d, ok := reg.Get(provider)
		if !ok {
			return nil, gwerrors.NewInvalidRequestError(provider, "", "unknown provider "+provider)
		}
		desc := *d
		desc.BaseURL = url
		if err := reg.Register(desc); err != nil {
			return nil, err
		}
	}
	for _, provider := range cfg.Disabled {
		reg.Deregister(provider)
	}

	mem := keystore.NewMemoryStore()
	for provider, key := range cfg.ProviderKeys {
		if _, ok := reg.Get(provider); !ok {
			return nil, gwerrors.NewInvalidRequestError(provider, "", "unknown provider "+provider)
		}
		_ = mem.SetAdminKey(context.Background(), provider, key)
	}
	keys := keystore.Layered{mem, keystore.NewEnvStore()}

	limits := quota.DefaultLimits
	if len(cfg.QuotaLimits) > 0 {
		limits = make(quota.Limits, len(cfg.QuotaLimits))
		for tier, limit := range cfg.QuotaLimits {
			limits[quota.Tier(tier)] = limit
		}
	}
	gate := quota.NewGate(quota.NewMemoryStore(), limits, cfg.Logger)

	creditMgr := credits.NewManager(credits.NewMemoryLedger(), nil, cfg.Logger)

	var cliRunner *cliexec.Runner
	if cfg.EnableCLI {
		cliRunner = cliexec.NewRunner(cfg.Logger)
	}

	catalog := quota.NewCatalog()
	resolver := orchestrate.NewResolver(reg, catalog, keys, creditMgr, cliRunner, cfg.Logger)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	orch := orchestrate.New(orchestrate.Config{
		Registry: reg,
		Catalog:  catalog,
		Resolver: resolver,
		Gate:     gate,
		Credits:  creditMgr,
		CLI:      cliRunner,
		Client:   httpClient,
		Logger:   cfg.Logger,
	})

	return &Client{
		registry: reg,
		keys:     mem,
		gate:     gate,
		orch:     orch,
		config:   cfg,
	}, nil
}

// RequestOptions carries per-call identity and routing switches. The zero
// value uses the client's default user.
type RequestOptions struct {
	UserID     string
	SessionID  string
	OriginTool string
	DisableCLI bool
}

func (c *Client) orchestrateOptions(opts RequestOptions) orchestrate.Options {
	userID := opts.UserID
	if userID == "" {
		userID = c.config.DefaultUser
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return orchestrate.Options{
		UserID:     userID,
		SessionID:  sessionID,
		OriginTool: opts.OriginTool,
		DisableCLI: opts.DisableCLI,
	}
}

// Chat runs a completion against the request's first target model and
// returns an OpenAI-shaped response.
func (c *Client) Chat(ctx context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	return c.ChatWithOptions(ctx, req, RequestOptions{})
}

// ChatWithOptions is Chat with explicit identity and routing switches.
func (c *Client) ChatWithOptions(ctx context.Context, req *types.ChatRequest, opts RequestOptions) (*types.ChatResponse, error) {
	models := req.TargetModels()
	if len(models) == 0 {
		return nil, gwerrors.NewInvalidRequestError("", "", "model is required")
	}

	out := c.orch.Run(ctx, req, models[0], c.orchestrateOptions(opts))
	if out.Err != nil {
		return nil, out.Err
	}

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
	}, nil
}

// FanOut runs the request against every target model concurrently and
// returns one result per model in request order. Individual model failures
// land in their result's Error field.
func (c *Client) FanOut(ctx context.Context, req *types.ChatRequest) ([]types.ModelResult, error) {
	return c.FanOutWithOptions(ctx, req, RequestOptions{})
}

// FanOutWithOptions is FanOut with explicit identity and routing switches.
func (c *Client) FanOutWithOptions(ctx context.Context, req *types.ChatRequest, opts RequestOptions) ([]types.ModelResult, error) {
	models := req.TargetModels()
	if len(models) == 0 {
		return nil, gwerrors.NewInvalidRequestError("", "", "model is required")
	}

	outs := c.orch.FanOut(ctx, req, models, c.orchestrateOptions(opts))
	results := make([]types.ModelResult, len(outs))
	for i, out := range outs {
		res := out.Result()
		res.Content = out.Content
		results[i] = res
	}
	return results, nil
}

// ChatStream runs the request against every target model and delivers
// events to handler as they arrive. Delivery order interleaves models;
// per-model token order is preserved. The handler must not block.
func (c *Client) ChatStream(ctx context.Context, req *types.ChatRequest, handler func(*types.StreamEvent)) error {
	return c.ChatStreamWithOptions(ctx, req, RequestOptions{}, handler)
}

// ChatStreamWithOptions is ChatStream with explicit identity and routing
// switches.
func (c *Client) ChatStreamWithOptions(ctx context.Context, req *types.ChatRequest, opts RequestOptions, handler func(*types.StreamEvent)) error {
	models := req.TargetModels()
	if len(models) == 0 {
		return gwerrors.NewInvalidRequestError("", "", "model is required")
	}

	c.orch.FanOutStream(ctx, req, models, c.orchestrateOptions(opts), func(ev *types.StreamEvent) error {
		handler(ev)
		return nil
	})
	return nil
}

// SetUserKey stores a user's own provider key. User keys take precedence
// over admin keys during source selection.
func (c *Client) SetUserKey(ctx context.Context, userID, provider, key string) error {
	if _, ok := c.registry.Get(provider); !ok {
		return gwerrors.NewNotFoundError(provider, "", "unknown provider "+provider)
	}
	return c.keys.SetUserKey(ctx, userID, provider, key)
}

// QuotaRemaining reports a user's remaining monthly requests by tier.
func (c *Client) QuotaRemaining(ctx context.Context, userID string) (map[string]int, error) {
	remaining, err := c.gate.Remaining(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(remaining))
	for tier, n := range remaining {
		out[string(tier)] = n
	}
	return out, nil
}
