package orchestrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/polydev-ai/polygate/internal/cliexec"
	"github.com/polydev-ai/polygate/internal/credits"
	"github.com/polydev-ai/polygate/internal/quota"
	"github.com/polydev-ai/polygate/internal/ratelimit"
	"github.com/polydev-ai/polygate/internal/registry"
	"github.com/polydev-ai/polygate/internal/retry"
	"github.com/polydev-ai/polygate/internal/tokencount"
	"github.com/polydev-ai/polygate/internal/transform"
	"github.com/polydev-ai/polygate/internal/validate"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
	"github.com/polydev-ai/polygate/pkg/types"
)

const (
	defaultUpstreamTimeout   = 30 * time.Second
	reasoningUpstreamTimeout = 90 * time.Second

	maxResponseBody = 16 << 20
)

// Outcome is the terminal result of one model's orchestration. Exactly one
// Outcome exists per requested model per turn.
type Outcome struct {
	Model          string
	Provider       string
	ResolvedModel  string
	Content        string
	Usage          types.Usage
	Cost           float64
	FallbackMethod string
	Latency        time.Duration
	Err            error
}

// Result converts the outcome into the wire summary shape.
func (o *Outcome) Result() types.ModelResult {
	res := types.ModelResult{
		Model:          o.Model,
		Provider:       o.Provider,
		FallbackMethod: o.FallbackMethod,
		LatencyMS:      o.Latency.Milliseconds(),
		Cost:           o.Cost,
	}
	if o.Err != nil {
		res.Error = o.Err.Error()
	}
	if o.Usage.TotalTokens > 0 {
		u := o.Usage
		res.Usage = &u
	}
	return res
}

// Observer receives terminal outcomes for metrics.
type Observer interface {
	ObserveOutcome(provider, model, method string, err error, latency time.Duration)
}

// Config wires an Orchestrator.
type Config struct {
	Registry *registry.Registry
	Catalog  *quota.Catalog
	Resolver *Resolver
	Gate     *quota.Gate
	Credits  *credits.Manager
	CLI      *cliexec.Runner
	Limits   *ratelimit.Manager
	Client   *http.Client
	Logger   *slog.Logger
	Observer Observer
}

// Orchestrator runs the per-model selection state machine.
type Orchestrator struct {
	registry *registry.Registry
	catalog  *quota.Catalog
	resolver *Resolver
	gate     *quota.Gate
	credits  *credits.Manager
	cli      *cliexec.Runner
	limits   *ratelimit.Manager
	client   *http.Client
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Limits == nil {
		cfg.Limits = ratelimit.NewManager(cfg.Registry.Limits())
	}
	return &Orchestrator{
		registry: cfg.Registry,
		catalog:  cfg.Catalog,
		resolver: cfg.Resolver,
		gate:     cfg.Gate,
		credits:  cfg.Credits,
		cli:      cfg.CLI,
		limits:   cfg.Limits,
		client:   cfg.Client,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		tracer:   otel.Tracer("polygate/orchestrate"),
	}
}

// requestTimeout bounds one upstream call. Reasoning-class models get the
// longer window.
func requestTimeout(model, reasoningEffort string) time.Duration {
	if reasoningEffort != "" {
		return reasoningUpstreamTimeout
	}
	lower := strings.ToLower(model)
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if strings.HasPrefix(lower, prefix) {
			return reasoningUpstreamTimeout
		}
	}
	if strings.Contains(lower, "-thinking") {
		return reasoningUpstreamTimeout
	}
	return defaultUpstreamTimeout
}

func policyFor(profile registry.RetryProfile) retry.Policy {
	switch profile {
	case registry.RetryRateLimit:
		return retry.RateLimitPolicy
	case registry.RetryServerError:
		return retry.ServerErrorPolicy
	default:
		return retry.NetworkPolicy
	}
}

// resolveModelID maps the requested id onto a provider's wire: direct
// catalog mapping first, then recognition of an already-native id (scoped,
// then unscoped via the friendly name), else passthrough.
func (o *Orchestrator) resolveModelID(model, provider string) string {
	if id, ok := o.catalog.Resolve(model, provider); ok {
		return id
	}
	if _, ok := o.catalog.ReverseScoped(model, provider); ok {
		return model
	}
	if friendly, ok := o.catalog.ReverseUnscoped(model); ok {
		if id, ok := o.catalog.Resolve(friendly, provider); ok {
			return id
		}
	}
	return model
}

// Run orchestrates one model without streaming.
func (o *Orchestrator) Run(ctx context.Context, req *types.ChatRequest, model string, opts Options) *Outcome {
	return o.run(ctx, req, model, opts, nil)
}

// run drives the candidate walk. emit, when non-nil, receives normalized
// stream events as they arrive.
func (o *Orchestrator) run(ctx context.Context, req *types.ChatRequest, model string, opts Options, emit func(*types.StreamEvent) error) *Outcome {
	ctx, span := o.tracer.Start(ctx, "orchestrate.run",
		trace.WithAttributes(attribute.String("gateway.model", model)))
	defer span.End()

	start := time.Now()
	outcome := &Outcome{Model: model, FallbackMethod: MethodNone}
	defer func() {
		outcome.Latency = time.Since(start)
		if o.observer != nil {
			o.observer.ObserveOutcome(outcome.Provider, model, outcome.FallbackMethod, outcome.Err, outcome.Latency)
		}
	}()

	target, ok := o.registry.DetermineProvider(model)
	if !ok {
		outcome.Err = gwerrors.NewNotFoundError("", model, "no provider can serve this model")
		return outcome
	}
	outcome.Provider = target.ID
	span.SetAttributes(attribute.String("gateway.provider", target.ID))

	chain, creditsSrc, err := o.resolver.Candidates(ctx, opts, model, target)
	if err != nil {
		outcome.Err = fmt.Errorf("resolve candidate sources: %w", err)
		return outcome
	}
	if len(chain) == 0 {
		outcome.Err = gwerrors.NewAuthenticationError(target.ID, model, "no backend source is configured for this model")
		return outcome
	}

	delivered := false
	if emit != nil {
		inner := emit
		emit = func(ev *types.StreamEvent) error {
			delivered = true
			return inner(ev)
		}
	}

	var lastErr error
	lateralTried := false
	for _, src := range chain {
		if src.Kind == SourceAdminKey {
			if sub := o.quotaGate(ctx, req, model, opts, src, emit); sub != nil {
				if sub.Err == nil || !gwerrors.IsQuotaExceeded(sub.Err) {
					sub.Latency = time.Since(start)
					return sub
				}
				lastErr = sub.Err
				continue
			}
		}

		resp, resolved, err := o.attempt(ctx, src, model, req, emit)
		if err == nil {
			o.finish(ctx, outcome, src, model, resolved, resp, opts)
			return outcome
		}
		lastErr = err
		o.logger.Warn("source attempt failed",
			"model", model,
			"source", string(src.Kind),
			"provider", src.Provider,
			"error", err,
		)

		// Once the client holds partial output, another source would
		// replay it from the start. The partial failure is final.
		if delivered {
			outcome.Err = err
			return outcome
		}

		// A 401 from any non-credit source earns one lateral hop through
		// the aggregator before the walk continues.
		if gwerrors.IsAuthFailure(err) && src.Kind != SourceCredits && !lateralTried && creditsSrc != nil {
			lateralTried = true
			resp, resolved, lerr := o.attempt(ctx, *creditsSrc, model, req, emit)
			if lerr == nil {
				o.finish(ctx, outcome, *creditsSrc, model, resolved, resp, opts)
				return outcome
			}
			o.logger.Warn("lateral credits attempt failed", "model", model, "error", lerr)
		}
	}

	if creditsSrc == nil {
		if _, ok := o.resolver.AggregatorModel(model); !ok {
			lastErr = fmt.Errorf("%w (credits cannot help: no aggregator mapping exists for %s)", lastErr, model)
		}
	}
	outcome.Err = lastErr
	return outcome
}

// quotaGate checks an admin-key source against the quota service. It
// returns nil when the source is clear to use; otherwise it returns either
// a substituted outcome or an outcome carrying the original rejection.
func (o *Orchestrator) quotaGate(ctx context.Context, req *types.ChatRequest, model string, opts Options, src Source, emit func(*types.StreamEvent) error) *Outcome {
	if o.gate == nil {
		return nil
	}
	info, ok := o.catalog.Lookup(model)
	if !ok {
		// Uncataloged models carry no tier and are not quota-gated.
		return nil
	}
	err := o.gate.Check(ctx, opts.UserID, info)
	if err == nil {
		return nil
	}
	if !gwerrors.IsQuotaExceeded(err) {
		return &Outcome{Model: model, Provider: src.Provider, FallbackMethod: MethodNone, Err: err}
	}
	if sub := o.substitute(ctx, req, info, opts, emit); sub != nil {
		return sub
	}
	return &Outcome{Model: model, Provider: src.Provider, FallbackMethod: MethodNone, Err: err}
}

// substitute walks replacement tiers after a quota rejection: same tier
// first, then cheaper ones, providers in lexicographic order. The first
// candidate reachable through a non-quota source, or through an admin key
// that clears quota, is executed.
func (o *Orchestrator) substitute(ctx context.Context, req *types.ChatRequest, rejected quota.ModelInfo, opts Options, emit func(*types.StreamEvent) error) *Outcome {
	for _, cand := range o.catalog.Substitutes(rejected) {
		target, ok := o.registry.Get(cand.Provider)
		if !ok {
			continue
		}
		chain, _, err := o.resolver.Candidates(ctx, opts, cand.FriendlyID, target)
		if err != nil {
			continue
		}
		for _, src := range chain {
			switch src.Kind {
			case SourceCLI, SourceUserKey:
				// Non-quota sources bypass the gate entirely.
			case SourceAdminKey:
				if o.gate.Check(ctx, opts.UserID, cand) != nil {
					continue
				}
			default:
				continue
			}

			o.logger.Info("quota substitution",
				"rejected_model", rejected.FriendlyID,
				"substitute_model", cand.FriendlyID,
				"source", string(src.Kind),
			)
			outcome := &Outcome{Model: cand.FriendlyID, Provider: target.ID, FallbackMethod: MethodNone}
			resp, resolved, err := o.attempt(ctx, src, cand.FriendlyID, req, emit)
			if err != nil {
				outcome.Err = err
				return outcome
			}
			o.finish(ctx, outcome, src, cand.FriendlyID, resolved, resp, opts)
			return outcome
		}
	}
	return nil
}

// finish fills a successful outcome and records accounting.
func (o *Orchestrator) finish(ctx context.Context, outcome *Outcome, src Source, model, resolved string, resp *types.ChatResponse, opts Options) {
	outcome.Provider = src.Provider
	outcome.ResolvedModel = resolved
	outcome.FallbackMethod = src.Method()
	outcome.Content = resp.Content()
	if resp.Usage != nil {
		outcome.Usage = *resp.Usage
	}

	// Cost is priced under the originally requested provider so the charge
	// reflects the tier the user chose, regardless of which source executed.
	info, ok := o.catalog.Lookup(model)
	if ok {
		outcome.Cost = info.RequestCost(outcome.Usage.PromptTokens, outcome.Usage.CompletionTokens)
	}

	if o.gate != nil {
		o.gate.Deduct(ctx, quota.UsageRow{
			UserID:       opts.UserID,
			SessionID:    opts.SessionID,
			Model:        model,
			Provider:     outcome.Provider,
			Tier:         info.Tier,
			Source:       string(src.Kind),
			InputTokens:  outcome.Usage.PromptTokens,
			OutputTokens: outcome.Usage.CompletionTokens,
			Cost:         outcome.Cost,
		})
	}
	if src.Kind == SourceCredits && o.credits != nil {
		if err := o.credits.RecordSpend(ctx, credits.SpendRecord{
			UserID:           opts.UserID,
			Model:            model,
			PromptTokens:     outcome.Usage.PromptTokens,
			CompletionTokens: outcome.Usage.CompletionTokens,
			Cost:             outcome.Cost,
		}); err != nil {
			o.logger.Warn("credit spend recording failed", "model", model, "error", err)
		}
	}
}

// attempt executes one source. For CLI sources the tool runs to completion;
// HTTP sources go through the rate limiter, the wire transformer, and the
// provider's retry profile.
func (o *Orchestrator) attempt(ctx context.Context, src Source, model string, req *types.ChatRequest, emit func(*types.StreamEvent) error) (*types.ChatResponse, string, error) {
	timeout := requestTimeout(model, req.ReasoningEffort)

	if src.Kind == SourceCLI {
		resolved := o.resolveModelID(model, src.Provider)
		resp, err := o.cli.ExecuteChat(ctx, src.Tool, req, resolved, timeout)
		if err != nil {
			return nil, resolved, err
		}
		if emit != nil && resp.Content() != "" {
			ev := &types.StreamEvent{Type: types.EventDelta, Model: model, Token: resp.Content()}
			if err := emit(ev); err != nil {
				return nil, resolved, err
			}
		}
		return resp, resolved, nil
	}

	resolved := src.AggregatorModel
	if resolved == "" {
		resolved = o.resolveModelID(model, src.Provider)
	}

	estimate := tokencount.CountForProvider(req.Messages, resolved, src.Provider)
	if err := o.limits.For(src.Provider).WaitForCapacity(ctx, estimate); err != nil {
		return nil, resolved, err
	}

	attempt := *req
	attempt.Model = resolved
	attempt.Stream = emit != nil

	// Once a stream has pushed an event to the client, a retry would replay
	// content the client already has. Track delivery and demote any later
	// failure to non-retryable.
	delivered := false
	tracked := emit
	if emit != nil {
		tracked = func(ev *types.StreamEvent) error {
			delivered = true
			return emit(ev)
		}
	}

	var resp *types.ChatResponse
	policy := policyFor(src.Descriptor.RetryProfile)
	err := policy.Do(ctx, func() error {
		var callErr error
		if emit != nil {
			resp, callErr = o.streamCall(ctx, src, model, resolved, &attempt, timeout, tracked)
		} else {
			resp, callErr = o.httpCall(ctx, src, resolved, &attempt, timeout)
		}
		if callErr != nil && delivered {
			callErr = terminalAfterDelivery(src.Provider, resolved, callErr)
		}
		// A 429 carrying a billing or spent-quota message will not clear
		// within any backoff window. Stop retrying and let the walk move
		// to the next credential.
		if ge, ok := callErr.(*gwerrors.GatewayError); ok && ge.Retryable {
			if _, permanent := validate.KeyExhaustion(ge.Message); permanent {
				ge.Retryable = false
			}
		}
		return callErr
	})
	return resp, resolved, err
}

const maxLoggedBody = 2048

// loggableBody renders a response body for diagnostics with
// credential-bearing keys stripped and length bounded.
func loggableBody(body []byte) string {
	clean := validate.Sanitize(body)
	if len(clean) > maxLoggedBody {
		clean = clean[:maxLoggedBody]
	}
	return string(clean)
}

// httpCall performs one non-streaming upstream request.
func (o *Orchestrator) httpCall(ctx context.Context, src Source, resolved string, req *types.ChatRequest, timeout time.Duration) (*types.ChatResponse, error) {
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
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, gwerrors.NewTransportError(src.Provider, resolved, "read response body: "+err.Error())
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, tr.MapError(src.Descriptor, resolved, httpResp.StatusCode, body)
	}

	if res := validate.Validate(body, src.Descriptor.WireFamily, src.Provider, resolved); res.Err != nil {
		return nil, res.Err
	} else if len(res.Warnings) > 0 {
		o.logger.Debug("response warnings",
			"provider", src.Provider,
			"model", resolved,
			"warnings", res.Warnings,
			"body", loggableBody(body),
		)
	}

	resp, err := tr.ParseResponse(body, resolved)
	if err != nil {
		return nil, err
	}
	if resp.Usage == nil || resp.Usage.TotalTokens == 0 {
		u := validate.ExtractUsage(body, src.Descriptor.WireFamily, resp.Content())
		resp.Usage = &u
	}
	return resp, nil
}
