// Package orchestrate walks the fallback chain for each requested model and
// coordinates concurrent multi-model turns. Candidate sources are tried in
// strict priority order: local CLI tools, the user's own API key, the
// operator's key, then the pooled-credit aggregator.
package orchestrate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/polydev-ai/polygate/internal/cliexec"
	"github.com/polydev-ai/polygate/internal/credits"
	"github.com/polydev-ai/polygate/internal/keystore"
	"github.com/polydev-ai/polygate/internal/quota"
	"github.com/polydev-ai/polygate/internal/registry"
)

// SourceKind identifies a backend credential class.
type SourceKind string

const (
	SourceCLI      SourceKind = "cli"
	SourceUserKey  SourceKind = "user_key"
	SourceAdminKey SourceKind = "admin_key"
	SourceCredits  SourceKind = "credits"
)

// Fallback method tags recorded on outcomes.
const (
	MethodCLI     = "cli"
	MethodAPI     = "api"
	MethodCredits = "credits"
	MethodNone    = "none"
)

// Source is one candidate backend for a model request.
type Source struct {
	Kind       SourceKind
	Provider   string
	Credential string
	Descriptor *registry.Descriptor

	// Tool is set for CLI sources.
	Tool cliexec.Tool

	// AggregatorModel is the model id used on the aggregator's wire, set
	// for credits sources.
	AggregatorModel string
}

// Method returns the fallback_method tag a success through this source
// carries.
func (s Source) Method() string {
	switch s.Kind {
	case SourceCLI:
		return MethodCLI
	case SourceCredits:
		return MethodCredits
	default:
		return MethodAPI
	}
}

// Options carries the per-request identity and routing switches.
type Options struct {
	UserID    string
	SessionID string

	// OriginTool names the CLI tool that issued this request, if any. That
	// tool is excluded from its own fallback chain.
	OriginTool string

	// DisableCLI forces API routing.
	DisableCLI bool
}

// Resolver builds candidate chains from the key store, the credit manager,
// and local CLI probes.
type Resolver struct {
	registry *registry.Registry
	catalog  *quota.Catalog
	keys     keystore.Store
	credits  *credits.Manager
	cli      *cliexec.Runner
	logger   *slog.Logger
}

func NewResolver(reg *registry.Registry, catalog *quota.Catalog, keys keystore.Store, creditMgr *credits.Manager, cli *cliexec.Runner, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		registry: reg,
		catalog:  catalog,
		keys:     keys,
		credits:  creditMgr,
		cli:      cli,
		logger:   logger,
	}
}

// AggregatorModel maps a friendly model id into the aggregator's namespace.
// Models without a catalog entry have no pooled-credit route unless they
// already carry a provider/model path.
func (r *Resolver) AggregatorModel(model string) (string, bool) {
	if info, ok := r.catalog.Lookup(model); ok {
		if info.Provider == "openrouter" {
			return info.ModelID, true
		}
		return info.Provider + "/" + info.FriendlyID, true
	}
	if strings.Contains(model, "/") {
		return model, true
	}
	return "", false
}

// creditsSource builds the pooled-credit candidate, or nil when the model
// has no aggregator mapping, the balance is empty, or no aggregator key is
// configured.
func (r *Resolver) creditsSource(ctx context.Context, opts Options, model string) *Source {
	aggModel, ok := r.AggregatorModel(model)
	if !ok {
		return nil
	}
	desc, ok := r.registry.Get("openrouter")
	if !ok {
		return nil
	}
	key, ok, err := r.keys.AdminKey(ctx, "openrouter")
	if err != nil || !ok {
		if err != nil {
			r.logger.Warn("aggregator key lookup failed", "error", err)
		}
		return nil
	}
	if r.credits != nil {
		balance, err := r.credits.Balance(ctx, opts.UserID)
		if err != nil {
			r.logger.Warn("credit balance lookup failed", "user_id", opts.UserID, "error", err)
			return nil
		}
		if balance <= 0 {
			return nil
		}
	}
	return &Source{
		Kind:            SourceCredits,
		Provider:        "openrouter",
		Credential:      key,
		Descriptor:      desc,
		AggregatorModel: aggModel,
	}
}

// Candidates builds the ordered chain for one model against its target
// provider. The credits source is returned separately as well so the walk
// can take the lateral auth-failure hop without rescanning.
func (r *Resolver) Candidates(ctx context.Context, opts Options, model string, target *registry.Descriptor) ([]Source, *Source, error) {
	var chain []Source

	if !opts.DisableCLI && r.cli != nil {
		if tool, ok := cliexec.ForProvider(target.ID); ok && tool.ID != opts.OriginTool {
			status := r.cli.Status(ctx, tool)
			if status.Available && status.Authenticated {
				chain = append(chain, Source{
					Kind:       SourceCLI,
					Provider:   target.ID,
					Descriptor: target,
					Tool:       tool,
				})
			} else {
				r.logger.Debug("cli source skipped",
					"tool", tool.ID,
					"available", status.Available,
					"authenticated", status.Authenticated,
				)
			}
		}
	}

	if target.AuthType == registry.AuthAPIKey || target.AuthType == registry.AuthOAuth || target.AuthType == registry.AuthNone {
		if key, ok, err := r.keys.UserKey(ctx, opts.UserID, target.ID); err != nil {
			return nil, nil, err
		} else if ok || target.AuthType == registry.AuthNone {
			chain = append(chain, Source{
				Kind:       SourceUserKey,
				Provider:   target.ID,
				Credential: key,
				Descriptor: target,
			})
		}

		if key, ok, err := r.keys.AdminKey(ctx, target.ID); err != nil {
			return nil, nil, err
		} else if ok {
			chain = append(chain, Source{
				Kind:       SourceAdminKey,
				Provider:   target.ID,
				Credential: key,
				Descriptor: target,
			})
		}
	}

	creditsSrc := r.creditsSource(ctx, opts, model)
	if creditsSrc != nil {
		chain = append(chain, *creditsSrc)
	}
	return chain, creditsSrc, nil
}
