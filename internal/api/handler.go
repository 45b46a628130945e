// Package api provides the HTTP surface of the gateway: chat completions
// with fan-out and streaming, model listing, and per-user account routes.
package api //nolint:revive // package name is intentional

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/polydev-ai/polygate/internal/cliexec"
	"github.com/polydev-ai/polygate/internal/config"
	"github.com/polydev-ai/polygate/internal/credits"
	"github.com/polydev-ai/polygate/internal/keystore"
	"github.com/polydev-ai/polygate/internal/orchestrate"
	"github.com/polydev-ai/polygate/internal/quota"
	"github.com/polydev-ai/polygate/internal/registry"
	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
)

const defaultMaxRequestBody = 10 * 1024 * 1024

// Handler serves the gateway API.
type Handler struct {
	orch     *orchestrate.Orchestrator
	registry *registry.Registry
	catalog  *quota.Catalog
	gate     *quota.Gate
	credits  *credits.Manager
	keys     keystore.Writer
	cli      *cliexec.Runner
	cfg      *config.Manager
	logger   *slog.Logger

	maxBodyBytes int64
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Orchestrator *orchestrate.Orchestrator
	Registry     *registry.Registry
	Catalog      *quota.Catalog
	Gate         *quota.Gate
	Credits      *credits.Manager
	Keys         keystore.Writer
	CLI          *cliexec.Runner
	Config       *config.Manager
	Logger       *slog.Logger
	MaxBodyBytes int64
}

// NewHandler creates the API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxRequestBody
	}
	return &Handler{
		orch:         cfg.Orchestrator,
		registry:     cfg.Registry,
		catalog:      cfg.Catalog,
		gate:         cfg.Gate,
		credits:      cfg.Credits,
		keys:         cfg.Keys,
		cli:          cfg.CLI,
		cfg:          cfg.Config,
		logger:       cfg.Logger,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	ge := gwerrors.AsGatewayError(err)
	h.writeJSON(w, ge.HTTPStatusCode(), errorEnvelope(ge))
}
