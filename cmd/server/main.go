// Package main is the entry point for the polygate gateway server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/polydev-ai/polygate/internal/api"
	"github.com/polydev-ai/polygate/internal/cliexec"
	"github.com/polydev-ai/polygate/internal/config"
	"github.com/polydev-ai/polygate/internal/credits"
	"github.com/polydev-ai/polygate/internal/keystore"
	"github.com/polydev-ai/polygate/internal/mcpserv"
	"github.com/polydev-ai/polygate/internal/metrics"
	"github.com/polydev-ai/polygate/internal/observability"
	"github.com/polydev-ai/polygate/internal/orchestrate"
	"github.com/polydev-ai/polygate/internal/quota"
	"github.com/polydev-ai/polygate/internal/registry"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	// Bootstrap logger covers startup before the config is loaded.
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfgManager, err := config.NewManager(*configPath, bootLogger)
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	logger := buildLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("starting polygate gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown error", "error", err)
		}
	}()

	// Provider registry: builtins, then config overrides, then disables.
	reg := registry.New()
	adminKeys := keystore.NewMemoryStore()
	for id, override := range cfg.Providers.Overrides {
		d, ok := reg.Get(id)
		if !ok {
			logger.Warn("override for unknown provider ignored", "provider", id)
			continue
		}
		desc := *d
		if override.BaseURL != "" {
			desc.BaseURL = override.BaseURL
		}
		if len(override.ExtraHeaders) > 0 {
			desc.ExtraHeaders = override.ExtraHeaders
		}
		if err := reg.Register(desc); err != nil {
			logger.Error("failed to apply provider override", "provider", id, "error", err)
			os.Exit(1)
		}
		if override.APIKey != "" {
			_ = adminKeys.SetAdminKey(ctx, id, override.APIKey)
		}
	}
	for _, id := range cfg.Providers.Disabled {
		reg.Deregister(id)
		logger.Info("provider disabled", "provider", id)
	}

	keys, keyWriter, err := buildKeystore(ctx, cfg.Keystore, adminKeys)
	if err != nil {
		logger.Error("failed to initialize keystore", "error", err)
		os.Exit(1)
	}

	quotaStore, closeQuota, err := buildQuotaStore(ctx, cfg.Quota)
	if err != nil {
		logger.Error("failed to initialize quota store", "error", err)
		os.Exit(1)
	}
	defer closeQuota()
	gate := quota.NewGate(quotaStore, cfg.Quota.TierLimits(), logger)

	creditMgr := buildCredits(cfg.Credits, logger)

	var cliRunner *cliexec.Runner
	if cfg.CLI.Enabled {
		cliRunner = cliexec.NewRunner(logger)
		cliRunner.SetDisabled(cfg.CLI.DisabledTools)
	}

	catalog := quota.NewCatalog()
	resolver := orchestrate.NewResolver(reg, catalog, keys, creditMgr, cliRunner, logger)

	var observer orchestrate.Observer
	if cfg.Metrics.Enabled {
		observer = metrics.NewRecorder()
	}
	orch := orchestrate.New(orchestrate.Config{
		Registry: reg,
		Catalog:  catalog,
		Resolver: resolver,
		Gate:     gate,
		Credits:  creditMgr,
		CLI:      cliRunner,
		Logger:   logger,
		Observer: observer,
	})

	handler := api.NewHandler(api.HandlerConfig{
		Orchestrator: orch,
		Registry:     reg,
		Catalog:      catalog,
		Gate:         gate,
		Credits:      creditMgr,
		Keys:         keyWriter,
		CLI:          cliRunner,
		Config:       cfgManager,
		Logger:       logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.Handler())
	}

	if cfg.MCP.Enabled {
		mcpServer := mcpserv.New(orch, logger)
		mux.Handle(cfg.MCP.Path, mcpServer.HTTPHandler())
		logger.Info("mcp server mounted", "path", cfg.MCP.Path)
	}

	var httpHandler http.Handler = mux
	if cfg.RateLimit.Enabled {
		limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
		httpHandler = handler.RateLimitMiddleware(limiter)(httpHandler)
	}
	httpHandler = handler.AuthMiddleware(api.AuthConfig{
		Enabled: cfg.Auth.Enabled,
		Secret:  cfg.Auth.JWTSecret,
		Issuer:  cfg.Auth.Issuer,
	})(httpHandler)
	if cfg.Metrics.Enabled {
		httpHandler = metrics.Middleware(httpHandler)
	}
	httpHandler = observability.RequestIDMiddleware(httpHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	cfgManager.Close()
	logger.Info("server stopped")
}

func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return observability.NewLogger(observability.LoggerConfig{
		Level:      level,
		Output:     os.Stdout,
		JSONFormat: strings.ToLower(cfg.Format) != "text",
	}, observability.NewRedactor())
}

// buildKeystore layers credential stores. The memory store always sits on
// top: it holds admin keys from config overrides plus keys set at runtime
// through the API. The env store always sits at the bottom so operators can
// patch single keys without touching the backend.
func buildKeystore(ctx context.Context, cfg config.KeystoreConfig, mem *keystore.MemoryStore) (keystore.Store, keystore.Writer, error) {
	layers := keystore.Layered{mem}
	writer := keystore.Writer(mem)

	if len(cfg.OAuth) > 0 {
		oauthStore := keystore.NewOAuthStore()
		for provider, cred := range cfg.OAuth {
			oauthStore.Configure(ctx, provider, clientcredentials.Config{
				ClientID:     cred.ClientID,
				ClientSecret: cred.ClientSecret,
				TokenURL:     cred.TokenURL,
				Scopes:       cred.Scopes,
			})
		}
		layers = append(layers, oauthStore)
	}

	if cfg.Backend == "vault" {
		vaultCfg := vault.DefaultConfig()
		vaultCfg.Address = cfg.VaultAddr
		client, err := vault.NewClient(vaultCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("vault keystore: %w", err)
		}
		if cfg.VaultToken != "" {
			client.SetToken(cfg.VaultToken)
		}
		store := keystore.NewVaultStoreWithClient(client, cfg.VaultMount)
		layers = append(layers, store)
		writer = store
	}

	layers = append(layers, keystore.NewEnvStore())
	return layers, writer, nil
}

func buildQuotaStore(ctx context.Context, cfg config.QuotaConfig) (quota.Store, func(), error) {
	switch cfg.Backend {
	case "postgres":
		store, err := quota.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres quota store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return quota.NewRedisStore(client), func() { _ = client.Close() }, nil
	default:
		return quota.NewMemoryStore(), func() {}, nil
	}
}

// buildCredits returns a manager even when credits are disabled; a memory
// ledger with no balance means the credits source never activates.
func buildCredits(cfg config.CreditsConfig, logger *slog.Logger) *credits.Manager {
	if !cfg.Enabled {
		return credits.NewManager(credits.NewMemoryLedger(), nil, logger)
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ledger := credits.NewRedisLedger(client)

	var aggregator *credits.AggregatorClient
	if cfg.ProvisioningKey != "" {
		opts := []credits.AggregatorOption{}
		if cfg.AggregatorURL != "" {
			opts = append(opts, credits.WithAggregatorBaseURL(cfg.AggregatorURL))
		}
		aggregator = credits.NewAggregatorClient(cfg.ProvisioningKey, opts...)
	}
	return credits.NewManager(ledger, aggregator, logger)
}
