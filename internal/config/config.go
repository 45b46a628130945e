// Package config loads gateway configuration from YAML with environment
// expansion and hot-reload support. Reloads swap an atomic pointer so
// in-flight requests never observe a partially applied config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/polydev-ai/polygate/internal/quota"
)

// Config is the complete gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Providers ProvidersConfig `yaml:"providers"`
	Quota     QuotaConfig     `yaml:"quota"`
	Credits   CreditsConfig   `yaml:"credits"`
	Keystore  KeystoreConfig  `yaml:"keystore"`
	CLI       CLIConfig       `yaml:"cli"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// AuthConfig controls inbound request authentication.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	JWTSecret string `yaml:"jwt_secret"`

	// Issuer, when set, is enforced against token claims.
	Issuer string `yaml:"issuer"`
}

// ProvidersConfig carries per-provider overrides on top of the builtin
// registry.
type ProvidersConfig struct {
	// Overrides are keyed by provider id.
	Overrides map[string]ProviderOverride `yaml:"overrides"`

	// Disabled providers are removed from routing.
	Disabled []string `yaml:"disabled"`
}

// ProviderOverride adjusts one registry descriptor.
type ProviderOverride struct {
	BaseURL      string            `yaml:"base_url"`
	APIKey       string            `yaml:"api_key"`
	ExtraHeaders map[string]string `yaml:"extra_headers"`
}

// QuotaConfig selects the usage store and the monthly per-tier limits.
type QuotaConfig struct {
	// Backend is one of memory, postgres, redis.
	Backend     string         `yaml:"backend"`
	PostgresDSN string         `yaml:"postgres_dsn"`
	RedisAddr   string         `yaml:"redis_addr"`
	Limits      map[string]int `yaml:"limits"`
}

// TierLimits converts the YAML limit map onto quota tiers. Unknown tier
// names are rejected by Validate, so this never drops entries.
func (q QuotaConfig) TierLimits() quota.Limits {
	if len(q.Limits) == 0 {
		return quota.DefaultLimits
	}
	out := make(quota.Limits, len(q.Limits))
	for name, limit := range q.Limits {
		out[quota.Tier(name)] = limit
	}
	return out
}

// CreditsConfig configures the pooled-credit ledger and the aggregator
// provisioning client.
type CreditsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	RedisAddr       string `yaml:"redis_addr"`
	ProvisioningKey string `yaml:"provisioning_key"`
	AggregatorURL   string `yaml:"aggregator_url"`
}

// KeystoreConfig selects where provider credentials live.
type KeystoreConfig struct {
	// Backend is one of env, vault, memory. The env backend always layers
	// under the configured one so operators can patch single keys quickly.
	Backend    string `yaml:"backend"`
	VaultAddr  string `yaml:"vault_addr"`
	VaultToken string `yaml:"vault_token"`
	VaultMount string `yaml:"vault_mount"`

	// OAuth configures client-credential token minting per provider, for
	// endpoints fronted by a token service instead of static keys.
	OAuth map[string]OAuthCredentials `yaml:"oauth"`
}

// OAuthCredentials is one provider's client-credential grant.
type OAuthCredentials struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

// CLIConfig controls local CLI tool routing.
type CLIConfig struct {
	Enabled       bool     `yaml:"enabled"`
	DisabledTools []string `yaml:"disabled_tools"`
}

// RateLimitConfig bounds inbound requests per client.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	BurstSize         int  `yaml:"burst_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
	Insecure    bool    `yaml:"insecure"`
}

// MCPConfig controls the embedded MCP tool server.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Providers: ProvidersConfig{},
		Quota: QuotaConfig{
			Backend: "memory",
		},
		Keystore: KeystoreConfig{
			Backend:    "env",
			VaultMount: "secret",
		},
		CLI: CLIConfig{
			Enabled: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			ServiceName: "polygate",
			SampleRate:  1.0,
			Insecure:    true,
		},
		MCP: MCPConfig{
			Enabled: false,
			Path:    "/mcp",
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file. Environment
// variables in the format ${VAR_NAME} are expanded before parsing.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

var validTiers = map[string]bool{
	string(quota.TierPremium): true,
	string(quota.TierNormal):  true,
	string(quota.TierEco):     true,
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}

	switch c.Quota.Backend {
	case "", "memory":
	case "postgres":
		if c.Quota.PostgresDSN == "" {
			return fmt.Errorf("quota.postgres_dsn is required for the postgres backend")
		}
	case "redis":
		if c.Quota.RedisAddr == "" {
			return fmt.Errorf("quota.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown quota backend %q", c.Quota.Backend)
	}
	for name, limit := range c.Quota.Limits {
		if !validTiers[name] {
			return fmt.Errorf("unknown quota tier %q", name)
		}
		if limit < 0 {
			return fmt.Errorf("quota limit for tier %q cannot be negative", name)
		}
	}

	if c.Credits.Enabled && c.Credits.RedisAddr == "" {
		return fmt.Errorf("credits.redis_addr is required when credits are enabled")
	}

	switch c.Keystore.Backend {
	case "", "env", "memory":
	case "vault":
		if c.Keystore.VaultAddr == "" {
			return fmt.Errorf("keystore.vault_addr is required for the vault backend")
		}
	default:
		return fmt.Errorf("unknown keystore backend %q", c.Keystore.Backend)
	}
	for provider, cred := range c.Keystore.OAuth {
		if cred.ClientID == "" || cred.TokenURL == "" {
			return fmt.Errorf("keystore.oauth.%s needs client_id and token_url", provider)
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate_limit.requests_per_minute must be positive")
		}
		if c.RateLimit.BurstSize <= 0 {
			return fmt.Errorf("rate_limit.burst_size must be positive")
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
		}
	}

	return nil
}
