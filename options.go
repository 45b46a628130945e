package polygate

import (
	"log/slog"
	"net/http"
)

// ClientConfig holds configuration assembled from Options.
type ClientConfig struct {
	Logger      *slog.Logger
	HTTPClient  *http.Client
	DefaultUser string

	// ProviderKeys are admin keys by provider id. Keys found in the
	// environment (e.g. OPENAI_API_KEY) are picked up without an option.
	ProviderKeys map[string]string

	// BaseURLs override provider endpoints, mainly for proxies and tests.
	BaseURLs map[string]string

	// Disabled providers are removed from routing.
	Disabled []string

	// QuotaLimits sets monthly per-tier request limits, keyed by tier name
	// (premium, normal, eco). Zero limits fall back to the defaults.
	QuotaLimits map[string]int

	// EnableCLI turns on routing through locally installed CLI tools.
	EnableCLI bool
}

func defaultConfig() *ClientConfig {
	return &ClientConfig{
		Logger:       slog.Default(),
		DefaultUser:  "anonymous",
		ProviderKeys: make(map[string]string),
		BaseURLs:     make(map[string]string),
	}
}

// Option configures a Client.
type Option func(*ClientConfig)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ClientConfig) { c.HTTPClient = hc }
}

// WithProviderKey sets an admin key for a provider.
func WithProviderKey(provider, key string) Option {
	return func(c *ClientConfig) { c.ProviderKeys[provider] = key }
}

// WithBaseURL overrides a provider's endpoint.
func WithBaseURL(provider, url string) Option {
	return func(c *ClientConfig) { c.BaseURLs[provider] = url }
}

// WithoutProvider removes a provider from routing.
func WithoutProvider(provider string) Option {
	return func(c *ClientConfig) { c.Disabled = append(c.Disabled, provider) }
}

// WithQuotaLimits sets monthly per-tier request limits.
func WithQuotaLimits(limits map[string]int) Option {
	return func(c *ClientConfig) { c.QuotaLimits = limits }
}

// WithDefaultUser sets the account requests are attributed to when the
// per-call options leave it empty.
func WithDefaultUser(userID string) Option {
	return func(c *ClientConfig) {
		if userID != "" {
			c.DefaultUser = userID
		}
	}
}

// WithCLITools enables routing through locally installed CLI tools.
func WithCLITools() Option {
	return func(c *ClientConfig) { c.EnableCLI = true }
}
