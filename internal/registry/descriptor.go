// Package registry holds the static provider catalog: who the gateway can
// talk to, how to authenticate, and which wire family each endpoint speaks.
package registry

import "github.com/polydev-ai/polygate/internal/ratelimit"

// AuthType describes how a provider authenticates requests.
type AuthType string

const (
	AuthAPIKey AuthType = "api_key"
	AuthOAuth  AuthType = "oauth"
	AuthCLI    AuthType = "cli"
	AuthNone   AuthType = "none"
)

// WireFamily selects the request/response transformer for a provider.
type WireFamily string

const (
	FamilyOpenAI    WireFamily = "openai"
	FamilyAnthropic WireFamily = "anthropic"
	FamilyGoogle    WireFamily = "google"
)

// RetryProfile names the retry policy class a provider defaults to.
type RetryProfile string

const (
	RetryNetwork     RetryProfile = "network"
	RetryRateLimit   RetryProfile = "rate_limit"
	RetryServerError RetryProfile = "server_error"
)

// Descriptor is the full static configuration for one provider.
type Descriptor struct {
	ID           string
	DisplayName  string
	BaseURL      string
	AuthType     AuthType
	WireFamily   WireFamily
	APIKeyHeader string
	APIKeyPrefix string
	ExtraHeaders map[string]string
	DefaultModel string

	// ModelPrefixes matches bare model names onto this provider.
	ModelPrefixes []string

	Limits       ratelimit.Limits
	RetryProfile RetryProfile
}

// IsCLI reports whether the provider runs through a local CLI tool rather
// than HTTP.
func (d *Descriptor) IsCLI() bool {
	return d.AuthType == AuthCLI
}

// CLICommand returns the executable behind a cli:// base URL, or "".
func (d *Descriptor) CLICommand() string {
	const scheme = "cli://"
	if len(d.BaseURL) > len(scheme) && d.BaseURL[:len(scheme)] == scheme {
		return d.BaseURL[len(scheme):]
	}
	return ""
}
