package keystore

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuthStore serves admin keys minted from OAuth client credentials, for
// providers fronted by a token endpoint rather than static keys. Token
// caching and refresh are handled by the oauth2 token source.
type OAuthStore struct {
	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

func NewOAuthStore() *OAuthStore {
	return &OAuthStore{sources: make(map[string]oauth2.TokenSource)}
}

// Configure registers a provider's token endpoint. The token source reuses
// tokens until they expire.
func (s *OAuthStore) Configure(ctx context.Context, provider string, cfg clientcredentials.Config) {
	s.mu.Lock()
	s.sources[provider] = cfg.TokenSource(ctx)
	s.mu.Unlock()
}

// AdminKey returns a live access token for the provider. Providers without
// an OAuth configuration report no key.
func (s *OAuthStore) AdminKey(_ context.Context, provider string) (string, bool, error) {
	s.mu.Lock()
	src, ok := s.sources[provider]
	s.mu.Unlock()
	if !ok {
		return "", false, nil
	}
	tok, err := src.Token()
	if err != nil {
		return "", false, fmt.Errorf("oauth token for %s: %w", provider, err)
	}
	return tok.AccessToken, true, nil
}

// UserKey always misses; OAuth credentials are operator-level.
func (s *OAuthStore) UserKey(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}
