// Package keystore resolves provider API keys: per-user keys supplied by
// account holders and operator-owned admin keys. Backends share one
// interface so deployments can pick env vars, memory, or Vault.
package keystore

import "context"

// Store looks up credentials. A missing key is (_, false, nil); errors are
// reserved for backend failures.
type Store interface {
	// UserKey returns the user's own key for a provider.
	UserKey(ctx context.Context, userID, provider string) (string, bool, error)

	// AdminKey returns the operator's key for a provider.
	AdminKey(ctx context.Context, provider string) (string, bool, error)
}

// Writer is implemented by backends that accept key updates.
type Writer interface {
	SetUserKey(ctx context.Context, userID, provider, key string) error
	SetAdminKey(ctx context.Context, provider, key string) error
	DeleteUserKey(ctx context.Context, userID, provider string) error
}
