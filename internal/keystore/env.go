package keystore

import (
	"context"
	"os"
	"strings"
)

// EnvStore reads admin keys from the environment using the conventional
// {PROVIDER}_API_KEY names (dashes become underscores). It never holds user
// keys; layer a MemoryStore or VaultStore in front for those.
type EnvStore struct {
	lookup func(string) (string, bool)
}

func NewEnvStore() *EnvStore {
	return &EnvStore{lookup: os.LookupEnv}
}

// EnvVarName returns the variable consulted for a provider.
func EnvVarName(provider string) string {
	name := strings.ToUpper(strings.ReplaceAll(provider, "-", "_"))
	return name + "_API_KEY"
}

func (s *EnvStore) UserKey(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

func (s *EnvStore) AdminKey(_ context.Context, provider string) (string, bool, error) {
	key, ok := s.lookup(EnvVarName(provider))
	return key, ok && key != "", nil
}

// Layered queries stores in order and returns the first hit. Lookup errors
// stop the chain.
type Layered []Store

func (l Layered) UserKey(ctx context.Context, userID, provider string) (string, bool, error) {
	for _, store := range l {
		key, ok, err := store.UserKey(ctx, userID, provider)
		if err != nil {
			return "", false, err
		}
		if ok {
			return key, true, nil
		}
	}
	return "", false, nil
}

func (l Layered) AdminKey(ctx context.Context, provider string) (string, bool, error) {
	for _, store := range l {
		key, ok, err := store.AdminKey(ctx, provider)
		if err != nil {
			return "", false, err
		}
		if ok {
			return key, true, nil
		}
	}
	return "", false, nil
}
