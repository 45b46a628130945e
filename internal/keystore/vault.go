package keystore

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

const vaultKeyField = "api_key"

// VaultStore reads keys from a Vault KV v2 mount. Layout:
//
//	{mount}/polygate/admin/{provider}        api_key=...
//	{mount}/polygate/users/{user}/{provider} api_key=...
type VaultStore struct {
	kv *vault.KVv2
}

// NewVaultStore connects using the standard VAULT_ADDR/VAULT_TOKEN
// environment when cfg is nil.
func NewVaultStore(cfg *vault.Config, mount string) (*VaultStore, error) {
	if cfg == nil {
		cfg = vault.DefaultConfig()
	}
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect vault: %w", err)
	}
	if mount == "" {
		mount = "secret"
	}
	return &VaultStore{kv: client.KVv2(mount)}, nil
}

// NewVaultStoreWithClient wraps an existing client, mainly for tests.
func NewVaultStoreWithClient(client *vault.Client, mount string) *VaultStore {
	if mount == "" {
		mount = "secret"
	}
	return &VaultStore{kv: client.KVv2(mount)}
}

func (s *VaultStore) read(ctx context.Context, path string) (string, bool, error) {
	secret, err := s.kv.Get(ctx, path)
	if err != nil {
		if isVaultNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("vault read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", false, nil
	}
	key, _ := secret.Data[vaultKeyField].(string)
	return key, key != "", nil
}

func isVaultNotFound(err error) bool {
	if respErr, ok := err.(*vault.ResponseError); ok {
		return respErr.StatusCode == 404
	}
	return strings.Contains(err.Error(), "secret not found")
}

func (s *VaultStore) UserKey(ctx context.Context, userID, provider string) (string, bool, error) {
	return s.read(ctx, fmt.Sprintf("polygate/users/%s/%s", userID, provider))
}

func (s *VaultStore) AdminKey(ctx context.Context, provider string) (string, bool, error) {
	return s.read(ctx, "polygate/admin/"+provider)
}

func (s *VaultStore) SetUserKey(ctx context.Context, userID, provider, key string) error {
	path := fmt.Sprintf("polygate/users/%s/%s", userID, provider)
	if _, err := s.kv.Put(ctx, path, map[string]interface{}{vaultKeyField: key}); err != nil {
		return fmt.Errorf("vault write %s: %w", path, err)
	}
	return nil
}

func (s *VaultStore) SetAdminKey(ctx context.Context, provider, key string) error {
	path := "polygate/admin/" + provider
	if _, err := s.kv.Put(ctx, path, map[string]interface{}{vaultKeyField: key}); err != nil {
		return fmt.Errorf("vault write %s: %w", path, err)
	}
	return nil
}

func (s *VaultStore) DeleteUserKey(ctx context.Context, userID, provider string) error {
	path := fmt.Sprintf("polygate/users/%s/%s", userID, provider)
	if err := s.kv.Delete(ctx, path); err != nil {
		return fmt.Errorf("vault delete %s: %w", path, err)
	}
	return nil
}
