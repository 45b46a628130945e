package keystore

import (
	"context"
	"sync"
)

// MemoryStore keeps keys in process. Used by tests and single-node setups
// that load keys from config at startup.
type MemoryStore struct {
	mu    sync.RWMutex
	user  map[string]map[string]string
	admin map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		user:  map[string]map[string]string{},
		admin: map[string]string{},
	}
}

func (s *MemoryStore) UserKey(_ context.Context, userID, provider string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.user[userID][provider]
	return key, ok && key != "", nil
}

func (s *MemoryStore) AdminKey(_ context.Context, provider string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.admin[provider]
	return key, ok && key != "", nil
}

func (s *MemoryStore) SetUserKey(_ context.Context, userID, provider, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user[userID] == nil {
		s.user[userID] = map[string]string{}
	}
	s.user[userID][provider] = key
	return nil
}

func (s *MemoryStore) SetAdminKey(_ context.Context, provider, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admin[provider] = key
	return nil
}

func (s *MemoryStore) DeleteUserKey(_ context.Context, userID, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.user[userID], provider)
	return nil
}
