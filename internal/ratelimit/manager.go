package ratelimit

import "sync"

// Manager keeps one limiter per provider, created lazily with the limits
// registered for that provider.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	limits   map[string]Limits
}

// NewManager creates a manager seeded with per-provider limits.
func NewManager(limits map[string]Limits) *Manager {
	m := &Manager{
		limiters: make(map[string]*Limiter),
		limits:   make(map[string]Limits, len(limits)),
	}
	for name, l := range limits {
		m.limits[name] = l
	}
	return m
}

// For returns the limiter for a provider, creating it on first use.
func (m *Manager) For(provider string) *Limiter {
	m.mu.RLock()
	l, ok := m.limiters[provider]
	m.mu.RUnlock()
	if ok {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok = m.limiters[provider]; ok {
		return l
	}
	l = New(m.limits[provider])
	m.limiters[provider] = l
	return l
}

// SetLimits replaces the limits used for future limiters of a provider.
// Existing limiters keep their configuration; config reload recreates them
// by provider name churn, not in place.
func (m *Manager) SetLimits(provider string, limits Limits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits[provider] = limits
	delete(m.limiters, provider)
}
