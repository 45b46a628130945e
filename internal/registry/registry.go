package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/polydev-ai/polygate/internal/ratelimit"
)

// Registry indexes provider descriptors by id and resolves models onto
// providers.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
}

// New creates a registry preloaded with the builtin descriptors.
func New() *Registry {
	r := &Registry{descriptors: make(map[string]*Descriptor)}
	for _, d := range builtinDescriptors() {
		desc := d
		r.descriptors[desc.ID] = &desc
	}
	return r
}

// NewEmpty creates a registry without builtin descriptors, for tests and
// custom deployments.
func NewEmpty() *Registry {
	return &Registry{descriptors: make(map[string]*Descriptor)}
}

// Register adds or replaces a descriptor.
func (r *Registry) Register(d Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("descriptor id is required")
	}
	if d.WireFamily == "" {
		d.WireFamily = FamilyOpenAI
	}
	r.mu.Lock()
	r.descriptors[d.ID] = &d
	r.mu.Unlock()
	return nil
}

// Deregister removes a provider from routing. Removing an unknown id is a
// no-op.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	delete(r.descriptors, strings.ToLower(id))
	r.mu.Unlock()
}

// Get returns the descriptor for a provider id.
func (r *Registry) Get(id string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[strings.ToLower(id)]
	return d, ok
}

// List returns all descriptors ordered by id.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Limits returns the per-provider rate limits for every registered provider.
func (r *Registry) Limits() map[string]ratelimit.Limits {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]ratelimit.Limits, len(r.descriptors))
	for id, d := range r.descriptors {
		out[id] = d.Limits
	}
	return out
}

// DetermineProvider resolves a model name to a provider descriptor. Explicit
// "provider/model" prefixes win, then per-provider model prefixes, then name
// patterns mirroring common fleet conventions.
func (r *Registry) DetermineProvider(model string) (*Descriptor, bool) {
	lower := strings.ToLower(strings.TrimSpace(model))
	if lower == "" {
		return nil, false
	}

	// provider/model scoping.
	if idx := strings.Index(lower, "/"); idx > 0 {
		if d, ok := r.Get(lower[:idx]); ok {
			return d, true
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Longest prefix match across descriptors keeps resolution deterministic
	// when families overlap.
	var best *Descriptor
	bestLen := 0
	for _, d := range r.descriptors {
		for _, p := range d.ModelPrefixes {
			if strings.HasPrefix(lower, p) && len(p) > bestLen {
				best = d
				bestLen = len(p)
			}
		}
	}
	if best != nil {
		return best, true
	}

	// Family patterns for models no prefix claims.
	for _, fallback := range []struct {
		contains  string
		providers []string
	}{
		{"llama", []string{"openrouter", "groq"}},
		{"claude", []string{"anthropic"}},
		{"gemini", []string{"gemini"}},
	} {
		if strings.Contains(lower, fallback.contains) {
			for _, id := range fallback.providers {
				if d, ok := r.descriptors[id]; ok {
					return d, true
				}
			}
		}
	}

	for _, id := range []string{"openai", "openrouter"} {
		if d, ok := r.descriptors[id]; ok {
			return d, true
		}
	}
	return nil, false
}
