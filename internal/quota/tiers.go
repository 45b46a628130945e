// Package quota gates operator-funded sources behind per-tier monthly
// limits and keeps the model cost catalog used for tier substitution.
package quota

import "sort"

// Tier classifies a model by cost.
type Tier string

const (
	TierPremium Tier = "premium"
	TierNormal  Tier = "normal"
	TierEco     Tier = "eco"
)

// TierOrder lists tiers from most to least expensive. Substitution walks
// this order downward from the rejected model's tier.
var TierOrder = []Tier{TierPremium, TierNormal, TierEco}

// LowerTiers returns the tiers cheaper than t, in walk order.
func (t Tier) LowerTiers() []Tier {
	for i, cand := range TierOrder {
		if cand == t {
			return TierOrder[i+1:]
		}
	}
	return nil
}

// ModelInfo describes one catalog entry: the friendly id users request, the
// provider-native id it maps to, and its pricing.
type ModelInfo struct {
	FriendlyID      string
	Provider        string
	ModelID         string
	DisplayName     string
	CreditCost      int
	InputCostPer1k  float64
	OutputCostPer1k float64
	Tier            Tier
}

// RequestCost prices a request under this model's rates.
func (m ModelInfo) RequestCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*m.InputCostPer1k + float64(outputTokens)/1000*m.OutputCostPer1k
}

// Catalog is the friendly-id keyed model table. Read-only after New.
type Catalog struct {
	models map[string]ModelInfo
}

func defaultModels() []ModelInfo {
	return []ModelInfo{
		{FriendlyID: "claude-opus-4-1", Provider: "anthropic", ModelID: "claude-opus-4-1-20250805", DisplayName: "Claude Opus 4.1", CreditCost: 1, InputCostPer1k: 0.015, OutputCostPer1k: 0.075, Tier: TierPremium},
		{FriendlyID: "gpt-5", Provider: "openai", ModelID: "gpt-5", DisplayName: "GPT-5", CreditCost: 1, InputCostPer1k: 0.00125, OutputCostPer1k: 0.01, Tier: TierPremium},
		{FriendlyID: "o3", Provider: "openai", ModelID: "o3", DisplayName: "OpenAI o3", CreditCost: 1, InputCostPer1k: 0.002, OutputCostPer1k: 0.008, Tier: TierPremium},
		{FriendlyID: "gemini-2.5-pro", Provider: "gemini", ModelID: "gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro", CreditCost: 1, InputCostPer1k: 0.00125, OutputCostPer1k: 0.01, Tier: TierPremium},
		{FriendlyID: "claude-sonnet-4", Provider: "anthropic", ModelID: "claude-sonnet-4-20250514", DisplayName: "Claude Sonnet 4", CreditCost: 1, InputCostPer1k: 0.003, OutputCostPer1k: 0.015, Tier: TierNormal},
		{FriendlyID: "gpt-4o", Provider: "openai", ModelID: "gpt-4o", DisplayName: "GPT-4o", CreditCost: 1, InputCostPer1k: 0.0025, OutputCostPer1k: 0.01, Tier: TierNormal},
		{FriendlyID: "grok-4.1-fast-reasoning", Provider: "xai", ModelID: "grok-4.1-fast-reasoning", DisplayName: "Grok 4.1 Fast Reasoning", CreditCost: 1, InputCostPer1k: 0.05, OutputCostPer1k: 0.2, Tier: TierNormal},
		{FriendlyID: "gpt-5-mini", Provider: "openai", ModelID: "gpt-5-mini", DisplayName: "GPT-5 Mini", CreditCost: 1, InputCostPer1k: 0.15, OutputCostPer1k: 0.6, Tier: TierEco},
		{FriendlyID: "gemini-3-flash", Provider: "gemini", ModelID: "gemini-3-flash", DisplayName: "Gemini 3 Flash", CreditCost: 1, InputCostPer1k: 0.075, OutputCostPer1k: 0.3, Tier: TierEco},
		{FriendlyID: "glm-4.7", Provider: "openrouter", ModelID: "z-ai/glm-4.7", DisplayName: "GLM-4.7", CreditCost: 1, InputCostPer1k: 0.0006, OutputCostPer1k: 0.0022, Tier: TierEco},
	}
}

// NewCatalog builds the built-in catalog.
func NewCatalog() *Catalog {
	return NewCatalogWith(defaultModels())
}

// NewCatalogWith builds a catalog from explicit entries.
func NewCatalogWith(models []ModelInfo) *Catalog {
	c := &Catalog{models: make(map[string]ModelInfo, len(models))}
	for _, m := range models {
		c.models[m.FriendlyID] = m
	}
	return c
}

// Lookup returns the entry for a friendly id.
func (c *Catalog) Lookup(friendlyID string) (ModelInfo, bool) {
	m, ok := c.models[friendlyID]
	return m, ok
}

// All returns every entry sorted by friendly id.
func (c *Catalog) All() []ModelInfo {
	out := make([]ModelInfo, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FriendlyID < out[j].FriendlyID })
	return out
}

// ByTier returns a tier's entries ordered by provider id then friendly id,
// so substitution walks are deterministic.
func (c *Catalog) ByTier(tier Tier) []ModelInfo {
	var out []ModelInfo
	for _, m := range c.models {
		if m.Tier == tier {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].FriendlyID < out[j].FriendlyID
	})
	return out
}

// Substitutes lists replacement candidates for a rejected model: the same
// tier first (other entries), then each lower tier, every group in ByTier
// order.
func (c *Catalog) Substitutes(info ModelInfo) []ModelInfo {
	var out []ModelInfo
	for _, m := range c.ByTier(info.Tier) {
		if m.FriendlyID != info.FriendlyID {
			out = append(out, m)
		}
	}
	for _, tier := range info.Tier.LowerTiers() {
		out = append(out, c.ByTier(tier)...)
	}
	return out
}

// Resolve maps a friendly id to the provider-native id for the given
// provider. ok is false when the entry belongs to a different provider.
func (c *Catalog) Resolve(friendlyID, provider string) (string, bool) {
	m, ok := c.models[friendlyID]
	if !ok || m.Provider != provider {
		return "", false
	}
	return m.ModelID, true
}

// ReverseScoped maps a provider-native id back to its friendly id within one
// provider's entries.
func (c *Catalog) ReverseScoped(modelID, provider string) (string, bool) {
	for _, m := range c.All() {
		if m.Provider == provider && m.ModelID == modelID {
			return m.FriendlyID, true
		}
	}
	return "", false
}

// ReverseUnscoped maps a provider-native id back to a friendly id across all
// providers; the lexicographically first match wins.
func (c *Catalog) ReverseUnscoped(modelID string) (string, bool) {
	for _, m := range c.All() {
		if m.ModelID == modelID {
			return m.FriendlyID, true
		}
	}
	return "", false
}
