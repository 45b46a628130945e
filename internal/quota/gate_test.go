package quota

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestGateAllowsUnderLimit(t *testing.T) {
	gate := NewGate(NewMemoryStore(), Limits{TierNormal: 2}, discardLogger())
	info := ModelInfo{FriendlyID: "gpt-4o", Provider: "openai", Tier: TierNormal}
	assert.NoError(t, gate.Check(context.Background(), "u1", info))
}

func TestGateBlocksAtLimit(t *testing.T) {
	store := NewMemoryStore()
	gate := NewGate(store, Limits{TierNormal: 2}, discardLogger())
	info := ModelInfo{FriendlyID: "gpt-4o", Provider: "openai", Tier: TierNormal}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, gate.Check(ctx, "u1", info))
		gate.Deduct(ctx, UsageRow{UserID: "u1", Model: "gpt-4o", Provider: "openai", Tier: TierNormal, Source: "admin_key"})
	}

	err := gate.Check(ctx, "u1", info)
	require.Error(t, err)
	assert.True(t, gwerrors.IsQuotaExceeded(err))

	// A different user is unaffected.
	assert.NoError(t, gate.Check(ctx, "u2", info))
	// A tier with no configured limit is unlimited.
	assert.NoError(t, gate.Check(ctx, "u1", ModelInfo{FriendlyID: "gpt-5-mini", Provider: "openai", Tier: TierEco}))
}

func TestGateMonthRollover(t *testing.T) {
	store := NewMemoryStore()
	gate := NewGate(store, Limits{TierEco: 1}, discardLogger())
	info := ModelInfo{FriendlyID: "gpt-5-mini", Provider: "openai", Tier: TierEco}
	ctx := context.Background()

	base := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	gate.now = func() time.Time { return base }
	gate.Deduct(ctx, UsageRow{UserID: "u1", Tier: TierEco})
	require.Error(t, gate.Check(ctx, "u1", info))

	gate.now = func() time.Time { return base.AddDate(0, 1, 0) }
	assert.NoError(t, gate.Check(ctx, "u1", info))
}

func TestGateRemaining(t *testing.T) {
	store := NewMemoryStore()
	gate := NewGate(store, Limits{TierPremium: 3, TierEco: 1}, discardLogger())
	ctx := context.Background()
	gate.Deduct(ctx, UsageRow{UserID: "u1", Tier: TierPremium})
	gate.Deduct(ctx, UsageRow{UserID: "u1", Tier: TierEco})
	gate.Deduct(ctx, UsageRow{UserID: "u1", Tier: TierEco})

	rem, err := gate.Remaining(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, rem[TierPremium])
	assert.Equal(t, 0, rem[TierEco])
}

func TestMemoryStoreSpend(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordUsage(ctx, UsageRow{UserID: "u1", Tier: TierNormal, Cost: 0.25, At: now}))
	require.NoError(t, store.RecordUsage(ctx, UsageRow{UserID: "u1", Tier: TierEco, Cost: 0.05, At: now}))
	require.NoError(t, store.RecordUsage(ctx, UsageRow{UserID: "u2", Tier: TierEco, Cost: 1.0, At: now}))

	total, err := store.Spend(ctx, "u1", "2026-09")
	require.NoError(t, err)
	assert.InDelta(t, 0.30, total, 1e-9)

	total, err = store.Spend(ctx, "u1", "2026-08")
	require.NoError(t, err)
	assert.Zero(t, total)
}
