package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client)
}

func TestRedisStoreTierUsage(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordUsage(ctx, UsageRow{UserID: "u1", Model: "gpt-4o", Tier: TierNormal, Cost: 0.1, At: now}))
	require.NoError(t, store.RecordUsage(ctx, UsageRow{UserID: "u1", Model: "gpt-4o", Tier: TierNormal, Cost: 0.2, At: now}))
	require.NoError(t, store.RecordUsage(ctx, UsageRow{UserID: "u1", Model: "gpt-5-mini", Tier: TierEco, Cost: 0.05, At: now}))

	usage, err := store.TierUsage(ctx, "u1", "2026-09")
	require.NoError(t, err)
	assert.Equal(t, 2, usage[TierNormal])
	assert.Equal(t, 1, usage[TierEco])

	usage, err = store.TierUsage(ctx, "u1", "2026-08")
	require.NoError(t, err)
	assert.Empty(t, usage)
}

func TestRedisStoreSpend(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordUsage(ctx, UsageRow{UserID: "u1", Tier: TierNormal, Cost: 0.1, At: now}))
	require.NoError(t, store.RecordUsage(ctx, UsageRow{UserID: "u1", Tier: TierNormal, Cost: 0.15, At: now}))

	total, err := store.Spend(ctx, "u1", "2026-09")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, total, 1e-9)

	total, err = store.Spend(ctx, "u2", "2026-09")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestGateWithRedisStore(t *testing.T) {
	store := newRedisStore(t)
	gate := NewGate(store, Limits{TierNormal: 1}, discardLogger())
	info := ModelInfo{FriendlyID: "gpt-4o", Provider: "openai", Tier: TierNormal}
	ctx := context.Background()

	require.NoError(t, gate.Check(ctx, "u1", info))
	gate.Deduct(ctx, UsageRow{UserID: "u1", Model: "gpt-4o", Provider: "openai", Tier: TierNormal})
	assert.Error(t, gate.Check(ctx, "u1", info))
}
