package quota

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres boots a throwaway Postgres container. Container tests are
// opt-in because testcontainers host discovery panics, rather than erroring,
// on machines with no Docker socket at all.
func startPostgres(t *testing.T) string {
	t.Helper()
	if os.Getenv("POLYGATE_CONTAINER_TESTS") == "" {
		t.Skip("set POLYGATE_CONTAINER_TESTS=1 to run container-backed store tests")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "quota",
				"POSTGRES_PASSWORD": "quota",
				"POSTGRES_DB":       "quota",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("container runtime unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://quota:quota@%s:%s/quota?sslmode=disable", host, port.Port())
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	store, err := NewPostgresStore(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := time.Now().UTC()
	month := MonthKey(now)

	rows := []UsageRow{
		{UserID: "u1", SessionID: "s1", Model: "gpt-5", Provider: "openai", Tier: TierPremium, Source: "admin_key", InputTokens: 100, OutputTokens: 40, Cost: 0.02, At: now},
		{UserID: "u1", SessionID: "s1", Model: "gpt-4o", Provider: "openai", Tier: TierNormal, Source: "admin_key", InputTokens: 50, OutputTokens: 20, Cost: 0.005, At: now},
		{UserID: "u1", SessionID: "s2", Model: "gpt-5", Provider: "openai", Tier: TierPremium, Source: "credits", InputTokens: 80, OutputTokens: 30, Cost: 0.015, At: now},
		{UserID: "u2", SessionID: "s3", Model: "gpt-5", Provider: "openai", Tier: TierPremium, Source: "admin_key", InputTokens: 10, OutputTokens: 5, Cost: 0.001, At: now},
	}
	for _, row := range rows {
		require.NoError(t, store.RecordUsage(ctx, row))
	}

	t.Run("tier usage groups by tier and month", func(t *testing.T) {
		usage, err := store.TierUsage(ctx, "u1", month)
		require.NoError(t, err)
		assert.Equal(t, 2, usage[TierPremium])
		assert.Equal(t, 1, usage[TierNormal])
	})

	t.Run("tier usage isolates users", func(t *testing.T) {
		usage, err := store.TierUsage(ctx, "u2", month)
		require.NoError(t, err)
		assert.Equal(t, 1, usage[TierPremium])
		assert.Zero(t, usage[TierNormal])
	})

	t.Run("empty month has no usage", func(t *testing.T) {
		usage, err := store.TierUsage(ctx, "u1", "1999-01")
		require.NoError(t, err)
		assert.Empty(t, usage)
	})

	t.Run("spend sums cost per user", func(t *testing.T) {
		spend, err := store.Spend(ctx, "u1", month)
		require.NoError(t, err)
		assert.InDelta(t, 0.04, spend, 1e-9)
	})

	t.Run("gate walks store-backed usage", func(t *testing.T) {
		gate := NewGate(store, Limits{TierPremium: 2}, nil)
		info := ModelInfo{FriendlyID: "gpt-5", Provider: "openai", Tier: TierPremium}
		err := gate.Check(ctx, "u1", info)
		require.Error(t, err)
		err = gate.Check(ctx, "u2", info)
		require.NoError(t, err)
	})
}
