package credits

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerBackends(t *testing.T) map[string]Ledger {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return map[string]Ledger{
		"memory": NewMemoryLedger(),
		"redis":  NewRedisLedger(client),
	}
}

func TestLedgerAddAndBalance(t *testing.T) {
	for name, ledger := range ledgerBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			balance, err := ledger.Balance(ctx, "u1")
			require.NoError(t, err)
			assert.Zero(t, balance)

			balance, err = ledger.Add(ctx, "u1", 10)
			require.NoError(t, err)
			assert.InDelta(t, 10, balance, 1e-9)

			balance, err = ledger.Add(ctx, "u1", 2.5)
			require.NoError(t, err)
			assert.InDelta(t, 12.5, balance, 1e-9)
		})
	}
}

func TestLedgerDeduct(t *testing.T) {
	for name, ledger := range ledgerBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := ledger.Add(ctx, "u1", 5)
			require.NoError(t, err)

			balance, err := ledger.Deduct(ctx, "u1", 1.25)
			require.NoError(t, err)
			assert.InDelta(t, 3.75, balance, 1e-9)

			spent, err := ledger.TotalSpent(ctx, "u1")
			require.NoError(t, err)
			assert.InDelta(t, 1.25, spent, 1e-9)

			_, err = ledger.Deduct(ctx, "u1", 100)
			assert.ErrorIs(t, err, ErrInsufficientBalance)

			// Balance is untouched by the failed deduction.
			balance, err = ledger.Balance(ctx, "u1")
			require.NoError(t, err)
			assert.InDelta(t, 3.75, balance, 1e-9)
		})
	}
}
