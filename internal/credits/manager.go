package credits

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
)

// SpendRecord captures one aggregator-billed request.
type SpendRecord struct {
	UserID           string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Cost             float64
}

// Manager fronts the ledger and the aggregator: balance checks before a
// credits attempt, provisioning of per-user keys, spend recording after.
type Manager struct {
	ledger     Ledger
	aggregator *AggregatorClient
	logger     *slog.Logger

	mu   sync.Mutex
	keys map[string]*ProvisionedKey
}

// NewManager wires a manager. aggregator may be nil when key provisioning
// is not configured; balance operations still work.
func NewManager(ledger Ledger, aggregator *AggregatorClient, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		ledger:     ledger,
		aggregator: aggregator,
		logger:     logger,
		keys:       map[string]*ProvisionedKey{},
	}
}

// Balance returns the user's spendable credits.
func (m *Manager) Balance(ctx context.Context, userID string) (float64, error) {
	return m.ledger.Balance(ctx, userID)
}

// TotalSpent returns the user's lifetime pooled-credit spend.
func (m *Manager) TotalSpent(ctx context.Context, userID string) (float64, error) {
	return m.ledger.TotalSpent(ctx, userID)
}

// CanServe reports whether the user's balance covers an estimated cost.
func (m *Manager) CanServe(ctx context.Context, userID string, estimatedCost float64) (bool, error) {
	balance, err := m.ledger.Balance(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("credit balance for user %s: %w", userID, err)
	}
	return balance > 0 && balance >= estimatedCost, nil
}

// RecordSpend debits the ledger for a completed aggregator request. An
// insufficient balance at this point means the estimate was low; the ledger
// error is translated to the gateway taxonomy.
func (m *Manager) RecordSpend(ctx context.Context, rec SpendRecord) error {
	if rec.Cost <= 0 {
		return nil
	}
	balance, err := m.ledger.Deduct(ctx, rec.UserID, rec.Cost)
	if err == ErrInsufficientBalance {
		return gwerrors.NewQuotaExceededError("openrouter", rec.Model,
			fmt.Sprintf("credit balance %.4f cannot cover %.4f", balance, rec.Cost))
	}
	if err != nil {
		return fmt.Errorf("deduct credits for user %s: %w", rec.UserID, err)
	}
	m.logger.Info("credits spent",
		"user_id", rec.UserID,
		"model", rec.Model,
		"cost", rec.Cost,
		"balance", balance,
	)
	return nil
}

// ProvisionUserKey returns the user's aggregator key, creating one on first
// use. limit is an optional USD cap applied at creation.
func (m *Manager) ProvisionUserKey(ctx context.Context, userID string, limit *float64) (*ProvisionedKey, error) {
	if m.aggregator == nil {
		return nil, fmt.Errorf("aggregator provisioning is not configured")
	}

	m.mu.Lock()
	if key, ok := m.keys[userID]; ok {
		m.mu.Unlock()
		return key, nil
	}
	m.mu.Unlock()

	key, err := m.aggregator.CreateKey(ctx, "polygate_user_"+userID, limit)
	if err != nil {
		return nil, fmt.Errorf("provision aggregator key for user %s: %w", userID, err)
	}

	m.mu.Lock()
	m.keys[userID] = key
	m.mu.Unlock()

	m.logger.Info("aggregator key provisioned", "user_id", userID, "label", key.Label)
	return key, nil
}

// RevokeUserKey deletes the user's aggregator key if one was provisioned.
func (m *Manager) RevokeUserKey(ctx context.Context, userID string) error {
	m.mu.Lock()
	key, ok := m.keys[userID]
	delete(m.keys, userID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if err := m.aggregator.DeleteKey(ctx, key.Hash); err != nil {
		return fmt.Errorf("revoke aggregator key for user %s: %w", userID, err)
	}
	return nil
}
