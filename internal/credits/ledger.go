// Package credits tracks the pooled balance behind the aggregator source
// and provisions per-user aggregator keys.
package credits

import (
	"context"
	"errors"
	"sync"
)

// ErrInsufficientBalance is returned by Deduct when the balance cannot
// cover the amount.
var ErrInsufficientBalance = errors.New("insufficient credit balance")

// Ledger holds per-user credit balances. Amounts are USD.
type Ledger interface {
	// Balance returns the user's spendable balance.
	Balance(ctx context.Context, userID string) (float64, error)

	// Add credits the balance and returns the new total.
	Add(ctx context.Context, userID string, amount float64) (float64, error)

	// Deduct debits the balance, failing with ErrInsufficientBalance when
	// the amount exceeds it. Returns the new total.
	Deduct(ctx context.Context, userID string, amount float64) (float64, error)

	// TotalSpent returns the user's lifetime spend.
	TotalSpent(ctx context.Context, userID string) (float64, error)
}

type memoryAccount struct {
	balance    float64
	totalSpent float64
}

// MemoryLedger keeps balances in process.
type MemoryLedger struct {
	mu       sync.Mutex
	accounts map[string]*memoryAccount
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{accounts: map[string]*memoryAccount{}}
}

func (l *MemoryLedger) account(userID string) *memoryAccount {
	acct, ok := l.accounts[userID]
	if !ok {
		acct = &memoryAccount{}
		l.accounts[userID] = acct
	}
	return acct
}

func (l *MemoryLedger) Balance(_ context.Context, userID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account(userID).balance, nil
}

func (l *MemoryLedger) Add(_ context.Context, userID string, amount float64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct := l.account(userID)
	acct.balance += amount
	return acct.balance, nil
}

func (l *MemoryLedger) Deduct(_ context.Context, userID string, amount float64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct := l.account(userID)
	if acct.balance < amount {
		return acct.balance, ErrInsufficientBalance
	}
	acct.balance -= amount
	acct.totalSpent += amount
	return acct.balance, nil
}

func (l *MemoryLedger) TotalSpent(_ context.Context, userID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account(userID).totalSpent, nil
}
