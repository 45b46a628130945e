package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
)

// UsageRow is one recorded request against a user's quota.
type UsageRow struct {
	UserID       string
	SessionID    string
	Model        string
	Provider     string
	Tier         Tier
	Source       string
	InputTokens  int
	OutputTokens int
	Cost         float64
	At           time.Time
}

// Store persists per-user tier counters and usage rows. Months are keyed as
// "2006-01".
type Store interface {
	// TierUsage returns the number of requests recorded per tier for a
	// user in the given month.
	TierUsage(ctx context.Context, userID, month string) (map[Tier]int, error)

	// RecordUsage appends one usage row and bumps its tier counter.
	RecordUsage(ctx context.Context, row UsageRow) error

	// Spend returns the summed cost for a user in the given month.
	Spend(ctx context.Context, userID, month string) (float64, error)
}

// Limits holds per-tier monthly request allowances.
type Limits map[Tier]int

// DefaultLimits mirrors the free plan.
var DefaultLimits = Limits{TierPremium: 10, TierNormal: 50, TierEco: 200}

// MonthKey formats the month bucket for a timestamp.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Gate answers whether an operator-funded source may serve a request.
type Gate struct {
	store  Store
	limits Limits
	logger *slog.Logger

	now func() time.Time
}

// NewGate wires a gate over a store.
func NewGate(store Store, limits Limits, logger *slog.Logger) *Gate {
	if limits == nil {
		limits = DefaultLimits
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, limits: limits, logger: logger, now: time.Now}
}

// Check returns a quota error when the user has exhausted the model's tier
// this month. A tier with no configured limit is unlimited.
func (g *Gate) Check(ctx context.Context, userID string, info ModelInfo) error {
	limit, ok := g.limits[info.Tier]
	if !ok || limit <= 0 {
		return nil
	}
	usage, err := g.store.TierUsage(ctx, userID, MonthKey(g.now()))
	if err != nil {
		return fmt.Errorf("quota lookup for user %s: %w", userID, err)
	}
	if used := usage[info.Tier]; used >= limit {
		g.logger.Warn("quota exhausted",
			"user_id", userID,
			"tier", string(info.Tier),
			"used", used,
			"limit", limit,
		)
		return gwerrors.NewQuotaExceededError(info.Provider, info.FriendlyID,
			fmt.Sprintf("%s tier monthly limit reached (%d/%d)", info.Tier, used, limit))
	}
	return nil
}

// Deduct records a completed request. Failures are logged, not surfaced, so
// accounting never breaks a response already in flight.
func (g *Gate) Deduct(ctx context.Context, row UsageRow) {
	if row.At.IsZero() {
		row.At = g.now()
	}
	if err := g.store.RecordUsage(ctx, row); err != nil {
		g.logger.Error("quota deduction failed",
			"user_id", row.UserID,
			"model", row.Model,
			"error", err,
		)
	}
}

// Remaining reports per-tier headroom for a user this month.
func (g *Gate) Remaining(ctx context.Context, userID string) (map[Tier]int, error) {
	usage, err := g.store.TierUsage(ctx, userID, MonthKey(g.now()))
	if err != nil {
		return nil, err
	}
	out := make(map[Tier]int, len(g.limits))
	for tier, limit := range g.limits {
		rem := limit - usage[tier]
		if rem < 0 {
			rem = 0
		}
		out[tier] = rem
	}
	return out, nil
}
