package quota

import (
	"context"
	"sync"
)

// MemoryStore keeps quota state in process. Suitable for single-instance
// deployments and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	rows []UsageRow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) TierUsage(_ context.Context, userID, month string) (map[Tier]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[Tier]int{}
	for _, row := range s.rows {
		if row.UserID == userID && MonthKey(row.At) == month {
			out[row.Tier]++
		}
	}
	return out, nil
}

func (s *MemoryStore) RecordUsage(_ context.Context, row UsageRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

func (s *MemoryStore) Spend(_ context.Context, userID, month string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, row := range s.rows {
		if row.UserID == userID && MonthKey(row.At) == month {
			total += row.Cost
		}
	}
	return total, nil
}

// Rows returns a copy of all recorded usage, oldest first.
func (s *MemoryStore) Rows() []UsageRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UsageRow, len(s.rows))
	copy(out, s.rows)
	return out
}
