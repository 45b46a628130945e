package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// counterTTL keeps stale month buckets from accumulating forever. Two
// months covers any read of the current bucket.
const counterTTL = 62 * 24 * time.Hour

// RedisStore keeps quota counters and usage rows in Redis for deployments
// that share state across gateway instances.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "polygate:quota"}
}

func (s *RedisStore) tierKey(userID, month string) string {
	return fmt.Sprintf("%s:%s:%s:tiers", s.prefix, userID, month)
}

func (s *RedisStore) spendKey(userID, month string) string {
	return fmt.Sprintf("%s:%s:%s:spend", s.prefix, userID, month)
}

func (s *RedisStore) rowsKey(userID, month string) string {
	return fmt.Sprintf("%s:%s:%s:rows", s.prefix, userID, month)
}

func (s *RedisStore) TierUsage(ctx context.Context, userID, month string) (map[Tier]int, error) {
	raw, err := s.client.HGetAll(ctx, s.tierKey(userID, month)).Result()
	if err != nil {
		return nil, fmt.Errorf("read tier counters: %w", err)
	}
	out := make(map[Tier]int, len(raw))
	for tier, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		out[Tier(tier)] = n
	}
	return out, nil
}

func (s *RedisStore) RecordUsage(ctx context.Context, row UsageRow) error {
	month := MonthKey(row.At)
	encoded, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode usage row: %w", err)
	}

	pipe := s.client.TxPipeline()
	tierKey := s.tierKey(row.UserID, month)
	spendKey := s.spendKey(row.UserID, month)
	rowsKey := s.rowsKey(row.UserID, month)
	pipe.HIncrBy(ctx, tierKey, string(row.Tier), 1)
	pipe.IncrByFloat(ctx, spendKey, row.Cost)
	pipe.RPush(ctx, rowsKey, encoded)
	pipe.Expire(ctx, tierKey, counterTTL)
	pipe.Expire(ctx, spendKey, counterTTL)
	pipe.Expire(ctx, rowsKey, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (s *RedisStore) Spend(ctx context.Context, userID, month string) (float64, error) {
	v, err := s.client.Get(ctx, s.spendKey(userID, month)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read spend: %w", err)
	}
	total, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse spend %q: %w", v, err)
	}
	return total, nil
}
