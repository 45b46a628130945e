package credits

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// deductScript debits atomically so concurrent requests cannot overdraw.
// KEYS[1] = account hash, ARGV[1] = amount. Returns {1, new balance} on
// success, {0, current balance} when short.
var deductScript = redis.NewScript(`
local balance = tonumber(redis.call('HGET', KEYS[1], 'balance') or '0')
local amount = tonumber(ARGV[1])
if balance < amount then
	return {0, tostring(balance)}
end
local after = redis.call('HINCRBYFLOAT', KEYS[1], 'balance', -amount)
redis.call('HINCRBYFLOAT', KEYS[1], 'total_spent', amount)
return {1, after}
`)

// RedisLedger keeps balances in Redis for shared deployments.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLedger(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client, prefix: "polygate:credits"}
}

func (l *RedisLedger) key(userID string) string {
	return fmt.Sprintf("%s:%s", l.prefix, userID)
}

func (l *RedisLedger) field(ctx context.Context, userID, field string) (float64, error) {
	v, err := l.client.HGet(ctx, l.key(userID), field).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read credit %s: %w", field, err)
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse credit %s %q: %w", field, v, err)
	}
	return n, nil
}

func (l *RedisLedger) Balance(ctx context.Context, userID string) (float64, error) {
	return l.field(ctx, userID, "balance")
}

func (l *RedisLedger) Add(ctx context.Context, userID string, amount float64) (float64, error) {
	pipe := l.client.TxPipeline()
	bal := pipe.HIncrByFloat(ctx, l.key(userID), "balance", amount)
	pipe.HIncrByFloat(ctx, l.key(userID), "total_purchased", amount)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("add credits: %w", err)
	}
	return bal.Val(), nil
}

func (l *RedisLedger) Deduct(ctx context.Context, userID string, amount float64) (float64, error) {
	res, err := deductScript.Run(ctx, l.client, []string{l.key(userID)}, amount).Slice()
	if err != nil {
		return 0, fmt.Errorf("deduct credits: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("deduct credits: unexpected script reply %v", res)
	}
	ok, _ := res[0].(int64)
	balance, err := scriptFloat(res[1])
	if err != nil {
		return 0, fmt.Errorf("deduct credits: %w", err)
	}
	if ok == 0 {
		return balance, ErrInsufficientBalance
	}
	return balance, nil
}

func (l *RedisLedger) TotalSpent(ctx context.Context, userID string) (float64, error) {
	return l.field(ctx, userID, "total_spent")
}

func scriptFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case int64:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("unexpected reply type %T", v)
	}
}
