package ratelimit

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed token_bucket.lua
var tokenBucketLua string

var tokenBucketScript = redis.NewScript(tokenBucketLua)

const defaultKeyPrefix = "ratelimit:"

// RedisStore keeps bucket state in Redis hashes and charges them with a Lua
// script, so one key is always updated atomically no matter how many
// instances share it. Keys expire after the tier's longest period of
// inactivity.
type RedisStore struct {
	client redis.Scripter
	prefix string
	now    Clock
}

type RedisStoreOption func(*RedisStore)

// WithKeyPrefix changes the namespace bucket hashes are stored under.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithRedisClock replaces the wall clock used for refill timestamps.
func WithRedisClock(now Clock) RedisStoreOption {
	return func(s *RedisStore) { s.now = now }
}

func NewRedisStore(client redis.Scripter, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: defaultKeyPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) TryConsume(ctx context.Context, key string, tier BucketConfiguration, tokens int64) (ConsumeResult, error) {
	ttl := tier.LongestPeriod()
	args := make([]interface{}, 0, 4+2*len(tier.Bandwidths))
	args = append(args, s.now().UnixMilli(), tokens, ttl.Milliseconds(), len(tier.Bandwidths))
	for _, bw := range tier.Bandwidths {
		args = append(args, bw.Capacity, bw.Period.Milliseconds())
	}

	result, err := tokenBucketScript.Run(ctx, s.client, []string{s.prefix + key}, args...).Result()
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return ConsumeResult{}, fmt.Errorf("unexpected token bucket script result: %T", result)
	}

	allowed, err := toInt64(values[0])
	if err != nil {
		return ConsumeResult{}, err
	}
	remaining, err := toInt64(values[1])
	if err != nil {
		return ConsumeResult{}, err
	}
	waitMs, err := toInt64(values[2])
	if err != nil {
		return ConsumeResult{}, err
	}

	res := ConsumeResult{
		Consumed:  allowed == 1,
		Remaining: remaining,
	}
	if !res.Consumed {
		res.RetryAfter = time.Duration(waitMs) * time.Millisecond
	}
	return res, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected token bucket value type %T", v)
	}
}
