package ratelimit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:payments:"

// slidingWindow keeps one sorted-set member per admitted attempt, scored by
// its timestamp in milliseconds. Pruning, counting and admitting happen in one
// script so concurrent requests cannot overshoot the limit.
var slidingWindow = goredis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisLimiter shares its window across every service instance.
type RedisLimiter struct {
	client *goredis.Client
	cfg    Config
}

func NewRedisLimiter(client *goredis.Client, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg.withDefaults()}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.cfg.Now().UnixMilli()
	allowed, err := slidingWindow.Run(ctx, l.client,
		[]string{keyPrefix + key},
		now, l.cfg.Window.Milliseconds(), l.cfg.Limit, fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}
	return allowed == 1, nil
}
