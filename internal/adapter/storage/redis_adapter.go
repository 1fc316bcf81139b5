package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	dedupeKeyPrefix    = "payment:seen:"
	dedupeKeyTTL       = 24 * time.Hour
)

var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local count = redis.call('INCR', key)
if count == 1 then
	redis.call('EXPIRE', key, window)
end

if count > limit then
	return 0
end

return 1
`)

// RedisAdapter backs the HTTP rate limiter and the payment callback
// dedupe fast path. Neither is authoritative for correctness: the
// order state machine stays idempotent without them.
type RedisAdapter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisAdapter(client *redis.Client, limit int, window time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, limit: limit, window: window}
}

func (r *RedisAdapter) Allow(ctx context.Context, key string) (bool, error) {
	result, err := fixedWindowScript.Run(ctx, r.client,
		[]string{rateLimitKeyPrefix + key},
		r.limit, int(r.window.Seconds()),
	).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (r *RedisAdapter) FirstSeen(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, dedupeKeyPrefix+key, 1, dedupeKeyTTL).Result()
}
