package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	red "github.com/redis/go-redis/v9"

	"github.com/dreamwise/dreamwise-api/internal/core/port"
)

// slidingWindowScript prunes, counts and conditionally records one attempt.
// Scores are unix milliseconds. Returns {allowed, count, oldest_ms or -1}.
var slidingWindowScript = red.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = -1
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #first == 2 then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RateLimitRepository keeps sliding-window attempts in Redis sorted sets.
type RateLimitRepository struct {
	client *red.Client
	prefix string
}

// NewRateLimitRepository constructs a repository using the provided Redis client and key prefix.
func NewRateLimitRepository(client *red.Client, keyPrefix string) *RateLimitRepository {
	return &RateLimitRepository{client: client, prefix: prefixed(keyPrefix, "ratelimit")}
}

// Attempt runs the sliding-window script for identifier. Concurrent callers on
// the same key are serialized by Redis, so at most limit attempts are admitted
// per window.
func (r *RateLimitRepository) Attempt(ctx context.Context, identifier string, limit int, window time.Duration, at time.Time) (port.RateLimitResult, error) {
	if window <= 0 {
		return port.RateLimitResult{}, errors.New("window must be positive")
	}
	if limit <= 0 {
		return port.RateLimitResult{}, errors.New("limit must be positive")
	}
	if identifier == "" {
		return port.RateLimitResult{}, errors.New("identifier must not be empty")
	}

	member := strconv.FormatInt(at.UnixNano(), 10) + "-" + uuid.NewString()
	values, err := slidingWindowScript.Run(ctx, r.client,
		[]string{r.prefix + ":" + identifier},
		at.UnixMilli(), window.Milliseconds(), limit, member,
	).Int64Slice()
	if err != nil {
		return port.RateLimitResult{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(values) != 3 {
		return port.RateLimitResult{}, fmt.Errorf("redis sliding window: unexpected reply length %d", len(values))
	}

	result := port.RateLimitResult{
		Allowed: values[0] == 1,
		Count:   int(values[1]),
	}
	if values[2] >= 0 {
		result.Oldest = time.UnixMilli(values[2])
		result.HasOldest = true
	}
	return result, nil
}

func prefixed(keyPrefix, namespace string) string {
	if keyPrefix == "" {
		return namespace
	}
	return keyPrefix + ":" + namespace
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
