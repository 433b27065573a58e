package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var errBucketNotConfigured = errors.New("token bucket not configured")

// KEYS[1] bucket hash; ARGV rate/s, burst, ttl ms.
// Returns {allowed, whole tokens left, server time ms}.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = (clock[1] * 1000) + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now

local elapsed = math.max(0, now - last)
tokens = math.min(burst, tokens + (elapsed / 1000) * rate)

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, math.floor(tokens), now}
`

// Limit is a refill rate in tokens per second plus a bucket size.
type Limit struct {
	Rate  float64
	Burst int
}

func (l Limit) validate() error {
	if l.Rate <= 0 || l.Burst <= 0 {
		return fmt.Errorf("invalid limit rate=%v burst=%d", l.Rate, l.Burst)
	}
	return nil
}

// idleTTL keeps a bucket around for twice the time it takes to refill.
func (l Limit) idleTTL() time.Duration {
	seconds := math.Ceil(float64(l.Burst) / l.Rate * 2)
	return time.Duration(math.Max(seconds, 1)) * time.Second
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

func denied(limit Limit, remaining float64, at time.Time) *RateLimitResult {
	wait := refillDelay(remaining, limit.Rate)
	return &RateLimitResult{
		Limit:      limit.Burst,
		Remaining:  0,
		ResetTime:  at.Add(wait),
		RetryAfter: wait,
	}
}

// TokenBucket shares buckets across replicas through redis.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, limit Limit) (*RateLimitResult, error) {
	if t == nil || t.client == nil {
		return nil, errBucketNotConfigured
	}
	if err := limit.validate(); err != nil {
		return nil, err
	}

	values, err := t.script.Run(ctx, t.client, []string{key},
		limit.Rate, limit.Burst, limit.idleTTL().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("token bucket script returned %d values", len(values))
	}

	at := time.UnixMilli(values[2])
	if values[0] != 1 {
		return denied(limit, float64(values[1]), at), nil
	}
	return &RateLimitResult{
		Allowed:   true,
		Limit:     limit.Burst,
		Remaining: int(values[1]),
		ResetTime: at,
	}, nil
}

// refillDelay is the time until one token is available again.
func refillDelay(tokens float64, rate float64) time.Duration {
	needed := 1.0 - tokens
	if needed <= 0 || rate <= 0 {
		return 0
	}
	return time.Duration(needed / rate * float64(time.Second))
}
