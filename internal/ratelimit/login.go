package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/bookkeeper/internal/config"
	"go.uber.org/zap"
)

const keyLoginAttempt = "auth:login:%s"

// LoginLimiter throttles token requests per client address. Redis is used
// when configured; a failing redis call falls back to the in-process bucket.
type LoginLimiter struct {
	log    *zap.Logger
	bucket *TokenBucket
	memory *MemoryBucket
	limit  Limit
}

func NewLoginLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *LoginLimiter {
	rate := cfg.LoginRatePerSecond
	if rate <= 0 {
		rate = 0.2
	}
	burst := int(cfg.LoginBurst)
	if burst <= 0 {
		burst = 5
	}
	return &LoginLimiter{
		log:    log.Named("ratelimit.login"),
		bucket: NewTokenBucket(client),
		memory: NewMemoryBucket(),
		limit:  Limit{Rate: rate, Burst: burst},
	}
}

func (l *LoginLimiter) Allow(ctx context.Context, clientKey string) *RateLimitResult {
	key := fmt.Sprintf(keyLoginAttempt, strings.TrimSpace(clientKey))
	if l.bucket != nil {
		result, err := l.bucket.Allow(ctx, key, l.limit)
		if err == nil {
			return result
		}
		l.log.Warn("redis rate limit failed, using memory bucket", zap.Error(err))
	}
	return l.memory.Allow(key, l.limit)
}
