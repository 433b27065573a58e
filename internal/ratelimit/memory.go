package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryBucket keeps one token bucket per key inside the process.
type MemoryBucket struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

func (m *MemoryBucket) Allow(key string, limit Limit) *RateLimitResult {
	m.mu.Lock()
	limiter, ok := m.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(limit.Rate), limit.Burst)
		m.limiters[key] = limiter
	}
	m.mu.Unlock()

	now := m.now()
	if !limiter.AllowN(now, 1) {
		return denied(limit, limiter.TokensAt(now), now)
	}

	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitResult{
		Allowed:   true,
		Limit:     limit.Burst,
		Remaining: remaining,
		ResetTime: now,
	}
}
