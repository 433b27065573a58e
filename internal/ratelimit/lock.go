package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockHeld           = errors.New("lock_held")
	ErrLockUnavailable    = errors.New("lock_unavailable")
	errLockKeyRequired    = errors.New("lock key is empty")
	errLockTTLNotPositive = errors.New("lock ttl must be positive")
)

// Deletes the key only while it still holds the caller's token.
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a single-key redis mutex shared by replicas running the same
// one-off job, such as the admin bootstrap.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// WithLock runs fn while holding key. It returns ErrLockHeld when another
// holder owns the key and ErrLockUnavailable (wrapped) when redis fails.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l == nil || l.client == nil {
		return ErrLockUnavailable
	}
	if key == "" {
		return errLockKeyRequired
	}
	if ttl <= 0 {
		return errLockTTLNotPositive
	}

	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return errors.Join(ErrLockUnavailable, err)
	}
	if !acquired {
		return ErrLockHeld
	}
	defer func() {
		_ = l.script.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
	}()

	return fn(ctx)
}
