package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// unlockLua deletes the lock only if the caller still owns it.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const (
	defaultLockTTL   = 30 * time.Second
	lockPollInterval = 100 * time.Millisecond
)

// LockManager serialises nonce allocation for one wallet across processes
// sharing the same Redis.
type LockManager struct {
	c        *Client
	ttl      time.Duration
	unlockSc *redis.Script
}

// NewLockManager creates a LockManager. A zero ttl uses 30s.
func NewLockManager(c *Client, ttl time.Duration) *LockManager {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &LockManager{
		c:        c,
		ttl:      ttl,
		unlockSc: redis.NewScript(unlockLua),
	}
}

// TryAcquire takes the lock once. It returns domain.ErrLockHeld when another
// holder has it.
func (lm *LockManager) TryAcquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	lk := lm.c.key("lock", key)

	ok, err := lm.c.rdb.SetNX(ctx, lk, token, lm.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.unlockSc.Run(unlockCtx, lm.c.rdb, []string{lk}, token).Err()
		})
	}, nil
}

// Lock blocks until the lock is taken or ctx ends.
func (lm *LockManager) Lock(ctx context.Context, key string) (func(), error) {
	for {
		unlock, err := lm.TryAcquire(ctx, key)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis: wait for lock %s: %w", key, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}
