package currency

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when this instance still owns it,
// so an expired lease reacquired by another instance is never released here.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DistributedLock is a fleet-wide mutex backed by a leased Redis key. The
// lease auto-expires so a holder that crashes mid-sync cannot lock the
// fleet out permanently.
type DistributedLock struct {
	client redis.Scripter
	cmd    redis.Cmdable
	name   string
	token  string
	held   atomic.Bool
}

// NewDistributedLock creates a lock with the given fleet-wide name. Each
// instance gets its own ownership token.
func NewDistributedLock(client *redis.Client, name string) *DistributedLock {
	return &DistributedLock{
		client: client,
		cmd:    client,
		name:   name,
		token:  uuid.New().String(),
	}
}

// TryAcquire makes a single non-blocking attempt to take the lock with the
// given lease. Returns false when another instance holds it.
func (l *DistributedLock) TryAcquire(ctx context.Context, lease time.Duration) (bool, error) {
	acquired, err := l.cmd.SetNX(ctx, l.name, l.token, lease).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	if acquired {
		l.held.Store(true)
	}
	return acquired, nil
}

// IsLocked reports whether any instance currently holds the lock.
func (l *DistributedLock) IsLocked(ctx context.Context) (bool, error) {
	count, err := l.cmd.Exists(ctx, l.name).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	return count > 0, nil
}

// IsHeld reports whether this instance believes it holds the lock.
func (l *DistributedLock) IsHeld() bool {
	return l.held.Load()
}

// Release frees the lock if and only if this instance owns it. Releasing a
// lock held by someone else (or nobody) is a no-op.
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.held.Load() {
		return nil
	}
	l.held.Store(false)

	if err := releaseScript.Run(ctx, l.client, []string{l.name}, l.token).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	return nil
}
