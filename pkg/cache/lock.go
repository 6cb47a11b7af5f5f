package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock already held")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived mutual exclusion leases backed by Redis.
type Locker struct {
	client redis.Cmdable
	prefix string
}

// NewLocker constructs a Locker. Keys are namespaced with prefix.
func NewLocker(client redis.Cmdable, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// Acquire takes the lock for key, held for at most ttl. The returned func
// releases it and is safe to call once the lease has expired.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	full := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{full}, token).Err()
	}
	return release, nil
}
