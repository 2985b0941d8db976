package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNoClient is returned when the locker has no Redis connection.
var ErrNoClient = errors.New("lock: redis client not configured")

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// Locker is a Redis SET NX lock. Each holder writes a random token so that only the
// holder can release the key; an expired holder cannot delete a successor's lock.
type Locker struct {
	client  redis.UniversalClient
	backoff time.Duration
}

// New constructs a Locker that polls every backoff while the key is held elsewhere.
func New(client redis.UniversalClient, backoff time.Duration) *Locker {
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	return &Locker{client: client, backoff: backoff}
}

// WithLock runs fn while holding key. It blocks until the lock is acquired or ctx is done.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l == nil || l.client == nil {
		return ErrNoClient
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()

	ticker := time.NewTicker(l.backoff)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	defer l.release(key, token)
	return fn(ctx)
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}
