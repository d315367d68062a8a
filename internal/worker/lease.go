package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`

// RedisLease is a single-holder lock with expiry, used so that only one
// replica runs a sweep at a time.
type RedisLease struct {
	client   redis.Cmdable
	key      string
	ttl      time.Duration
	newToken func() string
}

// NewRedisLease builds a lease on key held for at most ttl.
func NewRedisLease(client redis.Cmdable, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{client: client, key: key, ttl: ttl, newToken: uuid.NewString}
}

// Acquire tries to take the lease. ok is false when another holder has it.
func (l *RedisLease) Acquire(ctx context.Context) (string, bool, error) {
	token := l.newToken()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release gives the lease back if token still owns it.
func (l *RedisLease) Release(ctx context.Context, token string) error {
	return l.client.Eval(ctx, releaseScript, []string{l.key}, token).Err()
}
