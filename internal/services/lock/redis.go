package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	engerr "github.com/jwebster45206/quest-engine/pkg/errors"
)

const keyPrefix = "lock:"

// Only delete if we own the lock
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker serializes turns per key across processes. A key that is already
// held is refused with a busy error; callers never wait behind another turn.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
	logger *slog.Logger
}

// NewRedisLocker returns a locker whose locks expire after ttl if never released
func NewRedisLocker(client *redis.Client, ttl time.Duration, owner string, logger *slog.Logger) *RedisLocker {
	if owner == "" {
		owner = "locker-" + uuid.NewString()[:8]
	}
	return &RedisLocker{client: client, ttl: ttl, owner: owner, logger: logger}
}

// Acquire claims key. The returned release func is safe to call more than once.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := keyPrefix + key
	token := l.owner + ":" + uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, engerr.WrapWithCode(fmt.Errorf("failed to acquire lock: %w", err), engerr.CodeInternal, "lock unavailable")
	}
	if !ok {
		return nil, engerr.Busyf("%s is locked by another turn", key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// release must run even when the request context is already cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
				l.logger.Error("Failed to release lock", "error", err, "key", key)
			}
		})
	}, nil
}

// Held reports whether key is currently locked by anyone
func (l *RedisLocker) Held(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check lock: %w", err)
	}
	return n > 0, nil
}
