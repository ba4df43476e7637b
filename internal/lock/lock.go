// Package lock provides short lived exclusive guards in redis.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, prefix: "lock:"}
}

// Acquire takes key for ttl. ok is false when somebody else holds it.
// The returned release func only removes the guard while it is still ours.
func (l *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	return func(ctx context.Context) error {
		if err := release.Run(ctx, l.rdb, []string{l.prefix + key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release %s: %w", key, err)
		}
		return nil
	}, true, nil
}
