package keylock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Defaults for Redis locks.
const (
	DefaultTTL   = 30 * time.Second
	defaultRetry = 25 * time.Millisecond
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a distributed keyed lock. Each lock is a key holding a random
// owner token with a TTL, so a crashed holder cannot block a user forever.
type Redis struct {
	cli    *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedis creates a Redis-backed locker. Keys are "<prefix>:<key>".
func NewRedis(cli *redis.Client, prefix string) *Redis {
	return &Redis{cli: cli, prefix: prefix, ttl: DefaultTTL, retry: defaultRetry}
}

// Lock polls SET NX until the key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, key int64) (func(), error) {
	k := fmt.Sprintf("%s:%d", r.prefix, key)
	owner := uuid.NewString()

	for {
		ok, err := r.cli.SetNX(ctx, k, owner, r.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("acquire lock %s: %w", k, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, r.cli, []string{k}, owner).Err(); err != nil {
			log.Printf("Release lock %s failed: %v", k, err)
		}
	}, nil
}
