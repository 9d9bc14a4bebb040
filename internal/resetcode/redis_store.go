package resetcode

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "reset-code:"

// consumeScript deletes the key only when the stored code matches, so a wrong
// guess neither consumes the code nor leaks whether one exists.
var consumeScript = redis.NewScript(`
	local stored = redis.call('GET', KEYS[1])
	if stored and stored == ARGV[1] then
		redis.call('DEL', KEYS[1])
		return 1
	end
	return 0
`)

// RedisStore implements Store on Redis. Expiry is delegated to the key TTL,
// so a restart never leaks stale codes.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Set(ctx context.Context, email, code string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return s.client.Set(ctx, keyPrefix+email, code, ttl).Err()
}

func (s *RedisStore) Consume(ctx context.Context, email, code string) error {
	ok, err := consumeScript.Run(ctx, s.client, []string{keyPrefix + email}, code).Int()
	if err != nil {
		return err
	}
	if ok != 1 {
		return ErrCodeInvalid
	}
	return nil
}
