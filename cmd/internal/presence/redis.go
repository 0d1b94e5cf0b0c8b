package presence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ludo:presence:"

// RedisTracker implements Tracker on Redis with per-key TTL.
type RedisTracker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisTracker wraps an existing client. ttl <= 0 uses DefaultTTL.
func NewRedisTracker(rdb *redis.Client, ttl time.Duration) (*RedisTracker, error) {
	if rdb == nil {
		return nil, errors.New("presence: nil redis client")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTracker{rdb: rdb, ttl: ttl}, nil
}

func (t *RedisTracker) key(userID string) string {
	return keyPrefix + userID
}

func (t *RedisTracker) Touch(ctx context.Context, userID string, at time.Time) error {
	return t.rdb.Set(ctx, t.key(userID), formatUnixMilli(at), t.ttl).Err()
}

func (t *RedisTracker) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	val, err := t.rdb.Get(ctx, t.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, ok := parseUnixMilli(val)
	if !ok {
		return time.Time{}, false, nil
	}
	return at, true, nil
}

func (t *RedisTracker) Online(ctx context.Context) ([]string, error) {
	var (
		users  []string
		cursor uint64
	)
	for {
		keys, next, err := t.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			users = append(users, strings.TrimPrefix(k, keyPrefix))
		}
		cursor = next
		if cursor == 0 {
			return users, nil
		}
	}
}
