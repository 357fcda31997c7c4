package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces ledger keys in a shared Redis.
const DefaultKeyPrefix = "idem:"

// RedisLedger stores processed keys as Redis strings with an expiry.
type RedisLedger struct {
	client redis.Cmdable
	prefix string
}

// NewRedisLedger creates a ledger on client. An empty prefix uses DefaultKeyPrefix.
func NewRedisLedger(client redis.Cmdable, prefix string) *RedisLedger {
	if client == nil {
		panic("redis client is required")
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisLedger{client: client, prefix: prefix}
}

func (l *RedisLedger) Seen(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	n, err := l.client.Exists(ctx, l.prefix+key).Result()
	if err != nil {
		return false, errors.Join(ErrLedgerFailure, err)
	}
	return n > 0, nil
}

// Mark records key for ttl. Marking an existing key keeps its original expiry.
func (l *RedisLedger) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Unix(), ttl).Err(); err != nil {
		return errors.Join(ErrLedgerFailure, err)
	}
	return nil
}
