package idempotency

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemorySize bounds how many keys a MemoryLedger keeps.
const DefaultMemorySize = 100_000

// MemoryLedger is an in-process ledger backed by an expiring LRU.
// Every key lives for the TTL given at construction; the per-call TTL is ignored.
type MemoryLedger struct {
	cache *expirable.LRU[string, struct{}]
}

// NewMemoryLedger creates a ledger holding up to size keys for ttl each.
func NewMemoryLedger(size int, ttl time.Duration) *MemoryLedger {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &MemoryLedger{cache: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func (l *MemoryLedger) Seen(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	return l.cache.Contains(key), nil
}

func (l *MemoryLedger) Mark(_ context.Context, key string, _ time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	l.cache.Add(key, struct{}{})
	return nil
}

// Len returns the number of live keys.
func (l *MemoryLedger) Len() int {
	return l.cache.Len()
}
