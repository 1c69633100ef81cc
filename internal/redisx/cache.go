package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreCache holds rendered store views. Misses and Redis failures both read
// as a miss; the database stays the source of truth.
type StoreCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func (c *StoreCache) Get(ctx context.Context, storeID int64) ([]byte, bool) {
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyStoreView, storeID)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (c *StoreCache) Set(ctx context.Context, storeID int64, body []byte) error {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = TTLStoreView
	}
	return c.RDB.Set(ctx, fmt.Sprintf(KeyStoreView, storeID), body, ttl).Err()
}

func (c *StoreCache) Invalidate(ctx context.Context, storeIDs ...int64) error {
	if len(storeIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(storeIDs))
	for _, id := range storeIDs {
		keys = append(keys, fmt.Sprintf(KeyStoreView, id))
	}
	return c.RDB.Del(ctx, keys...).Err()
}
