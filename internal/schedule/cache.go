package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "shala:day:"

// Cache keeps resolved days in Redis so repeated lookups within a trigger
// window skip the database. A nil *Cache is a valid no-op cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func dayKey(date string) string {
	return cacheKeyPrefix + date
}

func (c *Cache) read(ctx context.Context, date string, out any) bool {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.client.Get(ctx, dayKey(date)).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Cache) write(ctx context.Context, date string, val any) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, dayKey(date), data, c.ttl).Err()
}

// Invalidate drops the cached entry for one date. Used after a date override
// changes.
func (c *Cache) Invalidate(ctx context.Context, date string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, dayKey(date)).Err()
}

// Flush drops all cached days. Used after a weekly template edit, which
// affects every future date.
func (c *Cache) Flush(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("flush schedule cache: %w", err)
		}
	}
	return iter.Err()
}
