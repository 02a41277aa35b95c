package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps ranking snapshots as JSON strings with a TTL.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the cached entries, or ok=false on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]Entry, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var es []Entry
	if err := json.Unmarshal(data, &es); err != nil {
		return nil, false, err
	}
	return es, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, entries []Entry, ttl time.Duration) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Invalidate drops every cached snapshot ending on dateKey.
func (c *RedisCache) Invalidate(ctx context.Context, dateKey string) error {
	iter := c.client.Scan(ctx, 0, "leaderboard:*:"+dateKey, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
