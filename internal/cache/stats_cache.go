// Package cache keeps computed todo statistics in Redis, keyed by owner and day.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "todos:stats:"

// StatsCache is a cache-aside store for per-owner stats.
type StatsCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Counters is a snapshot of cache lookups since start.
type Counters struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// Connect opens a client for addr and checks it with PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func NewStatsCache(client *redis.Client, prefix string, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *StatsCache) key(owner uuid.UUID, day string) string {
	return c.prefix + owner.String() + ":" + day
}

// Get loads the entry for owner and day into dest. It reports false on a miss.
func (c *StatsCache) Get(ctx context.Context, owner uuid.UUID, day string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, c.key(owner, day)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal: %w", err)
	}
	c.hits.Add(1)
	return true, nil
}

func (c *StatsCache) Set(ctx context.Context, owner uuid.UUID, day string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.key(owner, day), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate removes every day cached for owner.
func (c *StatsCache) Invalidate(ctx context.Context, owner uuid.UUID) error {
	pattern := c.prefix + owner.String() + ":*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache delete: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *StatsCache) Counters() Counters {
	return Counters{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// PingContext lets the cache serve as a health check target.
func (c *StatsCache) PingContext(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *StatsCache) Close() error {
	return c.client.Close()
}
