package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// requires Redis on localhost:6379, skipped otherwise
const testRedisAddr = "localhost:6379"

type payload struct {
	Total int            `json:"total"`
	By    map[string]int `json:"by"`
}

func setupTestCache(t *testing.T) *StatsCache {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	prefix := "test:" + uuid.NewString() + ":"
	c := NewStatsCache(client, prefix, time.Minute)
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})
	return c
}

func TestNewStatsCache(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	defer client.Close()

	c := NewStatsCache(client, DefaultPrefix, 30*time.Second)
	owner := uuid.MustParse("6f1c1f43-6a55-4b8e-9bb2-0c6f0d5e7a10")

	if got := c.key(owner, "2026-03-10"); got != "todos:stats:6f1c1f43-6a55-4b8e-9bb2-0c6f0d5e7a10:2026-03-10" {
		t.Errorf("key = %q", got)
	}
	if c.ttl != 30*time.Second {
		t.Errorf("ttl = %v, want 30s", c.ttl)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := Connect(ctx, "127.0.0.1:1"); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestStatsCache_GetSet(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()
	owner := uuid.New()

	if err := c.PingContext(ctx); err != nil {
		t.Fatalf("PingContext: %v", err)
	}

	var got payload
	ok, err := c.Get(ctx, owner, "2026-03-10", &got)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	want := payload{Total: 3, By: map[string]int{"high": 1}}
	if err := c.Set(ctx, owner, "2026-03-10", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err = c.Get(ctx, owner, "2026-03-10", &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Total != 3 || got.By["high"] != 1 {
		t.Errorf("unexpected payload: %+v", got)
	}

	counters := c.Counters()
	if counters.Hits != 1 || counters.Misses != 1 {
		t.Errorf("counters = %+v, want 1 hit and 1 miss", counters)
	}
}

func TestStatsCache_Invalidate(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()

	for _, day := range []string{"2026-03-09", "2026-03-10"} {
		if err := c.Set(ctx, owner, day, payload{Total: 1}); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := c.Set(ctx, other, "2026-03-10", payload{Total: 7}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := c.Invalidate(ctx, owner); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	var got payload
	for _, day := range []string{"2026-03-09", "2026-03-10"} {
		if ok, _ := c.Get(ctx, owner, day, &got); ok {
			t.Errorf("entry for %s survived invalidation", day)
		}
	}
	if ok, _ := c.Get(ctx, other, "2026-03-10", &got); !ok || got.Total != 7 {
		t.Errorf("other owner's entry should remain, got ok=%v %+v", ok, got)
	}
}
