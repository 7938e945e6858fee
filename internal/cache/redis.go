package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/config"
)

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// Counts caches per-collection record counts.
type Counts interface {
	Get(ctx context.Context, collection string) (int64, bool)
	Set(ctx context.Context, collection string, n int64)
	Invalidate(ctx context.Context, collection string)
}

type RedisCounts struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCounts(client *redis.Client, ttl time.Duration) *RedisCounts {
	return &RedisCounts{client: client, ttl: ttl}
}

func countKey(collection string) string {
	return "deptms:count:" + collection
}

// Get treats any redis failure as a miss; the caller falls back to the store.
func (c *RedisCounts) Get(ctx context.Context, collection string) (int64, bool) {
	raw, err := c.client.Get(ctx, countKey(collection)).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *RedisCounts) Set(ctx context.Context, collection string, n int64) {
	_ = c.client.Set(ctx, countKey(collection), n, c.ttl).Err()
}

// Invalidate drops the cached count. On failure a stale entry lives until its ttl.
func (c *RedisCounts) Invalidate(ctx context.Context, collection string) {
	_ = c.client.Del(ctx, countKey(collection)).Err()
}

// NoCounts disables count caching.
type NoCounts struct{}

func (NoCounts) Get(context.Context, string) (int64, bool) { return 0, false }
func (NoCounts) Set(context.Context, string, int64)        {}
func (NoCounts) Invalidate(context.Context, string)        {}
