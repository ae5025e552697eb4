package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mindroute-ai/mindroute/src/config"
	"github.com/mindroute-ai/mindroute/src/models"
)

const (
	entryPrefix = "route:entry:"
	hitsPrefix  = "route:hits:"
)

// RedisCache is the shared tier, speaking get/set/delete-with-TTL to a
// Redis-compatible service. Eviction is TTL-only.
type RedisCache struct {
	client *redis.Client

	hits   atomic.Int64
	misses atomic.Int64
}

func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Name() string {
	return models.TierShared
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*models.CacheEntry, error) {
	val, err := c.client.Get(ctx, entryPrefix+fingerprint).Result()
	if err == redis.Nil {
		c.misses.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, err
	}

	// Redis already expired the key if past TTL, but guard against a
	// value written with a longer key TTL than the entry TTL.
	if entry.Expired(time.Now()) {
		c.misses.Add(1)
		return nil, nil
	}

	c.hits.Add(1)

	// The counter must never outlive its entry, so its expiry is pinned
	// to the entry's remaining lifetime on every read.
	remaining := entry.TTL - time.Since(entry.CreatedAt)
	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, hitsPrefix+fingerprint)
	pipe.Expire(ctx, hitsPrefix+fingerprint, remaining)
	if _, err := pipe.Exec(ctx); err == nil {
		entry.HitCount = incr.Val()
	}

	return &entry, nil
}

func (c *RedisCache) Set(ctx context.Context, entry *models.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, entryPrefix+entry.Fingerprint, data, entry.TTL)
	pipe.Set(ctx, hitsPrefix+entry.Fingerprint, entry.HitCount, entry.TTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Delete(ctx context.Context, fingerprint string) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, entryPrefix+fingerprint)
	pipe.Del(ctx, hitsPrefix+fingerprint)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Stats() models.TierStats {
	return models.TierStats{
		Tier:   c.Name(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
