// Package cache implements the fast tier of spec.md §4.5/§6: a
// Redis-backed store keyed `ipintel:v1:{ip}`, TTL-refreshing reads, and
// non-blocking cursor-based key iteration for bulk maintenance, built on
// top of core.RedisClient.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/itsneelabh/gomind/core"
)

const keyPrefix = "ipintel:v1:"

// Cache wraps a core.RedisClient with the JSON-record encode/decode and
// batching policy spec.md §6 specifies.
type Cache struct {
	redis  *core.RedisClient
	logger core.Logger
}

func New(redis *core.RedisClient, logger core.Logger) *Cache {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Cache{redis: redis, logger: logger}
}

func cacheKey(ip string) string {
	return keyPrefix + ip
}

// Get returns the decoded record and its remaining TTL, or found=false on
// a cache miss. The caller is responsible for mapping the stored shape to
// correlation.Record - Cache stores/loads whatever JSON the caller passes,
// so the lookup service owns the concrete type to avoid an import cycle.
func (c *Cache) Get(ctx context.Context, ip string, dst interface{}) (found bool, ttl time.Duration, err error) {
	raw, err := c.redis.Get(ctx, cacheKey(ip))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("cache get %s: %w", ip, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, 0, fmt.Errorf("cache decode %s: %w", ip, err)
	}
	ttl, err = c.redis.TTL(ctx, cacheKey(ip))
	if err != nil {
		ttl = 0
	}
	return true, ttl, nil
}

// Set writes record with the given TTL.
func (c *Cache) Set(ctx context.Context, ip string, record interface{}, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", ip, err)
	}
	if err := c.redis.Set(ctx, cacheKey(ip), data, ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", ip, err)
	}
	return nil
}

// Touch extends an existing key's TTL back to the full window, the
// "stale-while-revalidate, simpler variant" behavior spec.md §4.5 point 2
// and §9 both call out: reading near-expiry entries resets their clock.
func (c *Cache) Touch(ctx context.Context, ip string, ttl time.Duration) error {
	return c.redis.Expire(ctx, cacheKey(ip), ttl)
}

// ScanKeys performs one non-blocking cursor step over all cache keys,
// never a blocking KEYS call, per spec.md §6.
func (c *Cache) ScanKeys(ctx context.Context, cursor uint64, count int64) (ips []string, next uint64, err error) {
	keys, next, err := c.redis.Scan(ctx, cursor, keyPrefix+"*", count)
	if err != nil {
		return nil, 0, err
	}
	ips = make([]string, len(keys))
	for i, k := range keys {
		ips[i] = k[len(keyPrefix):]
	}
	return ips, next, nil
}

// DeleteBatch removes keys in batches of up to 100, one multi-key DEL per
// batch, per spec.md §6's "bulk deletes in batches of <=100".
func (c *Cache) DeleteBatch(ctx context.Context, ips []string) error {
	const batchSize = 100
	for start := 0; start < len(ips); start += batchSize {
		end := start + batchSize
		if end > len(ips) {
			end = len(ips)
		}
		keys := make([]string, 0, end-start)
		for _, ip := range ips[start:end] {
			keys = append(keys, cacheKey(ip))
		}
		if err := c.redis.Del(ctx, keys...); err != nil {
			c.logger.Warn("cache batch delete failed", map[string]interface{}{"error": err.Error(), "count": len(keys)})
			return err
		}
	}
	return nil
}

// HealthCheck verifies Redis connectivity for the readiness probe.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.redis.HealthCheck(ctx)
}
