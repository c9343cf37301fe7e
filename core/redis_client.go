// Package core's RedisClient is a thin, namespaced wrapper around go-redis,
// scoped to a single Redis instance: string get/set/del/ttl/expire and a
// non-blocking cursor-based Scan, which the cache package uses. It also
// exposes sorted-set and pipeline helpers that no package in this
// repository calls (the ratelimit package keeps its state in memory).
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient provides a namespaced Redis interface.
type RedisClient struct {
	client    *redis.Client
	dbID      int
	namespace string
	logger    Logger
}

// RedisClientOptions configures the Redis client.
type RedisClientOptions struct {
	RedisURL  string
	DB        int
	Namespace string
	Logger    Logger
}

// NewRedisClient connects to Redis and verifies the connection with a Ping.
func NewRedisClient(opts RedisClientOptions) (*RedisClient, error) {
	if opts.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required: %w", ErrInvalidConfiguration)
	}

	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", ErrInvalidConfiguration)
	}
	if opts.DB >= 0 {
		redisOpt.DB = opts.DB
	}

	client := redis.NewClient(redisOpt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis DB %d: %w", opts.DB, ErrConnectionFailed)
	}

	logger := opts.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}

	rc := &RedisClient{client: client, dbID: opts.DB, namespace: opts.Namespace, logger: logger}
	rc.logger.Info("Redis client connected", map[string]interface{}{
		"db":        opts.DB,
		"namespace": opts.Namespace,
	})
	return rc, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) formatKey(key string) string {
	if r.namespace != "" {
		return fmt.Sprintf("%s:%s", r.namespace, key)
	}
	return key
}

func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, r.formatKey(key)).Result()
}

func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.client.Set(ctx, r.formatKey(key), value, ttl).Err()
}

func (r *RedisClient) Del(ctx context.Context, keys ...string) error {
	formatted := make([]string, len(keys))
	for i, key := range keys {
		formatted[i] = r.formatKey(key)
	}
	return r.client.Del(ctx, formatted...).Err()
}

func (r *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, r.formatKey(key)).Result()
}

func (r *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, r.formatKey(key), ttl).Err()
}

// Scan performs one cursor step of a non-blocking SCAN over keys matching
// pattern (pattern is namespaced automatically). Callers loop until the
// returned cursor is 0 - this is the "never a blocking KEYS" requirement.
func (r *RedisClient) Scan(ctx context.Context, cursor uint64, pattern string, count int64) (keys []string, next uint64, err error) {
	return r.client.Scan(ctx, cursor, r.formatKey(pattern), count).Result()
}

// --- Sorted set operations (no caller in this repository) ---

func (r *RedisClient) ZAdd(ctx context.Context, key string, members ...*redis.Z) error {
	return r.client.ZAdd(ctx, r.formatKey(key), members...).Err()
}

func (r *RedisClient) ZRemRangeByScore(ctx context.Context, key string, min, max string) error {
	return r.client.ZRemRangeByScore(ctx, r.formatKey(key), min, max).Err()
}

func (r *RedisClient) ZCard(ctx context.Context, key string) (int64, error) {
	return r.client.ZCard(ctx, r.formatKey(key)).Result()
}

// Pipeline creates a pipeline for batched operations. The cache package's
// batch delete does not use it; it issues multi-key DELs instead.
func (r *RedisClient) Pipeline() redis.Pipeliner {
	return r.client.Pipeline()
}

// HealthCheck verifies Redis connectivity for readiness probes.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
