// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Redis-based cache backend for distributed deployments.
type RedisCache struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	closed     atomic.Bool

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// RedisOptions configures the Redis cache.
type RedisOptions struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379/0)
	URL string

	// Prefix is prepended to all keys (e.g., "navtree:")
	Prefix string

	// DefaultTTL is the default expiration time for cache entries
	DefaultTTL time.Duration

	// ConnectTimeout is the timeout for establishing a connection
	ConnectTimeout time.Duration
}

// DefaultRedisOptions returns sensible defaults.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Prefix:         "navtree:",
		DefaultTTL:     time.Hour,
		ConnectTimeout: 5 * time.Second,
	}
}

// NewRedisCache creates a new Redis cache with the given options and
// verifies connectivity before returning.
func NewRedisCache(opts RedisOptions) (*RedisCache, error) {
	if opts.URL == "" {
		return nil, errors.New("redis URL is required")
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, err
	}
	if opts.ConnectTimeout > 0 {
		redisOpts.DialTimeout = opts.ConnectTimeout
	}

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisCache{
		client:     client,
		prefix:     opts.Prefix,
		defaultTTL: opts.DefaultTTL,
	}, nil
}

// Get retrieves a value from Redis.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	c.hits.Add(1)
	return val, nil
}

// Set stores a value in Redis.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return err
	}
	c.sets.Add(1)
	return nil
}

// Delete removes a key from Redis.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	return c.client.Del(ctx, c.prefix+key).Err()
}

// DeleteByPrefix removes all keys starting with the given prefix using a
// cursor scan, so large key sets do not block the server.
func (c *RedisCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	iter := c.client.Scan(ctx, 0, c.prefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close releases the Redis client.
func (c *RedisCache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		return c.client.Close()
	}
	return nil
}

// Stats returns cache statistics.
func (c *RedisCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	s := Stats{Hits: hits, Misses: misses, Sets: c.sets.Load()}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}
