// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache is a thread-safe in-memory cache with TTL support.
type MemoryCache struct {
	data    sync.Map
	ttl     time.Duration
	stopCh  chan struct{}
	stopped atomic.Bool

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// cacheEntry holds a cached value with its expiration time.
type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache with the specified default
// TTL and starts a background sweep that evicts expired entries.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		ttl:    defaultTTL,
		stopCh: make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.evictExpired()
			case <-c.stopCh:
				return
			}
		}
	}()

	return c
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.stopped.Load() {
		return nil, ErrCacheClosed
	}

	val, ok := c.data.Load(key)
	if !ok {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}

	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.data.Delete(key)
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}

	c.hits.Add(1)
	return entry.value, nil
}

// Set stores a value in the cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.stopped.Load() {
		return ErrCacheClosed
	}
	if ttl == 0 {
		ttl = c.ttl
	}
	c.data.Store(key, &cacheEntry{value: value, expiresAt: time.Now().Add(ttl)})
	c.sets.Add(1)
	return nil
}

// Delete removes a key from the cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.data.Delete(key)
	return nil
}

// DeleteByPrefix removes all keys starting with the given prefix.
func (c *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.data.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			c.data.Delete(key)
		}
		return true
	})
	return nil
}

// Close stops the background sweep.
func (c *MemoryCache) Close() error {
	if c.stopped.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	return nil
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	s := Stats{Hits: hits, Misses: misses, Sets: c.sets.Load()}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// evictExpired removes expired entries.
func (c *MemoryCache) evictExpired() {
	now := time.Now()
	c.data.Range(func(key, val any) bool {
		if now.After(val.(*cacheEntry).expiresAt) {
			c.data.Delete(key)
		}
		return true
	})
}
