// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the caching layer for resolved menu data, with
// an in-memory default and an optional Redis backend.
package cache

import (
	"context"
	"time"
)

// Cache defines the interface for cache backends.
// All implementations must be thread-safe.
// Values are []byte so the same interface serves memory and Redis.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil and ErrCacheMiss if not found or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with the specified TTL.
	// If TTL is 0, uses the backend's default TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the cache.
	Delete(ctx context.Context, key string) error

	// DeleteByPrefix removes all keys starting with the given prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Stats holds cache statistics.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	HitRate float64 `json:"hit_rate"`
}

// StatsProvider is an optional interface for backends that track statistics.
type StatsProvider interface {
	Stats() Stats
}

// Error represents an error type for cache operations.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrCacheMiss indicates the key was not found in cache or has expired.
	ErrCacheMiss Error = "cache miss"

	// ErrCacheClosed indicates the cache has been closed.
	ErrCacheClosed Error = "cache closed"
)
