// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/navtree/navtree/internal/model"
)

// menuKeyPrefix namespaces menu entries inside the shared backend.
const menuKeyPrefix = "menu:"

// MenuEntry is the cached image of one menu: the root plus its flat
// subtree in lft order. Visibility filtering is deliberately NOT baked
// into cached entries: every request filters against its own timestamp,
// so time-windowed items flip correctly even on cache hits.
type MenuEntry struct {
	Root  model.MenuNode   `json:"root"`
	Items []model.MenuNode `json:"items"`
}

// MenuCache provides cached access to menus keyed by root slug.
type MenuCache struct {
	backend Cache
	ttl     time.Duration
}

// NewMenuCache creates a menu cache over the given backend.
func NewMenuCache(backend Cache, ttl time.Duration) *MenuCache {
	return &MenuCache{backend: backend, ttl: ttl}
}

// Get retrieves a cached menu by slug. Returns nil without error on a miss.
func (c *MenuCache) Get(ctx context.Context, slug string) (*MenuEntry, error) {
	data, err := c.backend.Get(ctx, menuKeyPrefix+slug)
	if err == ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry MenuEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry behaves like a miss; it will be overwritten.
		_ = c.backend.Delete(ctx, menuKeyPrefix+slug)
		return nil, nil
	}
	return &entry, nil
}

// Set stores a menu entry by slug.
func (c *MenuCache) Set(ctx context.Context, slug string, entry *MenuEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.backend.Set(ctx, menuKeyPrefix+slug, data, c.ttl)
}

// InvalidateBySlug removes one menu from the cache.
func (c *MenuCache) InvalidateBySlug(ctx context.Context, slug string) {
	_ = c.backend.Delete(ctx, menuKeyPrefix+slug)
}

// Invalidate removes all menus from the cache.
func (c *MenuCache) Invalidate(ctx context.Context) {
	_ = c.backend.DeleteByPrefix(ctx, menuKeyPrefix)
}

// Stats returns backend statistics when the backend provides them.
func (c *MenuCache) Stats() Stats {
	if sp, ok := c.backend.(StatsProvider); ok {
		return sp.Stats()
	}
	return Stats{}
}
