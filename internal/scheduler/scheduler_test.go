// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/navtree/navtree/internal/cache"
	"github.com/navtree/navtree/internal/model"
	"github.com/navtree/navtree/internal/service"
	"github.com/navtree/navtree/internal/store"
	"github.com/navtree/navtree/internal/testutil"
	"github.com/navtree/navtree/internal/util"
)

func TestProcessWindowBoundaries(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()

	trees := store.NewTreeStore(db)
	backend := cache.NewMemoryCache(time.Hour, time.Hour)
	defer backend.Close()
	menuCache := cache.NewMenuCache(backend, time.Hour)
	menus := service.NewMenuService(trees, nil, menuCache)

	root, err := trees.CreateRoot(ctx, "Main", "main", 5)
	if err != nil {
		t.Fatalf("CreateRoot: %v", err)
	}
	boundary := time.Now().UTC().Add(-time.Minute)
	item := &model.MenuNode{
		Name:      "Promo",
		CustomURL: util.NullStringFromValue("/promo"),
		Target:    model.TargetSelf,
		IsActive:  true,
		DisplayAt: util.NullTimeFromPtr(&boundary),
	}
	if _, err := trees.Insert(ctx, item, root.ID); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Populate the cache, then let the scheduler observe the boundary.
	if _, err := menus.ResolveMenu(ctx, "main", time.Now().UTC()); err != nil {
		t.Fatalf("ResolveMenu: %v", err)
	}
	if entry, _ := menuCache.Get(ctx, "main"); entry == nil {
		t.Fatal("menu not cached after resolve")
	}

	s := New(trees, menus, testutil.TestLogger())
	s.mu.Lock()
	s.lastTick = boundary.Add(-time.Hour)
	s.mu.Unlock()

	if err := s.processWindowBoundaries(); err != nil {
		t.Fatalf("processWindowBoundaries: %v", err)
	}
	if entry, _ := menuCache.Get(ctx, "main"); entry != nil {
		t.Error("cached menu survived a visibility boundary crossing")
	}

	// A second pass starts after the boundary and must leave a fresh
	// cache entry alone.
	if _, err := menus.ResolveMenu(ctx, "main", time.Now().UTC()); err != nil {
		t.Fatalf("ResolveMenu: %v", err)
	}
	if err := s.processWindowBoundaries(); err != nil {
		t.Fatalf("second processWindowBoundaries: %v", err)
	}
	if entry, _ := menuCache.Get(ctx, "main"); entry == nil {
		t.Error("cache invalidated without a new boundary")
	}
}
