// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs background jobs: cache invalidation for menus
// whose visibility windows open or close over time.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/navtree/navtree/internal/service"
	"github.com/navtree/navtree/internal/store"
)

// Scheduler evicts cached menus when their time-windowed items cross a
// display_at or hide_at boundary, and logs each crossing so operators
// can see scheduled content flips happen.
type Scheduler struct {
	trees  *store.TreeStore
	menus  *service.MenuService
	cron   *cron.Cron
	logger *slog.Logger

	mu       sync.Mutex
	lastTick time.Time
}

// New creates a new scheduler instance.
func New(trees *store.TreeStore, menus *service.MenuService, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		trees:    trees,
		menus:    menus,
		cron:     cron.New(),
		logger:   logger,
		lastTick: time.Now().UTC(),
	}
}

// Start begins the scheduler with a job that checks every minute for
// menus whose visibility boundaries have passed.
func (s *Scheduler) Start() error {
	// Run every minute
	_, err := s.cron.AddFunc("* * * * *", func() {
		if err := s.processWindowBoundaries(); err != nil {
			s.logger.Error("failed to process visibility boundaries", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// processWindowBoundaries invalidates every menu with a visibility
// boundary inside (lastTick, now]. Half-open on the left so a boundary
// is never processed twice, closed on the right so none is skipped.
func (s *Scheduler) processWindowBoundaries() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	s.mu.Lock()
	since := s.lastTick
	s.lastTick = now
	s.mu.Unlock()

	slugs, err := s.trees.MenusWithWindowBoundary(ctx, since, now)
	if err != nil {
		return err
	}
	if len(slugs) == 0 {
		return nil
	}

	for _, slug := range slugs {
		s.menus.InvalidateCache(ctx, slug)
		s.logger.Info("invalidated menu after visibility boundary", "slug", slug)
	}
	return nil
}
