// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"log/slog"
	"time"
)

// QueryObserver receives timing reports for executed queries. Stores call
// it after each statement when one is injected; a nil observer disables
// reporting entirely. Implementations must be safe for concurrent use.
type QueryObserver interface {
	OnQueryExecuted(pattern string, duration time.Duration)
}

// observe reports a completed query to the observer, if any.
func observe(obs QueryObserver, pattern string, started time.Time) {
	if obs != nil {
		obs.OnQueryExecuted(pattern, time.Since(started))
	}
}

// slowQueryThreshold is the duration above which a query is logged at
// warn level instead of debug.
const slowQueryThreshold = 250 * time.Millisecond

// slogObserver logs query timings at debug level and slow queries at warn.
type slogObserver struct {
	logger *slog.Logger
}

// SlogObserver returns a QueryObserver that logs each query pattern and
// duration through the given logger.
func SlogObserver(logger *slog.Logger) QueryObserver {
	return slogObserver{logger: logger}
}

func (o slogObserver) OnQueryExecuted(pattern string, duration time.Duration) {
	if duration >= slowQueryThreshold {
		o.logger.Warn("slow query", "pattern", pattern, "duration", duration)
		return
	}
	o.logger.Debug("query executed", "pattern", pattern, "duration", duration)
}
