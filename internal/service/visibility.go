// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides business logic: menu resolution and
// hierarchy editing on top of the tree store.
package service

import (
	"time"

	"github.com/navtree/navtree/internal/model"
)

// IsVisible reports whether a node is eligible to appear at the given
// instant. The display_at bound is inclusive and the hide_at bound is
// exclusive: a node becomes visible exactly at display_at and invisible
// exactly at hide_at. is_active is an independent kill-switch on top of
// the time window.
//
// Callers must evaluate every node of one response against the same
// captured timestamp, never re-reading the clock per node.
func IsVisible(n *model.MenuNode, at time.Time) bool {
	if !n.IsActive {
		return false
	}
	if n.DisplayAt.Valid && at.Before(n.DisplayAt.Time) {
		return false
	}
	if n.HideAt.Valid && !at.Before(n.HideAt.Time) {
		return false
	}
	return true
}
