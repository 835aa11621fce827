// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application.
package model

import (
	"database/sql"
	"time"
)

// Default menu slugs created by seeding.
const (
	MenuMain   = "main"
	MenuFooter = "footer"
)

// Menu item link target values
const (
	TargetSelf  = "_self"
	TargetBlank = "_blank"
)

// ValidTargets contains all valid link target values.
var ValidTargets = []string{TargetSelf, TargetBlank}

// MaxCustomURLLength is the maximum allowed length for a custom URL.
const MaxCustomURLLength = 2048

// DefaultMaxDepth is the descendant depth limit applied to new menus
// when none is specified.
const DefaultMaxDepth = 5

// MenuNode is the single tree entity. A menu root and a menu item share
// the same row shape; IsRoot distinguishes them. Slug and MaxDepth are
// meaningful only on roots. Lft and Rgt are the nested-set bounds: every
// descendant of a node has both bounds strictly inside the node's interval.
type MenuNode struct {
	ID           int64
	ParentID     sql.NullInt64
	RootID       int64 // owning root; equals ID for roots
	Name         string
	Slug         sql.NullString
	CustomURL    sql.NullString
	ResourceType sql.NullString
	ResourceID   sql.NullInt64
	ResourceSlug sql.NullString
	DisplayAt    sql.NullTime
	HideAt       sql.NullTime
	Icon         sql.NullString
	CSSClass     sql.NullString
	Target       string
	Position     int64
	IsActive     bool
	IsRoot       bool
	MaxDepth     int64
	Lft          int64
	Rgt          int64
	Depth        int64 // 0 for roots, parent depth + 1 otherwise
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsValidTarget checks if a target value is valid.
func IsValidTarget(target string) bool {
	for _, t := range ValidTargets {
		if t == target {
			return true
		}
	}
	return false
}

// HasResourceRef reports whether the node carries a resource reference.
// The resource_type/resource_id pair is all-or-nothing; resource_slug is
// what URL resolution substitutes into the route pattern.
func (n *MenuNode) HasResourceRef() bool {
	return n.ResourceType.Valid && n.ResourceSlug.Valid
}

// IsAncestorOf reports whether n is a strict ancestor of other, derived
// purely from nested-set bounds. Both nodes must belong to the same root.
func (n *MenuNode) IsAncestorOf(other *MenuNode) bool {
	return n.RootID == other.RootID && n.Lft < other.Lft && other.Rgt < n.Rgt
}
