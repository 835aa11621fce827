// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Page is the built-in linkable resource. Menu nodes reference pages
// through the resource resolver rather than storing page URLs directly.
// DeletedAt marks soft deletion; soft-deleted pages stay resolvable by ID
// so callers can decide the fallback policy themselves.
type Page struct {
	ID        int64
	Name      string
	Slug      string
	DeletedAt sql.NullTime
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDeleted reports whether the page has been soft-deleted.
func (p *Page) IsDeleted() bool {
	return p.DeletedAt.Valid
}
