// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/navtree/navtree/internal/model"
	"github.com/navtree/navtree/internal/resource"
	"github.com/navtree/navtree/internal/util"
)

// ErrInvalidPageSlug is returned when a page slug fails the slug format
// rules (lowercase alphanumerics and single hyphens).
var ErrInvalidPageSlug = errors.New("invalid page slug")

// PageStore manages the built-in page resources. It implements
// resource.Lookup so pages can be registered as a resolvable type.
type PageStore struct {
	db  *sql.DB
	obs QueryObserver
}

// NewPageStore returns a new PageStore.
func NewPageStore(db *sql.DB) *PageStore {
	return &PageStore{db: db}
}

// SetObserver injects an optional query timing observer.
func (s *PageStore) SetObserver(obs QueryObserver) {
	s.obs = obs
}

const pageColumns = `id, name, slug, deleted_at, created_at, updated_at`

func scanPage(scanner interface{ Scan(...any) error }) (*model.Page, error) {
	var p model.Page
	err := scanner.Scan(&p.ID, &p.Name, &p.Slug, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new page and returns it.
func (s *PageStore) Create(ctx context.Context, name, slug string) (*model.Page, error) {
	defer observe(s.obs, "pages.create", time.Now())

	if !util.IsValidSlug(slug) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPageSlug, slug)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pages (name, slug, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, slug, now, now)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create page id: %w", err)
	}
	return s.getByID(ctx, id)
}

// SoftDelete marks a page as deleted without removing the row, so menu
// nodes referencing it keep resolving by ID.
func (s *PageStore) SoftDelete(ctx context.Context, id int64) error {
	defer observe(s.obs, "pages.soft_delete", time.Now())

	res, err := s.db.ExecContext(ctx,
		`UPDATE pages SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("soft delete page: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PageStore) getByID(ctx context.Context, id int64) (*model.Page, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	return p, nil
}

// FetchByID implements resource.Lookup. Soft-deleted pages are returned
// with IsDeleted set; the deletion policy is the caller's decision.
func (s *PageStore) FetchByID(ctx context.Context, id int64) (*resource.Resource, error) {
	defer observe(s.obs, "pages.fetch_by_id", time.Now())

	p, err := s.getByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resource.Resource{
		ID:        p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		IsDeleted: p.IsDeleted(),
	}, nil
}

// SearchByName implements resource.Lookup. Soft-deleted pages are
// excluded and results are bounded by limit.
func (s *PageStore) SearchByName(ctx context.Context, query string, limit int) ([]resource.Resource, error) {
	defer observe(s.obs, "pages.search_by_name", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pageColumns+` FROM pages
		WHERE deleted_at IS NULL AND name LIKE '%' || ? || '%'
		ORDER BY name LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search pages: %w", err)
	}
	defer rows.Close()

	var results []resource.Resource
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		results = append(results, resource.Resource{ID: p.ID, Name: p.Name, Slug: p.Slug})
	}
	return results, rows.Err()
}
