// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/navtree/navtree/internal/store"
	"github.com/navtree/navtree/internal/testutil"
)

func newPageStore(t *testing.T) (*store.PageStore, func()) {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	return store.NewPageStore(db), cleanup
}

func TestPageCreateValidatesSlug(t *testing.T) {
	s, cleanup := newPageStore(t)
	defer cleanup()
	ctx := context.Background()

	page, err := s.Create(ctx, "About Us", "about-us")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if page.Slug != "about-us" || page.IsDeleted() {
		t.Errorf("created page = %+v", page)
	}

	for _, slug := range []string{"", "About-Us", "double--hyphen", "-leading", "has space"} {
		if _, err := s.Create(ctx, "Bad", slug); !errors.Is(err, store.ErrInvalidPageSlug) {
			t.Errorf("Create(%q): err = %v, want ErrInvalidPageSlug", slug, err)
		}
	}
}

func TestPageSoftDeleteLookupSemantics(t *testing.T) {
	s, cleanup := newPageStore(t)
	defer cleanup()
	ctx := context.Background()

	page, err := s.Create(ctx, "About Us", "about-us")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := s.SoftDelete(ctx, page.ID); err != nil {
		t.Fatalf("SoftDelete error: %v", err)
	}
	if err := s.SoftDelete(ctx, page.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second SoftDelete: err = %v, want ErrNotFound", err)
	}

	// Fetch by ID reports deletion instead of hiding the row.
	res, err := s.FetchByID(ctx, page.ID)
	if err != nil {
		t.Fatalf("FetchByID error: %v", err)
	}
	if res == nil || !res.IsDeleted {
		t.Errorf("FetchByID = %+v, want deleted resource", res)
	}

	// A missing ID is a nil result, not an error.
	res, err = s.FetchByID(ctx, page.ID+1000)
	if err != nil || res != nil {
		t.Errorf("FetchByID(missing) = %+v, %v, want nil, nil", res, err)
	}

	// Search never returns soft-deleted pages.
	results, err := s.SearchByName(ctx, "About", 10)
	if err != nil {
		t.Fatalf("SearchByName error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("search results = %+v, want none", results)
	}
}
