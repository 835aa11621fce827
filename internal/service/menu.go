// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/navtree/navtree/internal/cache"
	"github.com/navtree/navtree/internal/model"
	"github.com/navtree/navtree/internal/resource"
	"github.com/navtree/navtree/internal/store"
)

// DefaultResolveTimeout bounds the total wall time of one resolution
// request. Resolution is all-or-nothing per slug; there are no partial
// responses.
const DefaultResolveTimeout = 5 * time.Second

// MenuItem represents a resolved menu item for frontend rendering.
// URL is null when neither a custom URL nor a resolvable resource
// reference produced one.
type MenuItem struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	URL      *string    `json:"url"`
	Target   string     `json:"target"`
	CSSClass string     `json:"css_class,omitempty"`
	Icon     string     `json:"icon,omitempty"`
	Children []MenuItem `json:"children"`
}

// MenuTree is the resolved form of one menu.
type MenuTree struct {
	Slug      string     `json:"slug"`
	Name      string     `json:"name"`
	Items     []MenuItem `json:"items"`
	Timestamp time.Time  `json:"timestamp"`
}

// MenuError is the per-slug error entry in multi-menu responses.
type MenuError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MultiMenuEntry holds either a resolved tree or a per-slug error.
type MultiMenuEntry struct {
	Tree *MenuTree
	Err  *MenuError
}

// MarshalJSON emits the tree when resolution succeeded and the error
// object otherwise, so multi-menu responses stay flat per slug.
func (e MultiMenuEntry) MarshalJSON() ([]byte, error) {
	if e.Err != nil {
		return json.Marshal(e.Err)
	}
	return json.Marshal(e.Tree)
}

// MenuService resolves menu slugs into temporally-filtered, URL-resolved
// trees. Each request works against one captured timestamp and one read
// snapshot of the tree.
type MenuService struct {
	trees     *store.TreeStore
	resolver  *resource.Resolver
	menuCache *cache.MenuCache
	timeout   time.Duration
}

// NewMenuService creates a new MenuService.
// If menuCache is nil, every resolution goes straight to the store.
func NewMenuService(trees *store.TreeStore, resolver *resource.Resolver, menuCache *cache.MenuCache) *MenuService {
	return &MenuService{
		trees:     trees,
		resolver:  resolver,
		menuCache: menuCache,
		timeout:   DefaultResolveTimeout,
	}
}

// ResolveMenu resolves a menu slug at the given instant: root lookup,
// one bulk subtree fetch, per-node visibility filtering, URL resolution
// with degradation, and reassembly in sibling order. Returns
// store.ErrNotFound when no root carries the slug.
func (s *MenuService) ResolveMenu(ctx context.Context, slug string, at time.Time) (*MenuTree, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	root, items, err := s.loadMenu(ctx, slug)
	if err != nil {
		return nil, err
	}

	// Filter each node independently against the shared snapshot. A
	// child is never excluded here because of its ancestors; reassembly
	// below is where children of filtered-out parents get dropped.
	survivors := make([]*model.MenuNode, 0, len(items))
	for i := range items {
		if IsVisible(&items[i], at) {
			survivors = append(survivors, &items[i])
		}
	}

	// Reassemble in lft order: parents always precede their children, so
	// one forward pass settles membership. A surviving node whose parent
	// did not make it into the built tree is dropped entirely with its
	// subtree, never reparented.
	built := make(map[int64]*MenuItem, len(survivors))
	childIDs := make(map[int64][]int64, len(survivors))
	var order []*model.MenuNode
	var rootIDs []int64
	for _, n := range survivors {
		if !n.ParentID.Valid {
			continue
		}
		parent := n.ParentID.Int64
		if parent != root.ID {
			if _, ok := built[parent]; !ok {
				continue
			}
		}
		built[n.ID] = &MenuItem{
			ID:       n.ID,
			Name:     n.Name,
			URL:      s.resolveURL(ctx, n),
			Target:   n.Target,
			CSSClass: n.CSSClass.String,
			Icon:     n.Icon.String,
			Children: []MenuItem{},
		}
		order = append(order, n)
		if parent == root.ID {
			rootIDs = append(rootIDs, n.ID)
		} else {
			childIDs[parent] = append(childIDs[parent], n.ID)
		}
	}

	// Materialize bottom-up: in reverse lft order every descendant of a
	// node has already had its own Children filled in, so copying child
	// values into the parent is safe.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i].ID
		for _, cid := range childIDs[id] {
			built[id].Children = append(built[id].Children, *built[cid])
		}
	}

	tree := make([]MenuItem, 0, len(rootIDs))
	for _, id := range rootIDs {
		tree = append(tree, *built[id])
	}

	return &MenuTree{
		Slug:      slug,
		Name:      root.Name,
		Items:     tree,
		Timestamp: at,
	}, nil
}

// ResolveMenus resolves each slug independently; a failure for one slug
// never aborts the others. Duplicate slugs collapse into one entry.
func (s *MenuService) ResolveMenus(ctx context.Context, slugs []string, at time.Time) map[string]MultiMenuEntry {
	results := make(map[string]MultiMenuEntry, len(slugs))
	for _, slug := range slugs {
		if _, done := results[slug]; done {
			continue
		}
		tree, err := s.ResolveMenu(ctx, slug, at)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				results[slug] = MultiMenuEntry{Err: &MenuError{
					Error:   "Menu not found",
					Message: fmt.Sprintf("Menu with slug '%s' does not exist", slug),
				}}
			} else {
				slog.Error("menu resolution failed", "slug", slug, "error", err)
				results[slug] = MultiMenuEntry{Err: &MenuError{
					Error:   "Menu resolution failed",
					Message: fmt.Sprintf("Menu with slug '%s' could not be resolved", slug),
				}}
			}
			continue
		}
		results[slug] = MultiMenuEntry{Tree: tree}
	}
	return results
}

// InvalidateCache clears cached data for one menu, or all menus when
// slug is empty.
func (s *MenuService) InvalidateCache(ctx context.Context, slug string) {
	if s.menuCache == nil {
		return
	}
	if slug == "" {
		s.menuCache.Invalidate(ctx)
	} else {
		s.menuCache.InvalidateBySlug(ctx, slug)
	}
}

// loadMenu returns the root and its flat subtree, via the cache when one
// is configured. Cached entries hold unfiltered nodes only.
func (s *MenuService) loadMenu(ctx context.Context, slug string) (*model.MenuNode, []model.MenuNode, error) {
	if s.menuCache != nil {
		if entry, err := s.menuCache.Get(ctx, slug); err == nil && entry != nil {
			return &entry.Root, entry.Items, nil
		}
	}

	root, err := s.trees.FindRootBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.trees.FetchSubtree(ctx, root.ID)
	if err != nil {
		return nil, nil, err
	}

	if s.menuCache != nil {
		if err := s.menuCache.Set(ctx, slug, &cache.MenuEntry{Root: *root, Items: items}); err != nil {
			slog.Warn("failed to cache menu", "slug", slug, "error", err)
		}
	}
	return root, items, nil
}

// resolveURL computes a node's outbound URL. A custom URL wins verbatim;
// otherwise the resource reference is resolved through the registry.
// Any resolution failure degrades to a null URL with a log line; one
// bad link never aborts the whole response.
func (s *MenuService) resolveURL(ctx context.Context, n *model.MenuNode) *string {
	if n.CustomURL.Valid && n.CustomURL.String != "" {
		u := n.CustomURL.String
		return &u
	}
	if !n.HasResourceRef() || s.resolver == nil {
		return nil
	}

	typ := n.ResourceType.String

	// When the reference carries an id, verify the target still exists
	// and is not soft-deleted before emitting a link to it.
	if n.ResourceID.Valid {
		res, err := s.resolver.GetResource(ctx, typ, n.ResourceID.Int64)
		if err != nil {
			slog.Warn("resource lookup failed", "node_id", n.ID, "type", typ, "error", err)
			return nil
		}
		if res == nil || res.IsDeleted {
			slog.Warn("resource missing or deleted", "node_id", n.ID, "type", typ, "resource_id", n.ResourceID.Int64)
			return nil
		}
	}

	u, err := s.resolver.ResolveURL(typ, n.ResourceSlug.String)
	if err != nil {
		slog.Warn("url resolution failed", "node_id", n.ID, "type", typ, "error", err)
		return nil
	}
	return &u
}
