// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/navtree/navtree/internal/model"
)

// Structural errors returned by tree mutations.
var (
	// ErrNotFound indicates the requested menu or node does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDepthExceeded indicates a mutation would push a node past the
	// owning root's max_depth.
	ErrDepthExceeded = errors.New("depth exceeded")
	// ErrCycleDetected indicates a move would make a node its own ancestor.
	ErrCycleDetected = errors.New("cycle detected")
	// ErrInvalidChildSet indicates a reorder or rebuild did not name the
	// exact current child set.
	ErrInvalidChildSet = errors.New("invalid child set")
	// ErrInvalidParent indicates a missing parent or one from another menu.
	ErrInvalidParent = errors.New("invalid parent")
	// ErrDuplicateSlug indicates a root with the same slug already exists.
	ErrDuplicateSlug = errors.New("duplicate slug")
)

// TreeStore manages menu nodes as nested-set trees. Each menu root owns a
// private lft/rgt numbering space scoped by root_id, so structural changes
// in one menu never touch another. Structural mutations are serialized
// through a mutex and each runs in a single transaction: readers may see
// the tree before or after a mutation, never in between.
type TreeStore struct {
	db  *sql.DB
	obs QueryObserver

	mu sync.Mutex // serializes structural mutations
}

// NewTreeStore returns a new TreeStore.
func NewTreeStore(db *sql.DB) *TreeStore {
	return &TreeStore{db: db}
}

// SetObserver injects an optional query timing observer.
func (s *TreeStore) SetObserver(obs QueryObserver) {
	s.obs = obs
}

const nodeColumns = `id, parent_id, root_id, name, slug, custom_url,
	resource_type, resource_id, resource_slug, display_at, hide_at,
	icon, css_class, target, position, is_active, is_root, max_depth,
	lft, rgt, depth, created_at, updated_at`

// scanNode scans a row into a MenuNode struct.
func scanNode(scanner interface{ Scan(...any) error }) (*model.MenuNode, error) {
	var n model.MenuNode
	err := scanner.Scan(
		&n.ID, &n.ParentID, &n.RootID, &n.Name, &n.Slug, &n.CustomURL,
		&n.ResourceType, &n.ResourceID, &n.ResourceSlug, &n.DisplayAt, &n.HideAt,
		&n.Icon, &n.CSSClass, &n.Target, &n.Position, &n.IsActive, &n.IsRoot, &n.MaxDepth,
		&n.Lft, &n.Rgt, &n.Depth, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// FindRootBySlug retrieves a menu root by its slug.
func (s *TreeStore) FindRootBySlug(ctx context.Context, slug string) (*model.MenuNode, error) {
	defer observe(s.obs, "menu_nodes.find_root_by_slug", time.Now())

	row := s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM menu_nodes WHERE slug = ? AND is_root = 1`, slug)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find root by slug: %w", err)
	}
	return n, nil
}

// GetNode retrieves a node by ID.
func (s *TreeStore) GetNode(ctx context.Context, id int64) (*model.MenuNode, error) {
	defer observe(s.obs, "menu_nodes.get", time.Now())

	row := s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM menu_nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}

// ListRoots returns all menu roots ordered by name.
func (s *TreeStore) ListRoots(ctx context.Context) ([]model.MenuNode, error) {
	defer observe(s.obs, "menu_nodes.list_roots", time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM menu_nodes WHERE is_root = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list roots: %w", err)
	}
	defer rows.Close()

	return collectNodes(rows)
}

// FetchSubtree returns all descendants of a root ordered by lft (a
// pre-order traversal), fetched in one bulk query. The root itself is
// not included.
func (s *TreeStore) FetchSubtree(ctx context.Context, rootID int64) ([]model.MenuNode, error) {
	defer observe(s.obs, "menu_nodes.fetch_subtree", time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM menu_nodes
		 WHERE root_id = ? AND is_root = 0 ORDER BY lft`, rootID)
	if err != nil {
		return nil, fmt.Errorf("fetch subtree: %w", err)
	}
	defer rows.Close()

	return collectNodes(rows)
}

func collectNodes(rows *sql.Rows) ([]model.MenuNode, error) {
	var nodes []model.MenuNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// CreateRoot creates a new menu root. Roots start with an empty subtree
// (lft=1, rgt=2) and own their numbering space (root_id = id).
func (s *TreeStore) CreateRoot(ctx context.Context, name, slug string, maxDepth int64) (*model.MenuNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer observe(s.obs, "menu_nodes.create_root", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create root: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int64
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM menu_nodes WHERE slug = ? AND is_root = 1`, slug).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check root slug: %w", err)
	}
	if exists != 0 {
		return nil, ErrDuplicateSlug
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO menu_nodes (name, slug, target, position, is_active, is_root,
			max_depth, lft, rgt, depth, created_at, updated_at)
		VALUES (?, ?, ?, 0, 1, 1, ?, 1, 2, 0, ?, ?)`,
		name, slug, model.TargetSelf, maxDepth, now, now)
	if err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create root id: %w", err)
	}
	// The root owns its numbering space; the id is only known after the
	// insert, so the backfill must commit with it or not at all.
	if _, err := tx.ExecContext(ctx,
		`UPDATE menu_nodes SET root_id = ? WHERE id = ?`, id, id); err != nil {
		return nil, fmt.Errorf("set root id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create root: %w", err)
	}

	return s.GetNode(ctx, id)
}

// UpdateRoot updates a menu root's name, slug and max_depth.
func (s *TreeStore) UpdateRoot(ctx context.Context, id int64, name, slug string, maxDepth int64) (*model.MenuNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer observe(s.obs, "menu_nodes.update_root", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update root: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int64
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM menu_nodes WHERE slug = ? AND is_root = 1 AND id != ?`,
		slug, id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check root slug: %w", err)
	}
	if exists != 0 {
		return nil, ErrDuplicateSlug
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE menu_nodes SET name = ?, slug = ?, max_depth = ?, updated_at = ?
		WHERE id = ? AND is_root = 1`,
		name, slug, maxDepth, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("update root: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update root: %w", err)
	}

	return s.GetNode(ctx, id)
}

// TreeHeight returns the maximum depth present in a menu (0 for an empty
// menu). Used to validate max_depth shrinks and moves.
func (s *TreeStore) TreeHeight(ctx context.Context, rootID int64) (int64, error) {
	defer observe(s.obs, "menu_nodes.tree_height", time.Now())

	var height int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(depth), 0) FROM menu_nodes WHERE root_id = ?`, rootID).Scan(&height)
	if err != nil {
		return 0, fmt.Errorf("tree height: %w", err)
	}
	return height, nil
}

// Insert adds a new leaf node under parentID, opening a gap in the parent's
// nested-set interval. The node is appended as the parent's last child.
// Fields other than the structural ones are taken from node as given.
func (s *TreeStore) Insert(ctx context.Context, node *model.MenuNode, parentID int64) (*model.MenuNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer observe(s.obs, "menu_nodes.insert", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	parent, err := getNodeTx(ctx, tx, parentID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidParent
	}
	if err != nil {
		return nil, err
	}

	root, err := getNodeTx(ctx, tx, parent.RootID)
	if err != nil {
		return nil, err
	}

	depth := parent.Depth + 1
	if depth > root.MaxDepth {
		return nil, ErrDepthExceeded
	}

	// Open a two-wide gap at the end of the parent's interval. Ancestors
	// (including the parent) stretch their rgt; everything strictly to the
	// right shifts whole.
	if _, err := tx.ExecContext(ctx,
		`UPDATE menu_nodes SET rgt = rgt + 2 WHERE root_id = ? AND rgt >= ?`,
		root.ID, parent.Rgt); err != nil {
		return nil, fmt.Errorf("shift rgt: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE menu_nodes SET lft = lft + 2 WHERE root_id = ? AND lft > ?`,
		root.ID, parent.Rgt); err != nil {
		return nil, fmt.Errorf("shift lft: %w", err)
	}

	var position int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM menu_nodes WHERE parent_id = ?`,
		parent.ID).Scan(&position); err != nil {
		return nil, fmt.Errorf("next position: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO menu_nodes (parent_id, root_id, name, custom_url,
			resource_type, resource_id, resource_slug, display_at, hide_at,
			icon, css_class, target, position, is_active, is_root, max_depth,
			lft, rgt, depth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?, ?, ?)`,
		parent.ID, root.ID, node.Name, node.CustomURL,
		node.ResourceType, node.ResourceID, node.ResourceSlug, node.DisplayAt, node.HideAt,
		node.Icon, node.CSSClass, node.Target, position, node.IsActive,
		parent.Rgt, parent.Rgt+1, depth, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert node id: %w", err)
	}

	created, err := getNodeTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return created, nil
}

// UpdateNode updates a node's non-structural fields (name, link, window,
// presentation). Parent, position and bounds are untouched; use Move and
// Reorder for structural changes.
func (s *TreeStore) UpdateNode(ctx context.Context, node *model.MenuNode) (*model.MenuNode, error) {
	defer observe(s.obs, "menu_nodes.update", time.Now())

	res, err := s.db.ExecContext(ctx, `
		UPDATE menu_nodes SET name = ?, custom_url = ?, resource_type = ?,
			resource_id = ?, resource_slug = ?, display_at = ?, hide_at = ?,
			icon = ?, css_class = ?, target = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND is_root = 0`,
		node.Name, node.CustomURL, node.ResourceType,
		node.ResourceID, node.ResourceSlug, node.DisplayAt, node.HideAt,
		node.Icon, node.CSSClass, node.Target, node.IsActive, time.Now().UTC(),
		node.ID)
	if err != nil {
		return nil, fmt.Errorf("update node: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetNode(ctx, node.ID)
}

// Move relocates a node (and its whole subtree) under a new parent at the
// given sibling position. The new parent must belong to the same menu.
// Fails with ErrCycleDetected when the target parent is the node itself or
// one of its descendants, and with ErrDepthExceeded when the deepest moved
// descendant would end up below the root's max_depth.
func (s *TreeStore) Move(ctx context.Context, nodeID, newParentID, newPosition int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer observe(s.obs, "menu_nodes.move", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	shape, err := loadShape(ctx, tx, nodeID)
	if err != nil {
		return err
	}

	node := shape.byID[nodeID]
	if node == nil || node.IsRoot {
		return ErrNotFound
	}
	parent := shape.byID[newParentID]
	if parent == nil {
		return ErrInvalidParent
	}
	if parent.ID == node.ID || node.IsAncestorOf(parent) {
		return ErrCycleDetected
	}

	// Height of the moved subtree relative to the node itself.
	height := int64(0)
	for _, n := range shape.byID {
		if n.ID == node.ID || node.IsAncestorOf(n) {
			if h := n.Depth - node.Depth; h > height {
				height = h
			}
		}
	}
	if parent.Depth+1+height > shape.root.MaxDepth {
		return ErrDepthExceeded
	}

	shape.detach(node)
	shape.attach(node, parent, newPosition)

	if err := shape.renumberAndSave(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit move: %w", err)
	}
	return nil
}

// Reorder assigns positions 0..n-1 to the children of parentID following
// the given order. The id set must exactly match the current children.
// When the order actually changes, lft/rgt bounds are renumbered so that
// left-bound order stays equivalent to position order; a reorder that
// matches the current order writes nothing.
func (s *TreeStore) Reorder(ctx context.Context, parentID int64, orderedChildIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer observe(s.obs, "menu_nodes.reorder", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	shape, err := loadShape(ctx, tx, parentID)
	if err != nil {
		return err
	}

	current := shape.children[parentID]
	if len(current) != len(orderedChildIDs) {
		return ErrInvalidChildSet
	}
	byID := make(map[int64]*model.MenuNode, len(current))
	for _, c := range current {
		byID[c.ID] = c
	}
	reordered := make([]*model.MenuNode, 0, len(orderedChildIDs))
	seen := make(map[int64]bool, len(orderedChildIDs))
	for _, id := range orderedChildIDs {
		c, ok := byID[id]
		if !ok || seen[id] {
			return ErrInvalidChildSet
		}
		seen[id] = true
		reordered = append(reordered, c)
	}
	shape.children[parentID] = reordered

	if err := shape.renumberAndSave(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

// Remove deletes a node and its entire subtree, closing the nested-set
// gap. Removing a root deletes the whole menu.
func (s *TreeStore) Remove(ctx context.Context, nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer observe(s.obs, "menu_nodes.remove", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	node, err := getNodeTx(ctx, tx, nodeID)
	if err != nil {
		return err
	}

	if node.IsRoot {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM menu_nodes WHERE root_id = ?`, node.RootID); err != nil {
			return fmt.Errorf("delete menu: %w", err)
		}
		return tx.Commit()
	}

	shape, err := loadShape(ctx, tx, nodeID)
	if err != nil {
		return err
	}
	target := shape.byID[nodeID]

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM menu_nodes WHERE root_id = ? AND lft >= ? AND rgt <= ?`,
		target.RootID, target.Lft, target.Rgt); err != nil {
		return fmt.Errorf("delete subtree: %w", err)
	}

	shape.remove(target)

	if err := shape.renumberAndSave(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove: %w", err)
	}
	return nil
}

// RebuildItem describes one node in a bulk rebuild layout. Order within a
// Children slice is sibling order.
type RebuildItem struct {
	ID       int64         `json:"id"`
	Children []RebuildItem `json:"children,omitempty"`
}

// Rebuild replaces a menu's entire structure with the given nested layout
// in one atomic renumber pass. Every existing item must appear exactly
// once in the layout and no foreign ids are allowed. This is the bulk
// alternative to issuing one Move per node, which would recompute bounds
// per call and transiently reshape the tree.
func (s *TreeStore) Rebuild(ctx context.Context, rootID int64, layout []RebuildItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer observe(s.obs, "menu_nodes.rebuild", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	shape, err := loadShape(ctx, tx, rootID)
	if err != nil {
		return err
	}
	if !shape.root.IsRoot || shape.root.ID != rootID {
		return ErrNotFound
	}

	// The layout must cover the current item set exactly.
	var count func(items []RebuildItem) int
	count = func(items []RebuildItem) int {
		n := len(items)
		for _, it := range items {
			n += count(it.Children)
		}
		return n
	}
	if count(layout) != len(shape.byID)-1 {
		return ErrInvalidChildSet
	}

	children := map[int64][]*model.MenuNode{}
	seen := map[int64]bool{}
	var place func(items []RebuildItem, parent *model.MenuNode, depth int64) error
	place = func(items []RebuildItem, parent *model.MenuNode, depth int64) error {
		if depth > shape.root.MaxDepth && len(items) > 0 {
			return ErrDepthExceeded
		}
		for _, it := range items {
			n := shape.byID[it.ID]
			if n == nil || n.IsRoot || seen[it.ID] {
				return ErrInvalidChildSet
			}
			seen[it.ID] = true
			children[parent.ID] = append(children[parent.ID], n)
			if err := place(it.Children, n, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := place(layout, shape.root, 1); err != nil {
		return err
	}
	shape.children = children

	if err := shape.renumberAndSave(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	return nil
}

// MenusWithWindowBoundary returns the slugs of menus containing at least
// one node whose visibility boundary falls inside (since, until]. The
// scheduler uses this to invalidate cached menus exactly when their
// time-windowed items flip.
func (s *TreeStore) MenusWithWindowBoundary(ctx context.Context, since, until time.Time) ([]string, error) {
	defer observe(s.obs, "menu_nodes.window_boundary", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT r.slug FROM menu_nodes n
		JOIN menu_nodes r ON r.id = n.root_id
		WHERE r.is_root = 1 AND (
			(n.display_at IS NOT NULL AND n.display_at > ? AND n.display_at <= ?) OR
			(n.hide_at IS NOT NULL AND n.hide_at > ? AND n.hide_at <= ?))`,
		since, until, since, until)
	if err != nil {
		return nil, fmt.Errorf("window boundary: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan slug: %w", err)
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// getNodeTx fetches a node by ID inside a transaction.
func getNodeTx(ctx context.Context, tx *sql.Tx, id int64) (*model.MenuNode, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM menu_nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}
