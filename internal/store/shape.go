// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/navtree/navtree/internal/model"
)

// treeShape is an in-memory image of one whole menu, loaded inside a
// mutation transaction. Structural edits are applied to the children map
// and then written back in a single renumber pass, so nested-set bounds
// are never observable in a half-updated state.
type treeShape struct {
	root     *model.MenuNode
	byID     map[int64]*model.MenuNode
	children map[int64][]*model.MenuNode // ordered sibling lists
	original map[int64]model.MenuNode    // pre-edit copies for change detection
}

// loadShape loads the menu containing the given node (any node id in the
// menu works, including the root's) ordered by lft.
func loadShape(ctx context.Context, tx *sql.Tx, nodeID int64) (*treeShape, error) {
	node, err := getNodeTx(ctx, tx, nodeID)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM menu_nodes WHERE root_id = ? ORDER BY lft`, node.RootID)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	defer rows.Close()

	shape := &treeShape{
		byID:     map[int64]*model.MenuNode{},
		children: map[int64][]*model.MenuNode{},
		original: map[int64]model.MenuNode{},
	}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		shape.byID[n.ID] = n
		shape.original[n.ID] = *n
		if n.IsRoot {
			shape.root = n
		} else if n.ParentID.Valid {
			shape.children[n.ParentID.Int64] = append(shape.children[n.ParentID.Int64], n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if shape.root == nil {
		return nil, ErrNotFound
	}
	return shape, nil
}

// detach removes a node from its current parent's sibling list.
func (s *treeShape) detach(node *model.MenuNode) {
	if !node.ParentID.Valid {
		return
	}
	siblings := s.children[node.ParentID.Int64]
	for i, sib := range siblings {
		if sib.ID == node.ID {
			s.children[node.ParentID.Int64] = append(siblings[:i:i], siblings[i+1:]...)
			return
		}
	}
}

// attach inserts a node into parent's sibling list at the given position,
// clamped to [0, len].
func (s *treeShape) attach(node *model.MenuNode, parent *model.MenuNode, position int64) {
	siblings := s.children[parent.ID]
	pos := int(position)
	if pos < 0 {
		pos = 0
	}
	if pos > len(siblings) {
		pos = len(siblings)
	}
	siblings = append(siblings, nil)
	copy(siblings[pos+1:], siblings[pos:])
	siblings[pos] = node
	s.children[parent.ID] = siblings
	node.ParentID = sql.NullInt64{Int64: parent.ID, Valid: true}
}

// remove drops a node's entire subtree from the shape after the rows have
// been deleted, so the renumber pass only sees survivors.
func (s *treeShape) remove(node *model.MenuNode) {
	s.detach(node)
	var drop func(n *model.MenuNode)
	drop = func(n *model.MenuNode) {
		for _, c := range s.children[n.ID] {
			drop(c)
		}
		delete(s.children, n.ID)
		delete(s.byID, n.ID)
		delete(s.original, n.ID)
	}
	drop(node)
}

// renumberAndSave renumbers lft/rgt/depth/position for the whole menu via
// a depth-first walk and writes back only the rows that actually changed.
// A no-op edit therefore touches no rows at all.
func (s *treeShape) renumberAndSave(ctx context.Context, tx *sql.Tx) error {
	counter := int64(1)
	var walk func(n *model.MenuNode, depth int64)
	walk = func(n *model.MenuNode, depth int64) {
		n.Depth = depth
		n.Lft = counter
		counter++
		for i, c := range s.children[n.ID] {
			c.Position = int64(i)
			c.ParentID = sql.NullInt64{Int64: n.ID, Valid: true}
			walk(c, depth+1)
		}
		n.Rgt = counter
		counter++
	}
	walk(s.root, 0)

	now := time.Now().UTC()
	for id, n := range s.byID {
		orig := s.original[id]
		if orig.Lft == n.Lft && orig.Rgt == n.Rgt && orig.Depth == n.Depth &&
			orig.Position == n.Position && orig.ParentID == n.ParentID {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE menu_nodes SET parent_id = ?, position = ?, lft = ?, rgt = ?,
				depth = ?, updated_at = ?
			WHERE id = ?`,
			n.ParentID, n.Position, n.Lft, n.Rgt, n.Depth, now, n.ID); err != nil {
			return fmt.Errorf("renumber node %d: %w", n.ID, err)
		}
	}
	return nil
}
