// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/navtree/navtree/internal/model"
	"github.com/navtree/navtree/internal/resource"
	"github.com/navtree/navtree/internal/store"
	"github.com/navtree/navtree/internal/util"
)

// ValidationError carries field-level validation failures for admin
// input. The map key is the field name, the value a human message.
type ValidationError map[string]string

func (e ValidationError) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

// MenuInput is the admin payload for creating or updating a menu.
type MenuInput struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	MaxDepth int64  `json:"max_depth"`
}

// ItemInput is the admin payload for creating or updating a menu item.
// Pointer fields distinguish absent from zero-valued.
type ItemInput struct {
	Name         string     `json:"name"`
	ParentID     *int64     `json:"parent_id"`
	CustomURL    *string    `json:"custom_url"`
	ResourceType *string    `json:"resource_type"`
	ResourceID   *int64     `json:"resource_id"`
	ResourceSlug *string    `json:"resource_slug"`
	DisplayAt    *time.Time `json:"display_at"`
	HideAt       *time.Time `json:"hide_at"`
	Icon         string     `json:"icon"`
	CSSClass     string     `json:"css_class"`
	Target       string     `json:"target"`
	IsActive     *bool      `json:"is_active"`
}

// MenuEditor performs all structural and attribute mutations on menus.
// Every successful mutation invalidates the affected menu's cache entry.
type MenuEditor struct {
	trees    *store.TreeStore
	resolver *resource.Resolver
	menus    *MenuService
}

// NewMenuEditor creates a new MenuEditor.
func NewMenuEditor(trees *store.TreeStore, resolver *resource.Resolver, menus *MenuService) *MenuEditor {
	return &MenuEditor{trees: trees, resolver: resolver, menus: menus}
}

// CreateMenu validates and creates a new menu root.
func (e *MenuEditor) CreateMenu(ctx context.Context, in MenuInput) (*model.MenuNode, error) {
	errs := ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		errs["name"] = "name is required"
	}
	if !util.IsValidMenuSlug(in.Slug) {
		errs["slug"] = "slug may contain only letters, digits, hyphens and underscores"
	}
	if in.MaxDepth < 0 {
		errs["max_depth"] = "max_depth must not be negative"
	}
	if len(errs) > 0 {
		return nil, errs
	}
	if in.MaxDepth == 0 {
		in.MaxDepth = model.DefaultMaxDepth
	}

	return e.trees.CreateRoot(ctx, in.Name, in.Slug, in.MaxDepth)
}

// UpdateMenu updates a menu root's attributes. Shrinking max_depth below
// the current tree height is rejected.
func (e *MenuEditor) UpdateMenu(ctx context.Context, rootID int64, in MenuInput) (*model.MenuNode, error) {
	root, err := e.trees.GetNode(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if !root.IsRoot {
		return nil, store.ErrNotFound
	}

	errs := ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		errs["name"] = "name is required"
	}
	if !util.IsValidMenuSlug(in.Slug) {
		errs["slug"] = "slug may contain only letters, digits, hyphens and underscores"
	}
	if in.MaxDepth <= 0 {
		errs["max_depth"] = "max_depth must be positive"
	} else {
		height, herr := e.trees.TreeHeight(ctx, root.ID)
		if herr != nil {
			return nil, herr
		}
		if in.MaxDepth < height {
			errs["max_depth"] = fmt.Sprintf("tree already has depth %d", height)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	oldSlug := root.Slug.String
	updated, err := e.trees.UpdateRoot(ctx, rootID, in.Name, in.Slug, in.MaxDepth)
	if err != nil {
		return nil, err
	}
	e.menus.InvalidateCache(ctx, oldSlug)
	if updated.Slug.String != oldSlug {
		e.menus.InvalidateCache(ctx, updated.Slug.String)
	}
	return updated, nil
}

// DeleteMenu removes a menu root and its whole subtree.
func (e *MenuEditor) DeleteMenu(ctx context.Context, rootID int64) error {
	root, err := e.trees.GetNode(ctx, rootID)
	if err != nil {
		return err
	}
	if !root.IsRoot {
		return store.ErrNotFound
	}
	if err := e.trees.Remove(ctx, root.ID); err != nil {
		return err
	}
	e.menus.InvalidateCache(ctx, root.Slug.String)
	return nil
}

// ListMenus returns all menu roots.
func (e *MenuEditor) ListMenus(ctx context.Context) ([]model.MenuNode, error) {
	return e.trees.ListRoots(ctx)
}

// GetMenu returns one menu root with its flat item list in lft order.
func (e *MenuEditor) GetMenu(ctx context.Context, rootID int64) (*model.MenuNode, []model.MenuNode, error) {
	root, err := e.trees.GetNode(ctx, rootID)
	if err != nil {
		return nil, nil, err
	}
	if !root.IsRoot {
		return nil, nil, store.ErrNotFound
	}
	items, err := e.trees.FetchSubtree(ctx, root.ID)
	if err != nil {
		return nil, nil, err
	}
	return root, items, nil
}

// AddItem validates and inserts a new item under the given parent, or
// directly under the menu root when in.ParentID is nil.
func (e *MenuEditor) AddItem(ctx context.Context, rootID int64, in ItemInput) (*model.MenuNode, error) {
	root, err := e.trees.GetNode(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if !root.IsRoot {
		return nil, store.ErrNotFound
	}

	node, errs := e.buildItem(in)
	if len(errs) > 0 {
		return nil, errs
	}

	parentID := root.ID
	if in.ParentID != nil {
		parentID = *in.ParentID
	}
	created, err := e.trees.Insert(ctx, node, parentID)
	if err != nil {
		return nil, err
	}
	e.menus.InvalidateCache(ctx, root.Slug.String)
	return created, nil
}

// UpdateItem updates an item's non-structural attributes. Parent changes
// go through MoveItem, not here.
func (e *MenuEditor) UpdateItem(ctx context.Context, itemID int64, in ItemInput) (*model.MenuNode, error) {
	node, err := e.trees.GetNode(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if node.IsRoot {
		return nil, store.ErrNotFound
	}

	updated, errs := e.buildItem(in)
	if in.ParentID != nil {
		switch {
		case *in.ParentID == itemID:
			errs["parent_id"] = "an item cannot be its own parent"
		case *in.ParentID != node.ParentID.Int64:
			errs["parent_id"] = "reparenting is not supported on update, use the move operation"
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	node.Name = updated.Name
	node.CustomURL = updated.CustomURL
	node.ResourceType = updated.ResourceType
	node.ResourceID = updated.ResourceID
	node.ResourceSlug = updated.ResourceSlug
	node.DisplayAt = updated.DisplayAt
	node.HideAt = updated.HideAt
	node.Icon = updated.Icon
	node.CSSClass = updated.CSSClass
	node.Target = updated.Target
	node.IsActive = updated.IsActive
	saved, err := e.trees.UpdateNode(ctx, node)
	if err != nil {
		return nil, err
	}
	e.invalidateByNode(ctx, saved)
	return saved, nil
}

// DeleteItem removes an item and its entire subtree.
func (e *MenuEditor) DeleteItem(ctx context.Context, itemID int64) error {
	node, err := e.trees.GetNode(ctx, itemID)
	if err != nil {
		return err
	}
	if node.IsRoot {
		return store.ErrNotFound
	}
	if err := e.trees.Remove(ctx, node.ID); err != nil {
		return err
	}
	e.invalidateByNode(ctx, node)
	return nil
}

// MoveItem relocates an item (with its subtree) under a new parent,
// at the given sibling position. Position is clamped to the valid range.
func (e *MenuEditor) MoveItem(ctx context.Context, itemID, newParentID, position int64) error {
	node, err := e.trees.GetNode(ctx, itemID)
	if err != nil {
		return err
	}
	if node.IsRoot {
		return store.ErrNotFound
	}
	if err := e.trees.Move(ctx, itemID, newParentID, position); err != nil {
		return err
	}
	e.invalidateByNode(ctx, node)
	return nil
}

// ReorderItems rewrites the sibling order under one parent. The id list
// must be exactly the parent's current children.
func (e *MenuEditor) ReorderItems(ctx context.Context, parentID int64, orderedIDs []int64) error {
	node, err := e.trees.GetNode(ctx, parentID)
	if err != nil {
		return err
	}
	if err := e.trees.Reorder(ctx, parentID, orderedIDs); err != nil {
		return err
	}
	e.invalidateByNode(ctx, node)
	return nil
}

// RebuildMenu replaces a menu's whole hierarchy from a nested id
// structure, as produced by drag-and-drop editors.
func (e *MenuEditor) RebuildMenu(ctx context.Context, rootID int64, items []store.RebuildItem) error {
	root, err := e.trees.GetNode(ctx, rootID)
	if err != nil {
		return err
	}
	if !root.IsRoot {
		return store.ErrNotFound
	}
	if err := e.trees.Rebuild(ctx, root.ID, items); err != nil {
		return err
	}
	e.menus.InvalidateCache(ctx, root.Slug.String)
	return nil
}

// buildItem validates an ItemInput and maps it onto a fresh node. The
// returned ValidationError is empty when the input is valid.
func (e *MenuEditor) buildItem(in ItemInput) (*model.MenuNode, ValidationError) {
	errs := ValidationError{}

	if strings.TrimSpace(in.Name) == "" {
		errs["name"] = "name is required"
	}
	if in.CustomURL != nil && len(*in.CustomURL) > model.MaxCustomURLLength {
		errs["custom_url"] = fmt.Sprintf("custom_url must not exceed %d characters", model.MaxCustomURLLength)
	}
	target := in.Target
	if target == "" {
		target = model.TargetSelf
	}
	if !model.IsValidTarget(target) {
		errs["target"] = "target must be _self or _blank"
	}
	if in.DisplayAt != nil && in.HideAt != nil && !in.HideAt.After(*in.DisplayAt) {
		errs["hide_at"] = "hide_at must be after display_at"
	}

	hasType := in.ResourceType != nil && *in.ResourceType != ""
	hasRef := in.ResourceID != nil || (in.ResourceSlug != nil && *in.ResourceSlug != "")
	switch {
	case hasType && !hasRef:
		errs["resource_id"] = "resource_type requires a resource reference"
	case !hasType && hasRef:
		errs["resource_type"] = "resource reference requires a resource_type"
	case hasType:
		if e.resolver != nil && !e.resolver.Has(*in.ResourceType) {
			errs["resource_type"] = fmt.Sprintf("unknown resource type %q", *in.ResourceType)
		}
	}

	node := &model.MenuNode{
		Name:         in.Name,
		CustomURL:    util.NullStringFromPtr(in.CustomURL),
		ResourceType: util.NullStringFromPtr(in.ResourceType),
		ResourceID:   util.NullInt64FromPtr(in.ResourceID),
		ResourceSlug: util.NullStringFromPtr(in.ResourceSlug),
		DisplayAt:    util.NullTimeFromPtr(in.DisplayAt),
		HideAt:       util.NullTimeFromPtr(in.HideAt),
		Icon:         util.NullStringFromValue(in.Icon),
		CSSClass:     util.NullStringFromValue(in.CSSClass),
		Target:       target,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}
	return node, errs
}

// invalidateByNode clears the cache entry of the menu containing node.
func (e *MenuEditor) invalidateByNode(ctx context.Context, node *model.MenuNode) {
	rootID := node.RootID
	if node.IsRoot {
		rootID = node.ID
	}
	root, err := e.trees.GetNode(ctx, rootID)
	if err != nil {
		e.menus.InvalidateCache(ctx, "")
		return
	}
	e.menus.InvalidateCache(ctx, root.Slug.String)
}
