// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/navtree/navtree/internal/model"
	"github.com/navtree/navtree/internal/service"
	"github.com/navtree/navtree/internal/store"
	"github.com/navtree/navtree/internal/util"
)

// AdminMenu is the admin JSON shape of a menu root.
type AdminMenu struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	MaxDepth int64  `json:"max_depth"`
	IsActive bool   `json:"is_active"`
}

// AdminItem is the admin JSON shape of a menu item, flat with hierarchy
// metadata so editors can rebuild the tree client side.
type AdminItem struct {
	ID           int64   `json:"id"`
	ParentID     *int64  `json:"parent_id"`
	Name         string  `json:"name"`
	CustomURL    *string `json:"custom_url"`
	ResourceType *string `json:"resource_type"`
	ResourceID   *int64     `json:"resource_id"`
	ResourceSlug *string    `json:"resource_slug"`
	DisplayAt    *time.Time `json:"display_at"`
	HideAt       *time.Time `json:"hide_at"`
	Icon         string     `json:"icon,omitempty"`
	CSSClass     string     `json:"css_class,omitempty"`
	Target       string     `json:"target"`
	Position     int64      `json:"position"`
	Depth        int64      `json:"depth"`
	IsActive     bool       `json:"is_active"`
}

func adminMenuFromNode(n *model.MenuNode) AdminMenu {
	return AdminMenu{
		ID:       n.ID,
		Name:     n.Name,
		Slug:     n.Slug.String,
		MaxDepth: n.MaxDepth,
		IsActive: n.IsActive,
	}
}

func adminItemFromNode(n *model.MenuNode) AdminItem {
	return AdminItem{
		ID:           n.ID,
		ParentID:     util.PtrFromNullInt64(n.ParentID),
		Name:         n.Name,
		CustomURL:    util.PtrFromNullString(n.CustomURL),
		ResourceType: util.PtrFromNullString(n.ResourceType),
		ResourceID:   util.PtrFromNullInt64(n.ResourceID),
		ResourceSlug: util.PtrFromNullString(n.ResourceSlug),
		DisplayAt:    util.PtrFromNullTime(n.DisplayAt),
		HideAt:       util.PtrFromNullTime(n.HideAt),
		Icon:         n.Icon.String,
		CSSClass:     n.CSSClass.String,
		Target:       n.Target,
		Position:     n.Position,
		Depth:        n.Depth,
		IsActive:     n.IsActive,
	}
}

// writeEditorError maps service and store errors onto API responses.
func writeEditorError(w http.ResponseWriter, err error) {
	var verr service.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteValidationError(w, verr)
	case errors.Is(err, store.ErrNotFound):
		WriteNotFound(w, "Not found")
	case errors.Is(err, store.ErrDuplicateSlug):
		WriteConflict(w, "A menu with this slug already exists")
	case errors.Is(err, store.ErrCycleDetected):
		WriteConflict(w, "Move would create a cycle")
	case errors.Is(err, store.ErrDepthExceeded):
		WriteValidationError(w, map[string]string{"parent_id": "Operation would exceed the menu's maximum depth"})
	case errors.Is(err, store.ErrInvalidChildSet):
		WriteBadRequest(w, "Item ids must be exactly the current children of the parent", nil)
	case errors.Is(err, store.ErrInvalidParent):
		WriteBadRequest(w, "Invalid parent", nil)
	default:
		slog.Error("admin menu operation failed", "error", err)
		WriteInternalError(w, "Operation failed")
	}
}

// ListMenus handles GET /api/admin/menus.
func (h *Handler) ListMenus(w http.ResponseWriter, r *http.Request) {
	roots, err := h.editor.ListMenus(r.Context())
	if err != nil {
		writeEditorError(w, err)
		return
	}
	menus := make([]AdminMenu, 0, len(roots))
	for i := range roots {
		menus = append(menus, adminMenuFromNode(&roots[i]))
	}
	WriteSuccess(w, menus)
}

// CreateMenu handles POST /api/admin/menus.
func (h *Handler) CreateMenu(w http.ResponseWriter, r *http.Request) {
	var in service.MenuInput
	if !decodeJSONBody(w, r, &in) {
		return
	}
	root, err := h.editor.CreateMenu(r.Context(), in)
	if err != nil {
		writeEditorError(w, err)
		return
	}
	WriteCreated(w, adminMenuFromNode(root))
}

// GetAdminMenu handles GET /api/admin/menus/{id}: the root plus its flat
// item list in tree order.
func (h *Handler) GetAdminMenu(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid menu ID", nil)
		return
	}
	root, items, err := h.editor.GetMenu(r.Context(), id)
	if err != nil {
		writeEditorError(w, err)
		return
	}
	adminItems := make([]AdminItem, 0, len(items))
	for i := range items {
		adminItems = append(adminItems, adminItemFromNode(&items[i]))
	}
	WriteSuccess(w, struct {
		Menu  AdminMenu   `json:"menu"`
		Items []AdminItem `json:"items"`
	}{adminMenuFromNode(root), adminItems})
}

// UpdateMenu handles PUT /api/admin/menus/{id}.
func (h *Handler) UpdateMenu(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid menu ID", nil)
		return
	}
	var in service.MenuInput
	if !decodeJSONBody(w, r, &in) {
		return
	}
	root, err := h.editor.UpdateMenu(r.Context(), id, in)
	if err != nil {
		writeEditorError(w, err)
		return
	}
	WriteSuccess(w, adminMenuFromNode(root))
}

// DeleteMenu handles DELETE /api/admin/menus/{id}.
func (h *Handler) DeleteMenu(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid menu ID", nil)
		return
	}
	if err := h.editor.DeleteMenu(r.Context(), id); err != nil {
		writeEditorError(w, err)
		return
	}
	WriteJSON(w, http.StatusNoContent, nil)
}

// CreateItem handles POST /api/admin/menus/{id}/items.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid menu ID", nil)
		return
	}
	var in service.ItemInput
	if !decodeJSONBody(w, r, &in) {
		return
	}
	node, err := h.editor.AddItem(r.Context(), id, in)
	if err != nil {
		writeEditorError(w, err)
		return
	}
	WriteCreated(w, adminItemFromNode(node))
}

// UpdateItem handles PUT /api/admin/items/{id}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid item ID", nil)
		return
	}
	var in service.ItemInput
	if !decodeJSONBody(w, r, &in) {
		return
	}
	node, err := h.editor.UpdateItem(r.Context(), id, in)
	if err != nil {
		writeEditorError(w, err)
		return
	}
	WriteSuccess(w, adminItemFromNode(node))
}

// DeleteItem handles DELETE /api/admin/items/{id}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid item ID", nil)
		return
	}
	if err := h.editor.DeleteItem(r.Context(), id); err != nil {
		writeEditorError(w, err)
		return
	}
	WriteJSON(w, http.StatusNoContent, nil)
}

// MoveItemRequest is the body of a move operation.
type MoveItemRequest struct {
	ParentID int64 `json:"parent_id"`
	Position int64 `json:"position"`
}

// MoveItem handles POST /api/admin/items/{id}/move.
func (h *Handler) MoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid item ID", nil)
		return
	}
	var in MoveItemRequest
	if !decodeJSONBody(w, r, &in) {
		return
	}
	if err := h.editor.MoveItem(r.Context(), id, in.ParentID, in.Position); err != nil {
		writeEditorError(w, err)
		return
	}
	WriteJSON(w, http.StatusNoContent, nil)
}

// ReorderRequest is the body of a reorder operation: the complete new
// ordering of one parent's children.
type ReorderRequest struct {
	ParentID int64   `json:"parent_id"`
	ItemIDs  []int64 `json:"item_ids"`
}

// ReorderItems handles POST /api/admin/menus/{id}/reorder.
func (h *Handler) ReorderItems(w http.ResponseWriter, r *http.Request) {
	if _, err := parseIDParam(r); err != nil {
		WriteBadRequest(w, "Invalid menu ID", nil)
		return
	}
	var in ReorderRequest
	if !decodeJSONBody(w, r, &in) {
		return
	}
	if err := h.editor.ReorderItems(r.Context(), in.ParentID, in.ItemIDs); err != nil {
		writeEditorError(w, err)
		return
	}
	WriteJSON(w, http.StatusNoContent, nil)
}

// RebuildRequest is the body of a rebuild operation: the full nested
// layout of a menu as edited client side.
type RebuildRequest struct {
	Items []store.RebuildItem `json:"items"`
}

// RebuildMenu handles POST /api/admin/menus/{id}/rebuild.
func (h *Handler) RebuildMenu(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid menu ID", nil)
		return
	}
	var in RebuildRequest
	if !decodeJSONBody(w, r, &in) {
		return
	}
	if err := h.editor.RebuildMenu(r.Context(), id, in.Items); err != nil {
		writeEditorError(w, err)
		return
	}
	WriteJSON(w, http.StatusNoContent, nil)
}
