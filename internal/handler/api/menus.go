// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/navtree/navtree/internal/service"
	"github.com/navtree/navtree/internal/store"
	"github.com/navtree/navtree/internal/util"
)

// maxMenusPerRequest caps the number of distinct slugs one multi-menu
// request may ask for.
const maxMenusPerRequest = 20

// writeMenuError writes the flat {error, message} body used on the
// public read endpoints, as opposed to the admin error envelope.
func writeMenuError(w http.ResponseWriter, status int, errText, message string) {
	WriteJSON(w, status, service.MenuError{Error: errText, Message: message})
}

// GetMenu handles GET /api/menus/{slug}: resolve one menu at the
// current instant and return its filtered, URL-resolved tree.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !util.IsValidMenuSlug(slug) {
		writeMenuError(w, http.StatusBadRequest, "Invalid menu slug",
			"Menu slugs may contain letters, digits, hyphens and underscores")
		return
	}

	tree, err := h.menus.ResolveMenu(r.Context(), slug, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMenuError(w, http.StatusNotFound, "Menu not found",
				"Menu with slug '"+slug+"' does not exist")
			return
		}
		slog.Error("menu resolution failed", "slug", slug, "error", err)
		writeMenuError(w, http.StatusInternalServerError, "Menu resolution failed",
			"Menu with slug '"+slug+"' could not be resolved")
		return
	}

	WriteJSON(w, http.StatusOK, tree)
}

// MultiMenuResponse is the body of a multi-menu request: one entry per
// requested slug plus the shared resolution timestamp.
type MultiMenuResponse struct {
	Menus     map[string]service.MultiMenuEntry `json:"menus"`
	Timestamp time.Time                         `json:"timestamp"`
}

// GetMenus handles GET /api/menus?menus=a,b,c: resolve several menus in
// one round trip. Every slug resolves against the same timestamp, and a
// missing menu yields a per-slug error entry rather than failing the
// whole request.
func (h *Handler) GetMenus(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("menus")
	if strings.TrimSpace(raw) == "" {
		writeMenuError(w, http.StatusBadRequest, "Missing menus parameter",
			"Query parameter 'menus' is required")
		return
	}

	var slugs []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			slugs = append(slugs, s)
		}
	}
	if len(slugs) == 0 {
		writeMenuError(w, http.StatusBadRequest, "Missing menus parameter",
			"Query parameter 'menus' is required")
		return
	}
	if len(slugs) > maxMenusPerRequest {
		writeMenuError(w, http.StatusBadRequest, "Too many menus requested",
			fmt.Sprintf("At most %d menus may be requested at once", maxMenusPerRequest))
		return
	}

	at := time.Now().UTC()
	results := h.menus.ResolveMenus(r.Context(), slugs, at)

	WriteJSON(w, http.StatusOK, MultiMenuResponse{
		Menus:     results,
		Timestamp: at,
	})
}
