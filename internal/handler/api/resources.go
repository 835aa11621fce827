// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/navtree/navtree/internal/resource"
)

// defaultSearchLimit bounds resource searches when no limit is given.
const defaultSearchLimit = 20

// maxSearchLimit is the hard cap on a resource search page.
const maxSearchLimit = 100

// ListResourceTypes handles GET /api/admin/resource-types.
func (h *Handler) ListResourceTypes(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, h.resolver.Types())
}

// SearchResources handles GET /api/admin/resources/{type}/search?q=...
// Soft-deleted resources never appear in results.
func (h *Handler) SearchResources(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	query := r.URL.Query().Get("q")

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteBadRequest(w, "Invalid limit", nil)
			return
		}
		limit = min(n, maxSearchLimit)
	}

	results, err := h.resolver.Search(r.Context(), typ, query, limit)
	if err != nil {
		if errors.Is(err, resource.ErrUnknownType) {
			WriteNotFound(w, "Unknown resource type '"+typ+"'")
			return
		}
		slog.Error("resource search failed", "type", typ, "error", err)
		WriteInternalError(w, "Search failed")
		return
	}
	if results == nil {
		results = []resource.Resource{}
	}
	WriteSuccess(w, results)
}
