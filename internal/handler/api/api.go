// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides REST API handlers for the menu service.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/navtree/navtree/internal/resource"
	"github.com/navtree/navtree/internal/service"
)

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	menus    *service.MenuService
	editor   *service.MenuEditor
	resolver *resource.Resolver
}

// NewHandler creates a new API handler.
func NewHandler(menus *service.MenuService, editor *service.MenuEditor, resolver *resource.Resolver) *Handler {
	return &Handler{
		menus:    menus,
		editor:   editor,
		resolver: resolver,
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any `json:"data,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{Data: data})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	resp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	WriteJSON(w, statusCode, resp)
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteConflict writes a 409 Conflict response.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 Unprocessable Entity response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", fieldErrors)
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Status returns the API status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, StatusResponse{
		Status:  "ok",
		Version: "v1",
	})
}

// parseIDParam extracts the "id" URL parameter as an int64.
func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// decodeJSONBody decodes a JSON request body into dst. The body is
// limited to 1 MiB; menu payloads never come close to that.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return false
	}
	return true
}
