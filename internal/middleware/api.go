// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for API key authentication
// and rate limiting.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/navtree/navtree/internal/model"
	"github.com/navtree/navtree/internal/store"
)

// ContextKey is the type for request context keys set by this package.
type ContextKey string

// ContextKeyAPIKey is the context key for API key data.
const ContextKeyAPIKey ContextKey = "api_key"

// APIError represents a JSON error response for the API.
type APIError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	apiErr := APIError{}
	apiErr.Error.Code = code
	apiErr.Error.Message = message
	apiErr.Error.Details = details

	_ = json.NewEncoder(w).Encode(apiErr)
}

// validateAPIKey parses the Authorization header and validates the API key.
// The second return value indicates whether an error response was written.
func validateAPIKey(w http.ResponseWriter, r *http.Request, keys *store.APIKeyStore) (*model.APIKey, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Missing Authorization header", nil)
		return nil, true
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format. Use: Bearer <api_key>", nil)
		return nil, true
	}

	rawKey := parts[1]
	if rawKey == "" {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "API key is empty", nil)
		return nil, true
	}

	apiKey, err := keys.GetByHash(r.Context(), model.HashAPIKey(rawKey))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key", nil)
		} else {
			slog.Error("failed to validate API key", "error", err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to validate API key", nil)
		}
		return nil, true
	}

	if !apiKey.IsActive {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "API key is inactive", nil)
		return nil, true
	}

	if apiKey.ExpiresAt.Valid && time.Now().After(apiKey.ExpiresAt.Time) {
		WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "API key has expired", nil)
		return nil, true
	}

	return apiKey, false
}

// APIKeyAuth creates middleware that validates API key authentication.
// It checks the Authorization header for a Bearer token.
func APIKeyAuth(keys *store.APIKeyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, errorWritten := validateAPIKey(w, r, keys)
			if errorWritten {
				return
			}

			updateAPIKeyLastUsed(keys, apiKey.ID)
			ctx := context.WithValue(r.Context(), ContextKeyAPIKey, *apiKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAPIKey retrieves the API key from the request context.
// Returns nil if no API key is in context.
func GetAPIKey(r *http.Request) *model.APIKey {
	apiKey, ok := r.Context().Value(ContextKeyAPIKey).(model.APIKey)
	if !ok {
		return nil
	}
	return &apiKey
}

// updateAPIKeyLastUsed updates the last used timestamp in a background goroutine.
func updateAPIKeyLastUsed(keys *store.APIKeyStore, keyID int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = keys.TouchLastUsed(ctx, keyID)
	}()
}

// limiterCache is a generic rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// newLimiterCache creates a new limiter cache.
func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the rate limiter for a specific key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()

	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// clearIfExceeds clears all entries if the cache exceeds maxSize.
// Returns true if the cache was cleared.
func (lc *limiterCache[K]) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return true
	}
	return false
}

// GlobalRateLimiter rate limits unauthenticated requests per client IP.
type GlobalRateLimiter struct {
	cache   *limiterCache[string]
	maxSize int
}

// NewGlobalRateLimiter creates a new global rate limiter. maxSize bounds
// the number of tracked client IPs; the cache resets when it is exceeded.
func NewGlobalRateLimiter(rps float64, burst, maxSize int) *GlobalRateLimiter {
	return &GlobalRateLimiter{
		cache:   newLimiterCache[string](rps, burst),
		maxSize: maxSize,
	}
}

// Middleware returns the rate limiting middleware for API routes.
func (rl *GlobalRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.cache.clearIfExceeds(rl.maxSize) {
				slog.Warn("rate limiter cache reset", "max_size", rl.maxSize)
			}

			ip := getClientIP(r)
			if !rl.cache.get(ip).Allow() {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				WriteAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded. Please slow down.", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// Check X-Real-IP header (set by reverse proxies)
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	// Check X-Forwarded-For header
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		// X-Forwarded-For can contain multiple IPs; take the first one
		if idx := strings.IndexByte(ip, ','); idx > 0 {
			return strings.TrimSpace(ip[:idx])
		}
		return ip
	}

	// Fall back to RemoteAddr
	return r.RemoteAddr
}
