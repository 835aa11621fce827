// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"time"
)

// APIKey represents an admin API authentication key.
type APIKey struct {
	ID         int64        `json:"id"`
	Name       string       `json:"name"`
	KeyHash    string       `json:"-"` // Never expose hash in JSON
	KeyPrefix  string       `json:"key_prefix"`
	LastUsedAt sql.NullTime `json:"last_used_at,omitempty"`
	ExpiresAt  sql.NullTime `json:"expires_at,omitempty"`
	IsActive   bool         `json:"is_active"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// GenerateAPIKey generates a new random API key.
// Returns the raw key (to show user once) and the key prefix.
func GenerateAPIKey() (rawKey string, prefix string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", err
	}

	rawKey = base64.URLEncoding.EncodeToString(bytes)
	prefix = rawKey[:8]

	return rawKey, prefix, nil
}

// HashAPIKey creates a SHA-256 hash of the API key for storage.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
