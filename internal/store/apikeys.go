// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/navtree/navtree/internal/model"
)

// APIKeyStore manages admin API keys.
type APIKeyStore struct {
	db *sql.DB
}

// NewAPIKeyStore returns a new APIKeyStore.
func NewAPIKeyStore(db *sql.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

const apiKeyColumns = `id, name, key_hash, key_prefix, last_used_at, expires_at,
	is_active, created_at, updated_at`

func scanAPIKey(scanner interface{ Scan(...any) error }) (*model.APIKey, error) {
	var k model.APIKey
	err := scanner.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.LastUsedAt,
		&k.ExpiresAt, &k.IsActive, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// Create generates and stores a new API key. The raw key is returned once
// and never persisted.
func (s *APIKeyStore) Create(ctx context.Context, name string) (rawKey string, key *model.APIKey, err error) {
	rawKey, prefix, err := model.GenerateAPIKey()
	if err != nil {
		return "", nil, fmt.Errorf("generate api key: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (name, key_hash, key_prefix, is_active, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)`,
		name, model.HashAPIKey(rawKey), prefix, now, now)
	if err != nil {
		return "", nil, fmt.Errorf("create api key: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("create api key id: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = ?`, id)
	key, err = scanAPIKey(row)
	if err != nil {
		return "", nil, fmt.Errorf("load api key: %w", err)
	}
	return rawKey, key, nil
}

// GetByHash retrieves an API key by its SHA-256 hash.
func (s *APIKeyStore) GetByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = ?`, hash)
	k, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return k, nil
}

// TouchLastUsed updates the last used timestamp.
func (s *APIKeyStore) TouchLastUsed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}
