// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package resource provides the pluggable resource resolver: a static
// registry mapping resource-type tags to lookup capabilities and URL
// route patterns. Menu nodes reference externally-owned entities through
// this registry instead of storing their URLs directly.
package resource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// SlugPlaceholder is the token every URL pattern must contain.
const SlugPlaceholder = "{slug}"

// Errors returned by the resolver.
var (
	// ErrUnknownType indicates the resource type is not registered.
	ErrUnknownType = errors.New("unknown resource type")
	// ErrInvalidConfig indicates a type registration failed validation.
	// It is fatal for the affected type only; other types stay usable.
	ErrInvalidConfig = errors.New("invalid resource configuration")
)

// Resource is the resolver's view of an externally-owned entity.
type Resource struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	IsDeleted bool   `json:"-"`
}

// Lookup is the capability interface a resource type's backing store must
// provide. FetchByID includes soft-deleted records (reporting IsDeleted
// rather than hiding them); SearchByName excludes them.
type Lookup interface {
	FetchByID(ctx context.Context, id int64) (*Resource, error)
	SearchByName(ctx context.Context, query string, limit int) ([]Resource, error)
}

// Config describes one resource type registration.
type Config struct {
	// URLPattern is the route template; must contain "{slug}".
	URLPattern string
	// SupportsSoftDelete declares whether the backing store soft-deletes.
	SupportsSoftDelete bool
	// Lookup is the backing store capability.
	Lookup Lookup
}

// TypeInfo describes a registered type for the admin listing endpoint.
type TypeInfo struct {
	Name               string `json:"name"`
	URLPattern         string `json:"url_pattern"`
	SupportsSoftDelete bool   `json:"supports_soft_delete"`
}

// Resolver is a static registry of resource types, validated eagerly at
// registration time. Registration happens at startup; lookups afterwards
// are read-only, so no locking is needed beyond the registration mutex.
type Resolver struct {
	mu    sync.RWMutex
	types map[string]Config
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{types: make(map[string]Config)}
}

// Register validates and adds a resource type. A failed registration is
// fatal for that type only.
func (r *Resolver) Register(name string, cfg Config) error {
	if name == "" {
		return fmt.Errorf("%w: empty type name", ErrInvalidConfig)
	}
	if cfg.Lookup == nil {
		return fmt.Errorf("%w: type %q has no lookup", ErrInvalidConfig, name)
	}
	if !strings.Contains(cfg.URLPattern, SlugPlaceholder) {
		return fmt.Errorf("%w: type %q pattern %q lacks %s placeholder",
			ErrInvalidConfig, name, cfg.URLPattern, SlugPlaceholder)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[name]; exists {
		return fmt.Errorf("%w: type %q already registered", ErrInvalidConfig, name)
	}
	r.types[name] = cfg
	return nil
}

// ResolveURL substitutes the slug into the type's URL pattern.
func (r *Resolver) ResolveURL(typ, slug string) (string, error) {
	r.mu.RLock()
	cfg, ok := r.types[typ]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return strings.ReplaceAll(cfg.URLPattern, SlugPlaceholder, slug), nil
}

// GetResource fetches a resource by type and id, including soft-deleted
// ones. Returns nil when the resource does not exist.
func (r *Resolver) GetResource(ctx context.Context, typ string, id int64) (*Resource, error) {
	r.mu.RLock()
	cfg, ok := r.types[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return cfg.Lookup.FetchByID(ctx, id)
}

// Search performs a bounded name-substring search excluding soft-deleted
// records.
func (r *Resolver) Search(ctx context.Context, typ, query string, limit int) ([]Resource, error) {
	r.mu.RLock()
	cfg, ok := r.types[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return cfg.Lookup.SearchByName(ctx, query, limit)
}

// Types returns the registered types sorted by name.
func (r *Resolver) Types() []TypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]TypeInfo, 0, len(r.types))
	for name, cfg := range r.types {
		infos = append(infos, TypeInfo{
			Name:               name,
			URLPattern:         cfg.URLPattern,
			SupportsSoftDelete: cfg.SupportsSoftDelete,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Has reports whether a type is registered.
func (r *Resolver) Has(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[typ]
	return ok
}
