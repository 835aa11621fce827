// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package resource_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navtree/navtree/internal/resource"
)

// stubLookup serves a fixed set of resources keyed by id.
type stubLookup struct {
	byID map[int64]resource.Resource
}

func (s *stubLookup) FetchByID(_ context.Context, id int64) (*resource.Resource, error) {
	r, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *stubLookup) SearchByName(_ context.Context, query string, limit int) ([]resource.Resource, error) {
	var out []resource.Resource
	for _, r := range s.byID {
		if r.IsDeleted {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func TestRegisterValidation(t *testing.T) {
	lookup := &stubLookup{}

	cases := []struct {
		name    string
		typ     string
		cfg     resource.Config
		wantErr bool
	}{
		{"valid", "page", resource.Config{URLPattern: "/{slug}", Lookup: lookup}, false},
		{"empty type name", "", resource.Config{URLPattern: "/{slug}", Lookup: lookup}, true},
		{"nil lookup", "article", resource.Config{URLPattern: "/{slug}"}, true},
		{"missing placeholder", "article", resource.Config{URLPattern: "/articles", Lookup: lookup}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := resource.NewResolver()
			err := r.Register(tc.typ, tc.cfg)
			if tc.wantErr {
				assert.ErrorIs(t, err, resource.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterDuplicateIsFatalForTypeOnly(t *testing.T) {
	r := resource.NewResolver()
	lookup := &stubLookup{}

	require.NoError(t, r.Register("page", resource.Config{URLPattern: "/{slug}", Lookup: lookup}))
	err := r.Register("page", resource.Config{URLPattern: "/p/{slug}", Lookup: lookup})
	assert.ErrorIs(t, err, resource.ErrInvalidConfig)

	// The first registration keeps working.
	url, err := r.ResolveURL("page", "home")
	require.NoError(t, err)
	assert.Equal(t, "/home", url)
}

func TestResolveURL(t *testing.T) {
	r := resource.NewResolver()
	lookup := &stubLookup{}
	require.NoError(t, r.Register("article", resource.Config{URLPattern: "/blog/{slug}", Lookup: lookup}))

	url, err := r.ResolveURL("article", "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "/blog/hello-world", url)

	_, err = r.ResolveURL("ghost", "x")
	assert.ErrorIs(t, err, resource.ErrUnknownType)
}

func TestGetResourceIncludesSoftDeleted(t *testing.T) {
	r := resource.NewResolver()
	lookup := &stubLookup{byID: map[int64]resource.Resource{
		1: {ID: 1, Name: "Live", Slug: "live"},
		2: {ID: 2, Name: "Gone", Slug: "gone", IsDeleted: true},
	}}
	require.NoError(t, r.Register("page", resource.Config{
		URLPattern: "/{slug}", SupportsSoftDelete: true, Lookup: lookup,
	}))
	ctx := context.Background()

	res, err := r.GetResource(ctx, "page", 2)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsDeleted, "FetchByID reports soft-deleted resources rather than hiding them")

	res, err = r.GetResource(ctx, "page", 99)
	require.NoError(t, err)
	assert.Nil(t, res, "missing resource is nil, not an error")

	results, err := r.Search(ctx, "page", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "live", results[0].Slug, "search excludes soft-deleted resources")
}

func TestTypesSorted(t *testing.T) {
	r := resource.NewResolver()
	lookup := &stubLookup{}
	require.NoError(t, r.Register("page", resource.Config{URLPattern: "/{slug}", SupportsSoftDelete: true, Lookup: lookup}))
	require.NoError(t, r.Register("article", resource.Config{URLPattern: "/blog/{slug}", Lookup: lookup}))

	infos := r.Types()
	require.Len(t, infos, 2)
	assert.Equal(t, "article", infos[0].Name)
	assert.Equal(t, "page", infos[1].Name)
	assert.True(t, infos[1].SupportsSoftDelete)

	assert.True(t, r.Has("page"))
	assert.False(t, r.Has("ghost"))
}
