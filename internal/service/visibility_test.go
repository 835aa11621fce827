// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"database/sql"
	"testing"
	"time"

	"github.com/navtree/navtree/internal/model"
)

func TestIsVisible(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	nullTime := func(t time.Time) sql.NullTime {
		return sql.NullTime{Time: t, Valid: true}
	}

	tests := []struct {
		name string
		node model.MenuNode
		want bool
	}{
		{
			name: "active without window",
			node: model.MenuNode{IsActive: true},
			want: true,
		},
		{
			name: "inactive",
			node: model.MenuNode{IsActive: false},
			want: false,
		},
		{
			name: "inactive overrides open window",
			node: model.MenuNode{
				IsActive:  false,
				DisplayAt: nullTime(at.Add(-time.Hour)),
				HideAt:    nullTime(at.Add(time.Hour)),
			},
			want: false,
		},
		{
			name: "display_at in future",
			node: model.MenuNode{IsActive: true, DisplayAt: nullTime(at.Add(time.Nanosecond))},
			want: false,
		},
		{
			name: "display_at exactly now is inclusive",
			node: model.MenuNode{IsActive: true, DisplayAt: nullTime(at)},
			want: true,
		},
		{
			name: "display_at just passed",
			node: model.MenuNode{IsActive: true, DisplayAt: nullTime(at.Add(-time.Nanosecond))},
			want: true,
		},
		{
			name: "hide_at exactly now is exclusive",
			node: model.MenuNode{IsActive: true, HideAt: nullTime(at)},
			want: false,
		},
		{
			name: "hide_at one instant away",
			node: model.MenuNode{IsActive: true, HideAt: nullTime(at.Add(time.Nanosecond))},
			want: true,
		},
		{
			name: "inside full window",
			node: model.MenuNode{
				IsActive:  true,
				DisplayAt: nullTime(at.Add(-time.Hour)),
				HideAt:    nullTime(at.Add(time.Hour)),
			},
			want: true,
		},
		{
			name: "window already closed",
			node: model.MenuNode{
				IsActive:  true,
				DisplayAt: nullTime(at.Add(-2 * time.Hour)),
				HideAt:    nullTime(at.Add(-time.Hour)),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVisible(&tt.node, at); got != tt.want {
				t.Errorf("IsVisible() = %v, want %v", got, tt.want)
			}
		})
	}
}
