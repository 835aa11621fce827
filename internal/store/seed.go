// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/navtree/navtree/internal/model"
	"github.com/navtree/navtree/internal/util"
)

// Seed creates the default menus and a handful of demo pages when the
// database is empty. It is a no-op unless enabled and idempotent when
// run against an already-seeded database.
func Seed(ctx context.Context, db *sql.DB, enabled bool) error {
	if !enabled {
		return nil
	}

	var count int64
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM menu_nodes WHERE is_root = 1`).Scan(&count); err != nil {
		return fmt.Errorf("counting menus: %w", err)
	}
	if count > 0 {
		return nil
	}

	trees := NewTreeStore(db)
	pages := NewPageStore(db)

	for _, name := range []string{"Home", "About", "Contact"} {
		if _, err := pages.Create(ctx, name, util.Slugify(name)); err != nil {
			return fmt.Errorf("seeding page %q: %w", name, err)
		}
	}

	main, err := trees.CreateRoot(ctx, "Main Menu", model.MenuMain, model.DefaultMaxDepth)
	if err != nil {
		return fmt.Errorf("seeding main menu: %w", err)
	}
	if _, err := trees.Insert(ctx, &model.MenuNode{
		Name:      "Home",
		CustomURL: util.NullStringFromValue("/"),
		Target:    model.TargetSelf,
		IsActive:  true,
	}, main.ID); err != nil {
		return fmt.Errorf("seeding main menu items: %w", err)
	}

	if _, err := trees.CreateRoot(ctx, "Footer Menu", model.MenuFooter, model.DefaultMaxDepth); err != nil {
		return fmt.Errorf("seeding footer menu: %w", err)
	}

	slog.Info("database seeded", "menus", []string{model.MenuMain, model.MenuFooter})
	return nil
}
