// Copyright (c) 2025-2026 the navtree authors
// SPDX-License-Identifier: GPL-3.0-or-later

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/navtree/navtree/internal/model"
	"github.com/navtree/navtree/internal/store"
	"github.com/navtree/navtree/internal/testutil"
)

func newTreeStore(t *testing.T) (*store.TreeStore, func()) {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	return store.NewTreeStore(db), cleanup
}

func mustCreateRoot(t *testing.T, s *store.TreeStore, name, slug string, maxDepth int64) *model.MenuNode {
	t.Helper()
	root, err := s.CreateRoot(context.Background(), name, slug, maxDepth)
	if err != nil {
		t.Fatalf("CreateRoot(%q) error: %v", slug, err)
	}
	return root
}

func mustInsert(t *testing.T, s *store.TreeStore, parentID int64, name string) *model.MenuNode {
	t.Helper()
	n, err := s.Insert(context.Background(), &model.MenuNode{
		Name:     name,
		Target:   model.TargetSelf,
		IsActive: true,
	}, parentID)
	if err != nil {
		t.Fatalf("Insert(%q) error: %v", name, err)
	}
	return n
}

// checkNestedSet verifies the nested-set invariants of one menu: every
// bound in 1..2n is used exactly once, children sit strictly inside
// their parent's interval, depth is parent depth plus one, and sibling
// lft order matches position order.
func checkNestedSet(t *testing.T, s *store.TreeStore, rootID int64) {
	t.Helper()
	ctx := context.Background()

	root, err := s.GetNode(ctx, rootID)
	if err != nil {
		t.Fatalf("GetNode(root) error: %v", err)
	}
	items, err := s.FetchSubtree(ctx, rootID)
	if err != nil {
		t.Fatalf("FetchSubtree error: %v", err)
	}

	all := append([]model.MenuNode{*root}, items...)
	used := make(map[int64]bool, 2*len(all))
	byID := make(map[int64]*model.MenuNode, len(all))
	for i := range all {
		n := &all[i]
		byID[n.ID] = n
		if n.Lft >= n.Rgt {
			t.Errorf("node %d (%s): lft %d >= rgt %d", n.ID, n.Name, n.Lft, n.Rgt)
		}
		for _, b := range []int64{n.Lft, n.Rgt} {
			if b < 1 || b > int64(2*len(all)) {
				t.Errorf("node %d (%s): bound %d out of range 1..%d", n.ID, n.Name, b, 2*len(all))
			}
			if used[b] {
				t.Errorf("node %d (%s): bound %d used twice", n.ID, n.Name, b)
			}
			used[b] = true
		}
	}

	for i := range items {
		n := &items[i]
		if !n.ParentID.Valid {
			t.Errorf("item %d (%s): no parent", n.ID, n.Name)
			continue
		}
		p := byID[n.ParentID.Int64]
		if p == nil {
			t.Errorf("item %d (%s): parent %d not in menu", n.ID, n.Name, n.ParentID.Int64)
			continue
		}
		if !(p.Lft < n.Lft && n.Rgt < p.Rgt) {
			t.Errorf("item %d (%s): interval [%d,%d] not inside parent [%d,%d]",
				n.ID, n.Name, n.Lft, n.Rgt, p.Lft, p.Rgt)
		}
		if n.Depth != p.Depth+1 {
			t.Errorf("item %d (%s): depth = %d, want %d", n.ID, n.Name, n.Depth, p.Depth+1)
		}
	}

	// Sibling lft order must match position order.
	siblings := map[int64][]*model.MenuNode{}
	for i := range items {
		n := &items[i]
		siblings[n.ParentID.Int64] = append(siblings[n.ParentID.Int64], n)
	}
	for parent, sibs := range siblings {
		for i := 1; i < len(sibs); i++ {
			if sibs[i-1].Lft > sibs[i].Lft {
				t.Errorf("parent %d: siblings out of lft order", parent)
			}
			if sibs[i-1].Position > sibs[i].Position {
				t.Errorf("parent %d: siblings out of position order", parent)
			}
		}
	}
}

func subtreeNames(t *testing.T, s *store.TreeStore, rootID int64) []string {
	t.Helper()
	items, err := s.FetchSubtree(context.Background(), rootID)
	if err != nil {
		t.Fatalf("FetchSubtree error: %v", err)
	}
	names := make([]string, 0, len(items))
	for _, n := range items {
		names = append(names, n.Name)
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreateRootFailureLeavesNoRow(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	s := store.NewTreeStore(db)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.CreateRoot(canceled, "Main Menu", "main", 5); err == nil {
		t.Fatal("CreateRoot with canceled context succeeded")
	}

	// A failed creation must not squat the slug or strand a root whose
	// numbering space is unowned.
	ctx := context.Background()
	var orphans int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM menu_nodes WHERE slug = ? OR root_id = 0`, "main").Scan(&orphans)
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("found %d leftover rows after failed CreateRoot", orphans)
	}

	root := mustCreateRoot(t, s, "Main Menu", "main", 5)
	if root.RootID != root.ID {
		t.Errorf("root.RootID = %d, want %d", root.RootID, root.ID)
	}
	child := mustInsert(t, s, root.ID, "Home")
	if child.RootID != root.ID {
		t.Errorf("child.RootID = %d, want %d", child.RootID, root.ID)
	}
}

func TestCreateRoot(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()
	ctx := context.Background()

	root := mustCreateRoot(t, s, "Main Menu", "main", 5)
	if !root.IsRoot {
		t.Error("root.IsRoot = false, want true")
	}
	if root.RootID != root.ID {
		t.Errorf("root.RootID = %d, want %d", root.RootID, root.ID)
	}
	if root.Lft != 1 || root.Rgt != 2 {
		t.Errorf("new root bounds = [%d,%d], want [1,2]", root.Lft, root.Rgt)
	}
	if root.Depth != 0 {
		t.Errorf("root.Depth = %d, want 0", root.Depth)
	}

	if _, err := s.CreateRoot(ctx, "Other", "main", 5); !errors.Is(err, store.ErrDuplicateSlug) {
		t.Errorf("CreateRoot with duplicate slug: err = %v, want ErrDuplicateSlug", err)
	}

	found, err := s.FindRootBySlug(ctx, "main")
	if err != nil {
		t.Fatalf("FindRootBySlug error: %v", err)
	}
	if found.ID != root.ID {
		t.Errorf("FindRootBySlug id = %d, want %d", found.ID, root.ID)
	}

	if _, err := s.FindRootBySlug(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindRootBySlug(missing): err = %v, want ErrNotFound", err)
	}
}

func TestInsertBuildsPreOrder(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()

	root := mustCreateRoot(t, s, "Main", "main", 5)
	a := mustInsert(t, s, root.ID, "A")
	mustInsert(t, s, a.ID, "A1")
	mustInsert(t, s, root.ID, "B")

	got := subtreeNames(t, s, root.ID)
	want := []string{"A", "A1", "B"}
	if !equalStrings(got, want) {
		t.Errorf("subtree order = %v, want %v", got, want)
	}
	checkNestedSet(t, s, root.ID)

	// Root interval must cover the whole menu: 3 items -> [1,8].
	fresh, err := s.GetNode(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("GetNode error: %v", err)
	}
	if fresh.Lft != 1 || fresh.Rgt != 8 {
		t.Errorf("root bounds = [%d,%d], want [1,8]", fresh.Lft, fresh.Rgt)
	}
}

func TestInsertDepthExceeded(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()

	root := mustCreateRoot(t, s, "Shallow", "shallow", 1)
	a := mustInsert(t, s, root.ID, "A")

	_, err := s.Insert(context.Background(), &model.MenuNode{Name: "Too deep", Target: model.TargetSelf}, a.ID)
	if !errors.Is(err, store.ErrDepthExceeded) {
		t.Errorf("Insert past max_depth: err = %v, want ErrDepthExceeded", err)
	}
}

func TestInsertInvalidParent(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()

	mustCreateRoot(t, s, "Main", "main", 5)
	_, err := s.Insert(context.Background(), &model.MenuNode{Name: "Orphan", Target: model.TargetSelf}, 9999)
	if !errors.Is(err, store.ErrInvalidParent) {
		t.Errorf("Insert under missing parent: err = %v, want ErrInvalidParent", err)
	}
}

func TestMove(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()
	ctx := context.Background()

	root := mustCreateRoot(t, s, "Main", "main", 5)
	a := mustInsert(t, s, root.ID, "A")
	a1 := mustInsert(t, s, a.ID, "A1")
	b := mustInsert(t, s, root.ID, "B")

	if err := s.Move(ctx, b.ID, a.ID, 0); err != nil {
		t.Fatalf("Move error: %v", err)
	}

	got := subtreeNames(t, s, root.ID)
	want := []string{"A", "B", "A1"}
	if !equalStrings(got, want) {
		t.Errorf("after move: subtree order = %v, want %v", got, want)
	}
	checkNestedSet(t, s, root.ID)

	moved, err := s.GetNode(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetNode error: %v", err)
	}
	if moved.ParentID.Int64 != a.ID {
		t.Errorf("moved parent = %d, want %d", moved.ParentID.Int64, a.ID)
	}
	if moved.Depth != 1 {
		t.Errorf("moved depth = %d, want 1", moved.Depth)
	}

	// Cycles: under itself and under its own descendant.
	if err := s.Move(ctx, a.ID, a.ID, 0); !errors.Is(err, store.ErrCycleDetected) {
		t.Errorf("Move under itself: err = %v, want ErrCycleDetected", err)
	}
	if err := s.Move(ctx, a.ID, a1.ID, 0); !errors.Is(err, store.ErrCycleDetected) {
		t.Errorf("Move under descendant: err = %v, want ErrCycleDetected", err)
	}
}

func TestMoveDepthExceeded(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()
	ctx := context.Background()

	root := mustCreateRoot(t, s, "Main", "main", 2)
	a := mustInsert(t, s, root.ID, "A")
	mustInsert(t, s, a.ID, "A1")
	b := mustInsert(t, s, root.ID, "B")

	// Moving A (with its child at relative depth 1) under B would place
	// A1 at depth 3, past max_depth 2.
	if err := s.Move(ctx, a.ID, b.ID, 0); !errors.Is(err, store.ErrDepthExceeded) {
		t.Errorf("Move past max_depth: err = %v, want ErrDepthExceeded", err)
	}

	// The failed move must not have changed anything.
	checkNestedSet(t, s, root.ID)
	got := subtreeNames(t, s, root.ID)
	want := []string{"A", "A1", "B"}
	if !equalStrings(got, want) {
		t.Errorf("after failed move: subtree order = %v, want %v", got, want)
	}
}

func TestReorder(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()
	ctx := context.Background()

	root := mustCreateRoot(t, s, "Main", "main", 5)
	a := mustInsert(t, s, root.ID, "A")
	b := mustInsert(t, s, root.ID, "B")
	c := mustInsert(t, s, root.ID, "C")

	if err := s.Reorder(ctx, root.ID, []int64{c.ID, a.ID, b.ID}); err != nil {
		t.Fatalf("Reorder error: %v", err)
	}

	got := subtreeNames(t, s, root.ID)
	want := []string{"C", "A", "B"}
	if !equalStrings(got, want) {
		t.Errorf("after reorder: subtree order = %v, want %v", got, want)
	}
	checkNestedSet(t, s, root.ID)

	// Repeating the same order is a no-op.
	if err := s.Reorder(ctx, root.ID, []int64{c.ID, a.ID, b.ID}); err != nil {
		t.Fatalf("repeat Reorder error: %v", err)
	}
	if got := subtreeNames(t, s, root.ID); !equalStrings(got, want) {
		t.Errorf("after repeat reorder: subtree order = %v, want %v", got, want)
	}
}

func TestReorderInvalidChildSet(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()
	ctx := context.Background()

	root := mustCreateRoot(t, s, "Main", "main", 5)
	a := mustInsert(t, s, root.ID, "A")
	b := mustInsert(t, s, root.ID, "B")
	other := mustInsert(t, s, a.ID, "A1")

	cases := []struct {
		name string
		ids  []int64
	}{
		{"subset", []int64{a.ID}},
		{"duplicate", []int64{a.ID, a.ID}},
		{"foreign id", []int64{a.ID, other.ID}},
		{"superset", []int64{a.ID, b.ID, other.ID}},
	}
	for _, tc := range cases {
		if err := s.Reorder(ctx, root.ID, tc.ids); !errors.Is(err, store.ErrInvalidChildSet) {
			t.Errorf("Reorder %s: err = %v, want ErrInvalidChildSet", tc.name, err)
		}
	}
}

func TestRemoveSubtree(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()
	ctx := context.Background()

	root := mustCreateRoot(t, s, "Main", "main", 5)
	a := mustInsert(t, s, root.ID, "A")
	mustInsert(t, s, a.ID, "A1")
	mustInsert(t, s, a.ID, "A2")
	mustInsert(t, s, root.ID, "B")

	if err := s.Remove(ctx, a.ID); err != nil {
		t.Fatalf("Remove error: %v", err)
	}

	got := subtreeNames(t, s, root.ID)
	want := []string{"B"}
	if !equalStrings(got, want) {
		t.Errorf("after remove: subtree = %v, want %v", got, want)
	}
	checkNestedSet(t, s, root.ID)

	if _, err := s.GetNode(ctx, a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetNode(removed): err = %v, want ErrNotFound", err)
	}
}

func TestRemoveRootDeletesMenu(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()
	ctx := context.Background()

	root := mustCreateRoot(t, s, "Main", "main", 5)
	a := mustInsert(t, s, root.ID, "A")
	mustInsert(t, s, a.ID, "A1")

	other := mustCreateRoot(t, s, "Footer", "footer", 5)
	keep := mustInsert(t, s, other.ID, "Keep")

	if err := s.Remove(ctx, root.ID); err != nil {
		t.Fatalf("Remove(root) error: %v", err)
	}

	for _, id := range []int64{root.ID, a.ID} {
		if _, err := s.GetNode(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("GetNode(%d) after menu delete: err = %v, want ErrNotFound", id, err)
		}
	}

	// The other menu is untouched.
	if _, err := s.GetNode(ctx, keep.ID); err != nil {
		t.Errorf("GetNode(other menu item) error: %v", err)
	}
	checkNestedSet(t, s, other.ID)
}

func TestRebuild(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()
	ctx := context.Background()

	root := mustCreateRoot(t, s, "Main", "main", 5)
	a := mustInsert(t, s, root.ID, "A")
	b := mustInsert(t, s, root.ID, "B")
	c := mustInsert(t, s, root.ID, "C")

	// Rearrange to B > (C > A).
	layout := []store.RebuildItem{
		{ID: b.ID, Children: []store.RebuildItem{
			{ID: c.ID, Children: []store.RebuildItem{{ID: a.ID}}},
		}},
	}
	if err := s.Rebuild(ctx, root.ID, layout); err != nil {
		t.Fatalf("Rebuild error: %v", err)
	}

	got := subtreeNames(t, s, root.ID)
	want := []string{"B", "C", "A"}
	if !equalStrings(got, want) {
		t.Errorf("after rebuild: subtree order = %v, want %v", got, want)
	}
	checkNestedSet(t, s, root.ID)

	deep, err := s.GetNode(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetNode error: %v", err)
	}
	if deep.Depth != 3 {
		t.Errorf("deepest node depth = %d, want 3", deep.Depth)
	}
}

func TestRebuildValidation(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()
	ctx := context.Background()

	root := mustCreateRoot(t, s, "Main", "main", 2)
	a := mustInsert(t, s, root.ID, "A")
	b := mustInsert(t, s, root.ID, "B")
	mustInsert(t, s, a.ID, "A1")

	// Missing an item.
	err := s.Rebuild(ctx, root.ID, []store.RebuildItem{{ID: a.ID}, {ID: b.ID}})
	if !errors.Is(err, store.ErrInvalidChildSet) {
		t.Errorf("Rebuild missing item: err = %v, want ErrInvalidChildSet", err)
	}

	// Foreign id.
	err = s.Rebuild(ctx, root.ID, []store.RebuildItem{{ID: a.ID}, {ID: b.ID}, {ID: 9999}})
	if !errors.Is(err, store.ErrInvalidChildSet) {
		t.Errorf("Rebuild foreign id: err = %v, want ErrInvalidChildSet", err)
	}

	// Layout deeper than max_depth 2.
	items, err := s.FetchSubtree(ctx, root.ID)
	if err != nil {
		t.Fatalf("FetchSubtree error: %v", err)
	}
	var a1 int64
	for _, n := range items {
		if n.Name == "A1" {
			a1 = n.ID
		}
	}
	err = s.Rebuild(ctx, root.ID, []store.RebuildItem{
		{ID: a.ID, Children: []store.RebuildItem{
			{ID: b.ID, Children: []store.RebuildItem{{ID: a1}}},
		}},
	})
	if !errors.Is(err, store.ErrDepthExceeded) {
		t.Errorf("Rebuild past max_depth: err = %v, want ErrDepthExceeded", err)
	}
}

func TestTreeHeight(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()
	ctx := context.Background()

	root := mustCreateRoot(t, s, "Main", "main", 5)

	h, err := s.TreeHeight(ctx, root.ID)
	if err != nil {
		t.Fatalf("TreeHeight error: %v", err)
	}
	if h != 0 {
		t.Errorf("empty menu height = %d, want 0", h)
	}

	a := mustInsert(t, s, root.ID, "A")
	a1 := mustInsert(t, s, a.ID, "A1")
	mustInsert(t, s, a1.ID, "A1a")

	h, err = s.TreeHeight(ctx, root.ID)
	if err != nil {
		t.Fatalf("TreeHeight error: %v", err)
	}
	if h != 3 {
		t.Errorf("height = %d, want 3", h)
	}
}

func TestUpdateNodeKeepsStructure(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()
	ctx := context.Background()

	root := mustCreateRoot(t, s, "Main", "main", 5)
	a := mustInsert(t, s, root.ID, "A")
	mustInsert(t, s, root.ID, "B")

	a.Name = "A renamed"
	a.CustomURL = sql.NullString{String: "/custom", Valid: true}
	updated, err := s.UpdateNode(ctx, a)
	if err != nil {
		t.Fatalf("UpdateNode error: %v", err)
	}
	if updated.Name != "A renamed" {
		t.Errorf("updated name = %q, want %q", updated.Name, "A renamed")
	}
	if updated.Lft != a.Lft || updated.Rgt != a.Rgt || updated.Position != a.Position {
		t.Error("UpdateNode changed structural fields")
	}

	// Roots are not updatable through UpdateNode.
	if _, err := s.UpdateNode(ctx, root); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateNode(root): err = %v, want ErrNotFound", err)
	}
}

func TestMenusWithWindowBoundary(t *testing.T) {
	s, cleanup := newTreeStore(t)
	defer cleanup()
	ctx := context.Background()

	root := mustCreateRoot(t, s, "Main", "main", 5)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Insert(ctx, &model.MenuNode{
		Name:      "Scheduled",
		Target:    model.TargetSelf,
		IsActive:  true,
		DisplayAt: sql.NullTime{Time: base, Valid: true},
	}, root.ID)
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	// Boundary inside the window.
	slugs, err := s.MenusWithWindowBoundary(ctx, base.Add(-time.Minute), base)
	if err != nil {
		t.Fatalf("MenusWithWindowBoundary error: %v", err)
	}
	if len(slugs) != 1 || slugs[0] != "main" {
		t.Errorf("slugs = %v, want [main]", slugs)
	}

	// The interval is half-open: a boundary equal to since is excluded.
	slugs, err = s.MenusWithWindowBoundary(ctx, base, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("MenusWithWindowBoundary error: %v", err)
	}
	if len(slugs) != 0 {
		t.Errorf("slugs = %v, want none for already-processed boundary", slugs)
	}
}
