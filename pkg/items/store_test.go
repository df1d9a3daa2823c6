package items

import (
	"context"
	"testing"
	"time"
)

func TestStoreCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	item := mustCreate(t, store, "projects", "acct-1", nil)

	got, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "projects" || got.Path != item.Path || got.CreatorID != "acct-1" {
		t.Errorf("Got %+v, want name=projects path=%s creator=acct-1", got, item.Path)
	}
	if got.IsDeleted() {
		t.Error("Fresh item should not be deleted")
	}

	// Second read comes from the LRU.
	again, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Cached Get failed: %v", err)
	}
	if again != got {
		t.Error("Second Get should return the cached pointer")
	}
}

func TestStoreCreateInvalidName(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	item := NewItem("", "acct-1", nil)
	if err := store.Create(context.Background(), item); err != ErrInvalidItemName {
		t.Errorf("Got %v, want ErrInvalidItemName", err)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	if _, err := store.Get(context.Background(), "missing"); err != ErrItemNotFound {
		t.Errorf("Got %v, want ErrItemNotFound", err)
	}
}

func TestStoreGetByPath(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	item := mustCreate(t, store, "docs", "acct-1", nil)

	got, err := store.GetByPath(ctx, item.Path)
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if got.ID != item.ID {
		t.Errorf("Got id %s, want %s", got.ID, item.ID)
	}

	if _, err := store.GetByPath(ctx, "no.such.path"); err != ErrItemNotFound {
		t.Errorf("Got %v, want ErrItemNotFound", err)
	}
}

func TestStoreGetAncestors(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	root := mustCreate(t, store, "root", "acct-1", nil)
	child := mustCreate(t, store, "child", "acct-1", root)
	grandchild := mustCreate(t, store, "grandchild", "acct-1", child)

	ancestors, err := store.GetAncestors(ctx, grandchild.Path)
	if err != nil {
		t.Fatalf("GetAncestors failed: %v", err)
	}
	if len(ancestors) != 2 {
		t.Fatalf("Got %d ancestors, want 2", len(ancestors))
	}
	if ancestors[0].ID != root.ID || ancestors[1].ID != child.ID {
		t.Errorf("Ancestors out of order: got [%s %s], want root first", ancestors[0].ID, ancestors[1].ID)
	}

	// Roots have no ancestors.
	none, err := store.GetAncestors(ctx, root.Path)
	if err != nil {
		t.Fatalf("GetAncestors on root failed: %v", err)
	}
	if none != nil {
		t.Errorf("Root ancestors = %v, want nil", none)
	}
}

func TestStoreGetDescendants(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	root := mustCreate(t, store, "root", "acct-1", nil)
	child := mustCreate(t, store, "child", "acct-1", root)
	mustCreate(t, store, "grandchild", "acct-1", child)
	other := mustCreate(t, store, "other-root", "acct-1", nil)
	mustCreate(t, store, "other-child", "acct-1", other)

	descendants, err := store.GetDescendants(ctx, root.Path, false)
	if err != nil {
		t.Fatalf("GetDescendants failed: %v", err)
	}
	if len(descendants) != 2 {
		t.Fatalf("Got %d descendants, want 2", len(descendants))
	}
	for _, d := range descendants {
		if !IsDescendant(root.Path, d.Path) {
			t.Errorf("Item %s with path %s is not under %s", d.ID, d.Path, root.Path)
		}
	}
}

func TestStoreGetDescendantsExcludesDeleted(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	root := mustCreate(t, store, "root", "acct-1", nil)
	child := mustCreate(t, store, "child", "acct-1", root)
	keep := mustCreate(t, store, "keep", "acct-1", root)

	if _, err := store.SoftDeleteSubtree(ctx, child.Path); err != nil {
		t.Fatalf("SoftDeleteSubtree failed: %v", err)
	}

	visible, err := store.GetDescendants(ctx, root.Path, false)
	if err != nil {
		t.Fatalf("GetDescendants failed: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != keep.ID {
		t.Errorf("Visible descendants = %v, want only %s", visible, keep.ID)
	}

	all, err := store.GetDescendants(ctx, root.Path, true)
	if err != nil {
		t.Fatalf("GetDescendants(includeDeleted) failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Got %d descendants with deleted included, want 2", len(all))
	}
}

func TestStoreGetChildren(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	root := mustCreate(t, store, "root", "acct-1", nil)
	a := mustCreate(t, store, "alpha", "acct-1", root)
	b := mustCreate(t, store, "beta", "acct-1", root)
	mustCreate(t, store, "nested", "acct-1", a)

	children, err := store.GetChildren(ctx, root.Path, false)
	if err != nil {
		t.Fatalf("GetChildren failed: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("Got %d children, want 2 (grandchildren must be excluded)", len(children))
	}
	// Ordered by name.
	if children[0].ID != a.ID || children[1].ID != b.ID {
		t.Errorf("Children order = [%s %s], want [alpha beta]", children[0].Name, children[1].Name)
	}
}

func TestStoreListRecycleBin(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	root := mustCreate(t, store, "root", "acct-1", nil)
	child := mustCreate(t, store, "child", "acct-1", root)
	mustCreate(t, store, "grandchild", "acct-1", child)
	standalone := mustCreate(t, store, "standalone", "acct-1", nil)

	if _, err := store.SoftDeleteSubtree(ctx, child.Path); err != nil {
		t.Fatalf("SoftDeleteSubtree failed: %v", err)
	}
	if _, err := store.SoftDeleteSubtree(ctx, standalone.Path); err != nil {
		t.Fatalf("SoftDeleteSubtree failed: %v", err)
	}

	bin, err := store.ListRecycleBin(ctx)
	if err != nil {
		t.Fatalf("ListRecycleBin failed: %v", err)
	}
	// The bin lists recycled subtree roots only, not every deleted row.
	if len(bin) != 2 {
		t.Fatalf("Got %d bin entries, want 2", len(bin))
	}
	ids := map[string]bool{bin[0].ID: true, bin[1].ID: true}
	if !ids[child.ID] || !ids[standalone.ID] {
		t.Errorf("Bin entries = %v, want child and standalone roots", ids)
	}
}

func TestStoreWithTxSkipsCache(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	item := mustCreate(t, store, "doc", "acct-1", nil)
	if _, err := store.Get(ctx, item.ID); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	defer tx.Rollback()

	txStore := store.WithTx(tx)
	if _, err := txStore.SoftDeleteSubtree(ctx, item.Path); err != nil {
		t.Fatalf("SoftDeleteSubtree failed: %v", err)
	}

	// Inside the tx the store must read the uncommitted row, not the cache.
	got, err := txStore.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get in tx failed: %v", err)
	}
	if !got.IsDeleted() {
		t.Error("Transactional Get returned a stale cached item")
	}
}

func TestStorePrefixMatchingIsLiteral(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	// Segment underscores (every UUID carries four) are LIKE wildcards
	// when left unescaped, so "a_b" would prefix-match "axb" descendants.
	near := &Item{ID: "a-b", Name: "near", Path: ChildPath("", "a-b"), CreatorID: "acct-1"}
	far := &Item{ID: "axb", Name: "far", Path: ChildPath("", "axb"), CreatorID: "acct-1"}
	for _, item := range []*Item{near, far} {
		if err := store.Create(ctx, item); err != nil {
			t.Fatalf("Create %s failed: %v", item.Name, err)
		}
	}
	farChild := mustCreate(t, store, "far-child", "acct-1", far)

	descendants, err := store.GetDescendants(ctx, near.Path, false)
	if err != nil {
		t.Fatalf("GetDescendants failed: %v", err)
	}
	if len(descendants) != 0 {
		t.Errorf("Descendants of %q = %d items, want none", near.Path, len(descendants))
	}

	if _, err := store.SoftDeleteSubtree(ctx, near.Path); err != nil {
		t.Fatalf("SoftDeleteSubtree failed: %v", err)
	}
	got, err := store.Get(ctx, farChild.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.IsDeleted() {
		t.Error("Sibling subtree was caught by an unescaped path prefix")
	}
}

func TestStoreSubtreeMutationKeepsCacheUntilCommit(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	item := mustCreate(t, store, "doc", "acct-1", nil)
	if _, err := store.Get(ctx, item.ID); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}

	txStore := store.WithTx(tx)
	if _, err := txStore.SoftDeleteSubtree(ctx, item.Path); err != nil {
		t.Fatalf("SoftDeleteSubtree failed: %v", err)
	}

	// The cached row still matches the committed state; dropping it here
	// would let a concurrent Get re-cache whatever the reader sees next,
	// including the pre-commit row after the tx lands.
	cached, ok := store.cache.Get(item.ID)
	if !ok {
		t.Fatal("Cache entry dropped before the transaction committed")
	}
	if cached.IsDeleted() {
		t.Error("Cached entry reflects an uncommitted delete")
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	got, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get after rollback failed: %v", err)
	}
	if got.IsDeleted() {
		t.Error("Item should still be live after rollback")
	}
}

func TestStoreHardDeleteBefore(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	old := mustCreate(t, store, "old", "acct-1", nil)
	fresh := mustCreate(t, store, "fresh", "acct-1", nil)

	if _, err := store.SoftDeleteSubtree(ctx, old.Path); err != nil {
		t.Fatalf("SoftDeleteSubtree failed: %v", err)
	}
	// Backdate the old deletion past any cutoff we pick.
	if _, err := db.Exec(`UPDATE items SET deleted_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-48*time.Hour), old.ID); err != nil {
		t.Fatalf("Backdate failed: %v", err)
	}
	if _, err := store.SoftDeleteSubtree(ctx, fresh.Path); err != nil {
		t.Fatalf("SoftDeleteSubtree failed: %v", err)
	}

	purged, err := store.HardDeleteBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("HardDeleteBefore failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("Purged %d items, want 1", purged)
	}

	if _, err := store.Get(ctx, old.ID); err != ErrItemNotFound {
		t.Errorf("Old item should be gone, got %v", err)
	}
	if _, err := store.Get(ctx, fresh.ID); err != nil {
		t.Errorf("Fresh recycled item should survive, got %v", err)
	}
}
