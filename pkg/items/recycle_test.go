package items

import (
	"context"
	"testing"
)

func TestRecyclerRecycleSubtree(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	recycler := NewRecycler(db, store, testLogger(), nil)
	ctx := context.Background()

	root := mustCreate(t, store, "root", "acct-1", nil)
	child := mustCreate(t, store, "child", "acct-1", root)
	grandchild := mustCreate(t, store, "grandchild", "acct-1", child)

	affected, err := recycler.Recycle(ctx, root.ID)
	if err != nil {
		t.Fatalf("Recycle failed: %v", err)
	}
	if affected != 3 {
		t.Errorf("Recycle affected %d items, want 3", affected)
	}

	for _, id := range []string{root.ID, child.ID, grandchild.ID} {
		got, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get %s failed: %v", id, err)
		}
		if !got.IsDeleted() {
			t.Errorf("Item %s should be in the recycle bin", id)
		}
	}
}

func TestRecyclerInvalidatesCachedLookups(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	recycler := NewRecycler(db, store, testLogger(), nil)
	ctx := context.Background()

	item := mustCreate(t, store, "doc", "acct-1", nil)
	// Prime the cache with the live row.
	if _, err := store.Get(ctx, item.ID); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if _, err := recycler.Recycle(ctx, item.ID); err != nil {
		t.Fatalf("Recycle failed: %v", err)
	}
	got, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get after recycle failed: %v", err)
	}
	if !got.IsDeleted() {
		t.Error("Get served a stale live row after the recycle committed")
	}

	if _, err := recycler.Restore(ctx, item.ID); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	got, err = store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get after restore failed: %v", err)
	}
	if got.IsDeleted() {
		t.Error("Get served a stale deleted row after the restore committed")
	}
}

func TestRecyclerRecycleAlreadyDeleted(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	recycler := NewRecycler(db, store, testLogger(), nil)
	ctx := context.Background()

	item := mustCreate(t, store, "doc", "acct-1", nil)
	if _, err := recycler.Recycle(ctx, item.ID); err != nil {
		t.Fatalf("Recycle failed: %v", err)
	}

	if _, err := recycler.Recycle(ctx, item.ID); err != ErrItemAlreadyDeleted {
		t.Errorf("Got %v, want ErrItemAlreadyDeleted", err)
	}
}

func TestRecyclerRestoreNotDeleted(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	recycler := NewRecycler(db, store, testLogger(), nil)

	item := mustCreate(t, store, "doc", "acct-1", nil)
	if _, err := recycler.Restore(context.Background(), item.ID); err != ErrItemNotDeleted {
		t.Errorf("Got %v, want ErrItemNotDeleted", err)
	}
}

func TestRecyclerRestoreMissing(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	recycler := NewRecycler(db, store, testLogger(), nil)

	if _, err := recycler.Restore(context.Background(), "missing"); err != ErrItemNotFound {
		t.Errorf("Got %v, want ErrItemNotFound", err)
	}
}

// Restoring a recycled parent must clear the deletion marker on every
// descendant, grandchildren included. A restore that only touches the
// top item strands the rest of the subtree in the bin.
func TestRecyclerRestoreWholeSubtree(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	recycler := NewRecycler(db, store, testLogger(), nil)
	ctx := context.Background()

	root := mustCreate(t, store, "root", "acct-1", nil)
	childA := mustCreate(t, store, "child-a", "acct-1", root)
	childB := mustCreate(t, store, "child-b", "acct-1", root)
	grandchildA := mustCreate(t, store, "grandchild-a", "acct-1", childA)
	grandchildB := mustCreate(t, store, "grandchild-b", "acct-1", childB)

	if _, err := recycler.Recycle(ctx, root.ID); err != nil {
		t.Fatalf("Recycle failed: %v", err)
	}

	affected, err := recycler.Restore(ctx, root.ID)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if affected != 5 {
		t.Errorf("Restore affected %d items, want 5", affected)
	}

	for _, item := range []*Item{root, childA, childB, grandchildA, grandchildB} {
		got, err := store.Get(ctx, item.ID)
		if err != nil {
			t.Fatalf("Get %s failed: %v", item.Name, err)
		}
		if got.IsDeleted() {
			t.Errorf("Item %s still deleted after subtree restore", item.Name)
		}
	}
}

func TestRecyclerBatchPartialFailure(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	recycler := NewRecycler(db, store, testLogger(), nil)
	ctx := context.Background()

	a := mustCreate(t, store, "a", "acct-1", nil)
	b := mustCreate(t, store, "b", "acct-1", nil)

	results := recycler.RecycleMany(ctx, []string{a.ID, "missing", b.ID})
	if len(results) != 3 {
		t.Fatalf("Got %d results, want 3", len(results))
	}

	byID := map[string]BatchResult{}
	for _, r := range results {
		byID[r.ItemID] = r
	}

	if byID[a.ID].Error != "" || byID[a.ID].Affected != 1 {
		t.Errorf("Item a: %+v, want 1 affected and no error", byID[a.ID])
	}
	if byID[b.ID].Error != "" || byID[b.ID].Affected != 1 {
		t.Errorf("Item b: %+v, want 1 affected and no error", byID[b.ID])
	}
	if byID["missing"].Error != ErrItemNotFound.Error() {
		t.Errorf("Missing item error = %q, want %q", byID["missing"].Error, ErrItemNotFound.Error())
	}

	// The failing entry must not roll back the successful ones.
	for _, item := range []*Item{a, b} {
		got, err := store.Get(ctx, item.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !got.IsDeleted() {
			t.Errorf("Item %s should be recycled despite the batch failure", item.Name)
		}
	}
}

func TestRecyclerBatchRestore(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	recycler := NewRecycler(db, store, testLogger(), nil)
	ctx := context.Background()

	a := mustCreate(t, store, "a", "acct-1", nil)
	b := mustCreate(t, store, "b", "acct-1", nil)
	recycler.RecycleMany(ctx, []string{a.ID, b.ID})

	results := recycler.RestoreMany(ctx, []string{a.ID, b.ID})
	for _, r := range results {
		if r.Error != "" {
			t.Errorf("Restore of %s failed: %s", r.ItemID, r.Error)
		}
	}

	for _, item := range []*Item{a, b} {
		got, err := store.Get(ctx, item.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.IsDeleted() {
			t.Errorf("Item %s should be restored", item.Name)
		}
	}
}
