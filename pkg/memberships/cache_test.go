package memberships

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func setupCachedResolver(t *testing.T) (*fixture, *CachedResolver, *miniredis.Miniredis) {
	t.Helper()

	f := newFixture(t, nil)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cached := NewCachedResolver(f.resolver, client, time.Minute, testLogger(), nil)
	return f, cached, mr
}

func TestCachedResolverMemoizes(t *testing.T) {
	f, cached, mr := setupCachedResolver(t)
	ctx := context.Background()

	root := f.mustItem(t, "root", nil)
	f.mustGrant(t, root, "alice", PermissionWrite)

	level, err := cached.Resolve(ctx, "alice", root.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if level != PermissionWrite {
		t.Errorf("Got %s, want write", level)
	}

	// The result is now in redis; a direct store change without
	// invalidation is not observed.
	if err := f.memberships.UpdatePermission(ctx, "m-root-alice", PermissionRead); err != nil {
		t.Fatalf("UpdatePermission failed: %v", err)
	}
	level, err = cached.Resolve(ctx, "alice", root.ID)
	if err != nil {
		t.Fatalf("Cached Resolve failed: %v", err)
	}
	if level != PermissionWrite {
		t.Errorf("Got %s, want the stale cached write", level)
	}

	// TTL expiry brings the store back into view.
	mr.FastForward(2 * time.Minute)
	level, err = cached.Resolve(ctx, "alice", root.ID)
	if err != nil {
		t.Fatalf("Resolve after expiry failed: %v", err)
	}
	if level != PermissionRead {
		t.Errorf("Got %s, want read after TTL expiry", level)
	}
}

func TestCachedResolverInvalidateAccount(t *testing.T) {
	f, cached, _ := setupCachedResolver(t)
	ctx := context.Background()

	rootA := f.mustItem(t, "a", nil)
	rootB := f.mustItem(t, "b", nil)
	f.mustGrant(t, rootA, "alice", PermissionWrite)
	f.mustGrant(t, rootB, "alice", PermissionRead)
	f.mustGrant(t, rootA, "bob", PermissionRead)

	// Warm the cache for both accounts.
	for _, pair := range [][2]string{{"alice", rootA.ID}, {"alice", rootB.ID}, {"bob", rootA.ID}} {
		if _, err := cached.Resolve(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
	}

	if err := f.memberships.UpdatePermission(ctx, "m-a-alice", PermissionAdmin); err != nil {
		t.Fatalf("UpdatePermission failed: %v", err)
	}
	if err := cached.InvalidateAccount(ctx, "alice"); err != nil {
		t.Fatalf("InvalidateAccount failed: %v", err)
	}

	level, err := cached.Resolve(ctx, "alice", rootA.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if level != PermissionAdmin {
		t.Errorf("Got %s, want admin after invalidation", level)
	}
}

func TestCachedResolverDegradesWithoutRedis(t *testing.T) {
	f, cached, mr := setupCachedResolver(t)
	ctx := context.Background()

	root := f.mustItem(t, "root", nil)
	f.mustGrant(t, root, "alice", PermissionRead)

	mr.Close()

	// A dead cache degrades to a direct resolve, never an error.
	level, err := cached.Resolve(ctx, "alice", root.ID)
	if err != nil {
		t.Fatalf("Resolve with cache down failed: %v", err)
	}
	if level != PermissionRead {
		t.Errorf("Got %s, want read", level)
	}
}
