package memberships

import (
	"context"
	"database/sql"
	"io"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/shelf/pkg/items"
	"github.com/platinummonkey/shelf/pkg/observability"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// In-memory sqlite is per connection; keep the pool at one.
	db.SetMaxOpenConns(1)

	// Create minimal tables for testing
	_, err = db.Exec(`
		CREATE TABLE items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			path TEXT NOT NULL UNIQUE,
			creator_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		);

		CREATE TABLE item_memberships (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			account_id TEXT NOT NULL,
			permission TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(item_id, account_id)
		);

		CREATE TABLE item_visibilities (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(item_id, type)
		);

		CREATE TABLE membership_requests (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			account_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(item_id, account_id)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// kindsProvider classifies the listed guest accounts; everything else is a
// member and the empty id is anonymous.
func kindsProvider(guests ...string) AccountProvider {
	guestSet := make(map[string]bool, len(guests))
	for _, g := range guests {
		guestSet[g] = true
	}
	return AccountProviderFunc(func(ctx context.Context, accountID string) (AccountKind, error) {
		switch {
		case accountID == AnonymousAccountID:
			return AccountAnonymous, nil
		case guestSet[accountID]:
			return AccountGuest, nil
		default:
			return AccountMember, nil
		}
	})
}

type fixture struct {
	db          *sql.DB
	items       *items.Store
	memberships *Store
	visibility  *VisibilityStore
	requests    *RequestStore
	resolver    *Resolver
	service     *Service
}

func newFixture(t *testing.T, accounts AccountProvider) *fixture {
	t.Helper()

	if accounts == nil {
		accounts = MembersOnly()
	}

	db := setupTestDB(t)
	itemStore := items.NewStore(db)
	store := NewStore(db)
	visibility := NewVisibilityStore(db)
	requests := NewRequestStore(db)
	resolver := NewResolver(itemStore, store, visibility, accounts, nil)
	service := NewService(ServiceConfig{
		DB:          db,
		Items:       itemStore,
		Memberships: store,
		Visibility:  visibility,
		Resolver:    resolver,
		Accounts:    accounts,
		Requests:    requests,
		Logger:      testLogger(),
	})

	return &fixture{
		db:          db,
		items:       itemStore,
		memberships: store,
		visibility:  visibility,
		requests:    requests,
		resolver:    resolver,
		service:     service,
	}
}

// mustItem inserts an item under parent (nil for roots) or fails the test.
func (f *fixture) mustItem(t *testing.T, name string, parent *items.Item) *items.Item {
	t.Helper()

	item := items.NewItem(name, "creator", parent)
	if err := f.items.Create(context.Background(), item); err != nil {
		t.Fatalf("Failed to create item %q: %v", name, err)
	}
	return item
}

// mustGrant inserts a membership directly, bypassing service validation.
func (f *fixture) mustGrant(t *testing.T, item *items.Item, accountID string, level PermissionLevel) *ItemMembership {
	t.Helper()

	m := &ItemMembership{
		ID:         "m-" + item.Name + "-" + accountID,
		ItemID:     item.ID,
		ItemPath:   item.Path,
		AccountID:  accountID,
		Permission: level,
		CreatorID:  "creator",
	}
	if err := f.memberships.Create(context.Background(), m); err != nil {
		t.Fatalf("Failed to grant %s %s on %s: %v", accountID, level, item.Name, err)
	}
	return m
}

// mustMark attaches a visibility marker directly.
func (f *fixture) mustMark(t *testing.T, item *items.Item, vType VisibilityType) *ItemVisibility {
	t.Helper()

	v := &ItemVisibility{
		ItemID:    item.ID,
		ItemPath:  item.Path,
		Type:      vType,
		CreatorID: "creator",
	}
	if err := f.visibility.Create(context.Background(), v); err != nil {
		t.Fatalf("Failed to mark %s %s: %v", item.Name, vType, err)
	}
	return v
}

// resolve resolves accountID on item or fails the test.
func (f *fixture) resolve(t *testing.T, accountID string, item *items.Item) PermissionLevel {
	t.Helper()

	level, err := f.resolver.Resolve(context.Background(), accountID, item.ID)
	if err != nil {
		t.Fatalf("Resolve(%s, %s) failed: %v", accountID, item.Name, err)
	}
	return level
}
