package items

import (
	"context"
	"database/sql"
	"io"
	"testing"

	_ "github.com/mattn/go-sqlite3"

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

// mustCreate inserts a new item under parent (nil for roots) or fails the test.
func mustCreate(t *testing.T, store *Store, name, creatorID string, parent *Item) *Item {
	t.Helper()

	item := NewItem(name, creatorID, parent)
	if err := store.Create(context.Background(), item); err != nil {
		t.Fatalf("Failed to create item %q: %v", name, err)
	}
	return item
}
