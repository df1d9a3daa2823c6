package items

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DBTX is the subset of *sql.DB and *sql.Tx the stores use. Mutation flows
// that must be atomic bind a store to a transaction with WithTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const itemColumns = "id, name, path, creator_id, created_at, updated_at, deleted_at"

// Store persists items and answers tree queries via path prefix matching
type Store struct {
	db    DBTX
	cache *lru.Cache[string, *Item]
	inTx  bool
}

// NewStore creates a new item store with an LRU over id lookups
func NewStore(db DBTX) *Store {
	cache, _ := lru.New[string, *Item](4096)
	return &Store{db: db, cache: cache}
}

// WithTx returns a copy of the store bound to tx. The copy shares the cache
// but never reads from or writes to it; uncommitted rows must not leak into
// it, and invalidation waits for the commit.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx, cache: s.cache, inTx: true}
}

// PurgeCache drops every cached id lookup. Subtree mutations call this
// after their transaction commits.
func (s *Store) PurgeCache() {
	s.cache.Purge()
}

// Create inserts a new item. The item's path must have been fixed by NewItem.
func (s *Store) Create(ctx context.Context, item *Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO items (id, name, path, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query, item.ID, item.Name, item.Path, item.CreatorID, now, now); err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

// Get retrieves an item by id, deleted or not. Callers that must not see
// recycled items check IsDeleted themselves.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	if !s.inTx {
		if item, ok := s.cache.Get(id); ok {
			return item, nil
		}
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	item, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if !s.inTx {
		s.cache.Add(id, item)
	}
	return item, nil
}

// GetByPath retrieves an item by its exact path.
func (s *Store) GetByPath(ctx context.Context, path string) (*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE path = $1`
	item, err := scanItem(s.db.QueryRowContext(ctx, query, path))
	if err == sql.ErrNoRows {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item by path: %w", err)
	}
	return item, nil
}

// GetAncestors returns the item's ancestors root first, excluding the item
// itself. Recycled ancestors are included; chains stay intact in the bin.
func (s *Store) GetAncestors(ctx context.Context, path string) ([]*Item, error) {
	paths := AncestorPaths(path)
	if len(paths) <= 1 {
		return nil, nil
	}
	paths = paths[:len(paths)-1] // strip self

	placeholders := make([]string, len(paths))
	args := make([]interface{}, len(paths))
	for i, p := range paths {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = p
	}

	query := fmt.Sprintf(`
		SELECT `+itemColumns+`
		FROM items
		WHERE path IN (%s)
		ORDER BY length(path) ASC
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get ancestors: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// GetDescendants returns every item strictly below path, ordered by path.
func (s *Store) GetDescendants(ctx context.Context, path string, includeDeleted bool) ([]*Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE path LIKE $1 ESCAPE '\'
	`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY path ASC`

	rows, err := s.db.QueryContext(ctx, query, SubtreePattern(path))
	if err != nil {
		return nil, fmt.Errorf("failed to get descendants: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// GetChildren returns the direct children of path, ordered by name.
func (s *Store) GetChildren(ctx context.Context, path string, includeDeleted bool) ([]*Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE path LIKE $1 ESCAPE '\'
		  AND path NOT LIKE $2 ESCAPE '\'
	`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, SubtreePattern(path), grandchildPattern(path))
	if err != nil {
		return nil, fmt.Errorf("failed to get children: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// SoftDeleteSubtree marks the item at path and every descendant deleted.
// Rows already in the recycle bin keep their original deletion time.
// Returns the number of newly marked items. The id cache is left alone;
// callers purge it with PurgeCache once the enclosing transaction commits,
// so a concurrent Get cannot re-cache a pre-commit row.
func (s *Store) SoftDeleteSubtree(ctx context.Context, path string) (int64, error) {
	now := time.Now().UTC()
	query := `
		UPDATE items
		SET deleted_at = $1, updated_at = $1
		WHERE (path = $2 OR path LIKE $3 ESCAPE '\')
		  AND deleted_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, now, path, SubtreePattern(path))
	if err != nil {
		return 0, fmt.Errorf("failed to soft delete subtree: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// RestoreSubtree clears the deletion marker on the item at path and on
// every descendant, however deep. A root-only restore that strands deleted
// children is a correctness bug, so this always touches the whole subtree.
// Cache invalidation is the caller's job after commit, as with
// SoftDeleteSubtree.
func (s *Store) RestoreSubtree(ctx context.Context, path string) (int64, error) {
	now := time.Now().UTC()
	query := `
		UPDATE items
		SET deleted_at = NULL, updated_at = $1
		WHERE (path = $2 OR path LIKE $3 ESCAPE '\')
		  AND deleted_at IS NOT NULL
	`
	result, err := s.db.ExecContext(ctx, query, now, path, SubtreePattern(path))
	if err != nil {
		return 0, fmt.Errorf("failed to restore subtree: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// HardDeleteBefore permanently removes items recycled before cutoff.
// Attached memberships and visibilities go with them via FK cascade.
// Maintenance only; normal flows never hard-delete. Callers purge the id
// cache after the deletion is committed.
func (s *Store) HardDeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM items WHERE deleted_at IS NOT NULL AND deleted_at < $1`
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to hard delete recycled items: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// ListRecycleBin returns recycled subtree roots: deleted items whose parent
// is not itself deleted (or that are tree roots).
func (s *Store) ListRecycleBin(ctx context.Context) ([]*Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items i
		WHERE i.deleted_at IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM items p
			WHERE p.deleted_at IS NOT NULL
			  AND substr(i.path, 1, length(p.path) + 1) = p.path || '.'
		  )
		ORDER BY i.deleted_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recycle bin: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// scanItem scans a single item row
func scanItem(scanner interface{ Scan(dest ...interface{}) error }) (*Item, error) {
	var item Item
	var deletedAt sql.NullTime

	err := scanner.Scan(
		&item.ID,
		&item.Name,
		&item.Path,
		&item.CreatorID,
		&item.CreatedAt,
		&item.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if deletedAt.Valid {
		t := deletedAt.Time
		item.DeletedAt = &t
	}
	return &item, nil
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var out []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
