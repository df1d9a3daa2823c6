package memberships

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/shelf/pkg/items"
)

const visibilityColumns = "v.id, v.item_id, i.path, v.type, v.creator_id, v.created_at"

// VisibilityStore persists Public/Hidden markers. A marker applies to the
// marked item and its whole subtree unless a descendant carries its own
// marker, which overrides for that subtree.
type VisibilityStore struct {
	db items.DBTX
}

// NewVisibilityStore creates a new visibility store
func NewVisibilityStore(db items.DBTX) *VisibilityStore {
	return &VisibilityStore{db: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *VisibilityStore) WithTx(tx *sql.Tx) *VisibilityStore {
	return &VisibilityStore{db: tx}
}

// Create attaches a visibility marker to an item. At most one marker per
// (item, type) pair exists.
func (s *VisibilityStore) Create(ctx context.Context, v *ItemVisibility) error {
	if !v.Type.Valid() {
		return ErrUnknownVisibilityType
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO item_visibilities (id, item_id, type, creator_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.ExecContext(ctx, query, v.ID, v.ItemID, v.Type, v.CreatorID, now); err != nil {
		return fmt.Errorf("failed to create visibility: %w", err)
	}
	v.CreatedAt = now
	return nil
}

// Delete removes a visibility marker.
func (s *VisibilityStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM item_visibilities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete visibility: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVisibilityNotFound
	}
	return nil
}

// GetForItem returns the markers declared directly on itemID.
func (s *VisibilityStore) GetForItem(ctx context.Context, itemID string) ([]*ItemVisibility, error) {
	query := `
		SELECT ` + visibilityColumns + `
		FROM item_visibilities v
		JOIN items i ON i.id = v.item_id
		WHERE v.item_id = $1
		ORDER BY v.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item visibilities: %w", err)
	}
	defer rows.Close()

	return collectVisibilities(rows)
}

// GetInChain returns markers declared on any ancestor-or-self of path,
// root first.
func (s *VisibilityStore) GetInChain(ctx context.Context, path string) ([]*ItemVisibility, error) {
	paths := items.AncestorPaths(path)
	if len(paths) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(paths))
	args := make([]interface{}, len(paths))
	for i, p := range paths {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = p
	}

	query := fmt.Sprintf(`
		SELECT `+visibilityColumns+`
		FROM item_visibilities v
		JOIN items i ON i.id = v.item_id
		WHERE i.path IN (%s)
		ORDER BY length(i.path) ASC
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain visibilities: %w", err)
	}
	defer rows.Close()

	return collectVisibilities(rows)
}

func collectVisibilities(rows *sql.Rows) ([]*ItemVisibility, error) {
	var out []*ItemVisibility
	for rows.Next() {
		var v ItemVisibility
		if err := rows.Scan(&v.ID, &v.ItemID, &v.ItemPath, &v.Type, &v.CreatorID, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan visibility: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}
