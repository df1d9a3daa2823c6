package memberships

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/shelf/pkg/items"
)

const membershipColumns = "m.id, m.item_id, i.path, m.account_id, m.permission, m.creator_id, m.created_at, m.updated_at"

// Store handles item membership persistence. All tree-scoped queries go
// through the items table so paths are never duplicated or drift.
type Store struct {
	db items.DBTX
}

// NewStore creates a new membership store
func NewStore(db items.DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx}
}

// Create inserts a new membership. A uniqueness violation on
// (item_id, account_id) is reported as ErrModifyExistingMembership so two
// concurrent creates for the same pair cannot both succeed.
func (s *Store) Create(ctx context.Context, m *ItemMembership) error {
	if !m.Permission.Valid() {
		return ErrUnknownPermissionLevel
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO item_memberships (id, item_id, account_id, permission, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.db.ExecContext(ctx, query, m.ID, m.ItemID, m.AccountID, m.Permission, m.CreatorID, now, now); err != nil {
		if isUniqueViolation(err) {
			return ErrModifyExistingMembership
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}

	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// Get retrieves a membership by id.
func (s *Store) Get(ctx context.Context, id string) (*ItemMembership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM item_memberships m
		JOIN items i ON i.id = m.item_id
		WHERE m.id = $1
	`
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// GetByItemAccount retrieves the membership declared exactly on itemID for
// accountID, if any.
func (s *Store) GetByItemAccount(ctx context.Context, itemID, accountID string) (*ItemMembership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM item_memberships m
		JOIN items i ON i.id = m.item_id
		WHERE m.item_id = $1 AND m.account_id = $2
	`
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, itemID, accountID))
	if err == sql.ErrNoRows {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// GetInChain returns the account's memberships declared on any
// ancestor-or-self of path, root first. The uniqueness invariant guarantees
// at most one membership per chain node.
func (s *Store) GetInChain(ctx context.Context, path, accountID string) ([]*ItemMembership, error) {
	paths := items.AncestorPaths(path)
	if len(paths) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(paths))
	args := []interface{}{accountID}
	for i, p := range paths {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, p)
	}

	query := fmt.Sprintf(`
		SELECT `+membershipColumns+`
		FROM item_memberships m
		JOIN items i ON i.id = m.item_id
		WHERE m.account_id = $1 AND i.path IN (%s)
		ORDER BY length(i.path) ASC
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain memberships: %w", err)
	}
	defer rows.Close()

	return collectMemberships(rows)
}

// GetAllInChain returns every account's memberships declared on any
// ancestor-or-self of path, root first. Used for last-admin protection.
func (s *Store) GetAllInChain(ctx context.Context, path string) ([]*ItemMembership, error) {
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
		SELECT `+membershipColumns+`
		FROM item_memberships m
		JOIN items i ON i.id = m.item_id
		WHERE i.path IN (%s)
		ORDER BY length(i.path) ASC
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain memberships: %w", err)
	}
	defer rows.Close()

	return collectMemberships(rows)
}

// GetForItem returns all memberships declared directly on itemID.
func (s *Store) GetForItem(ctx context.Context, itemID string) ([]*ItemMembership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM item_memberships m
		JOIN items i ON i.id = m.item_id
		WHERE m.item_id = $1
		ORDER BY m.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item memberships: %w", err)
	}
	defer rows.Close()

	return collectMemberships(rows)
}

// GetBelowForAccount returns the account's memberships declared on strict
// descendants of path, shallowest first. Used by redundancy pruning and
// purge-below.
func (s *Store) GetBelowForAccount(ctx context.Context, path, accountID string) ([]*ItemMembership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM item_memberships m
		JOIN items i ON i.id = m.item_id
		WHERE m.account_id = $1 AND i.path LIKE $2 ESCAPE '\'
		ORDER BY length(i.path) ASC
	`
	rows, err := s.db.QueryContext(ctx, query, accountID, items.SubtreePattern(path))
	if err != nil {
		return nil, fmt.Errorf("failed to get descendant memberships: %w", err)
	}
	defer rows.Close()

	return collectMemberships(rows)
}

// UpdatePermission changes the level of an existing membership in place.
func (s *Store) UpdatePermission(ctx context.Context, id string, level PermissionLevel) error {
	if !level.Valid() {
		return ErrUnknownPermissionLevel
	}

	query := `UPDATE item_memberships SET permission = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, level, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// Delete removes a membership by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM item_memberships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// DeleteMany removes a batch of memberships by id.
func (s *Store) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`DELETE FROM item_memberships WHERE id IN (%s)`, strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a uniqueness constraint failure.
// Postgres reports SQLSTATE 23505; the sqlite driver used in tests reports
// a UNIQUE constraint message.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

// scanMembership scans a membership row (with the joined item path)
func scanMembership(scanner interface{ Scan(dest ...interface{}) error }) (*ItemMembership, error) {
	var m ItemMembership
	err := scanner.Scan(
		&m.ID,
		&m.ItemID,
		&m.ItemPath,
		&m.AccountID,
		&m.Permission,
		&m.CreatorID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMemberships(rows *sql.Rows) ([]*ItemMembership, error) {
	var out []*ItemMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
