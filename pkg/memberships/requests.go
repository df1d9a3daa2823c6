package memberships

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/shelf/pkg/items"
)

// MembershipRequest is a pending ask for access to a specific item. The
// engine only consumes the deleteExact side of the lifecycle (a granted
// membership clears the request for exactly that node); creation and
// review flows live in the surrounding application.
type MembershipRequest struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	AccountID string    `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestStore persists membership requests and implements RequestDeleter.
type RequestStore struct {
	db items.DBTX
}

// NewRequestStore creates a new membership request store
func NewRequestStore(db items.DBTX) *RequestStore {
	return &RequestStore{db: db}
}

// Create records a pending request for (item, account).
func (s *RequestStore) Create(ctx context.Context, r *MembershipRequest) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO membership_requests (id, item_id, account_id, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, r.ID, r.ItemID, r.AccountID, now); err != nil {
		return fmt.Errorf("failed to create membership request: %w", err)
	}
	r.CreatedAt = now
	return nil
}

// ListForItem returns the pending requests declared on itemID.
func (s *RequestStore) ListForItem(ctx context.Context, itemID string) ([]*MembershipRequest, error) {
	query := `
		SELECT id, item_id, account_id, created_at
		FROM membership_requests
		WHERE item_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list membership requests: %w", err)
	}
	defer rows.Close()

	var out []*MembershipRequest
	for rows.Next() {
		var r MembershipRequest
		if err := rows.Scan(&r.ID, &r.ItemID, &r.AccountID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership request: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// DeleteExact removes the pending request for exactly (itemID, accountID).
// Requests on ancestors or descendants are untouched; a request is scoped
// to the node it asked for. Implements RequestDeleter.
func (s *RequestStore) DeleteExact(ctx context.Context, itemID, accountID string) error {
	query := `DELETE FROM membership_requests WHERE item_id = $1 AND account_id = $2`
	if _, err := s.db.ExecContext(ctx, query, itemID, accountID); err != nil {
		return fmt.Errorf("failed to delete membership request: %w", err)
	}
	return nil
}

var _ RequestDeleter = (*RequestStore)(nil)
