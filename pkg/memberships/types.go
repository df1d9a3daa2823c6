package memberships

import (
	"time"
)

// PermissionLevel is the permission granted by a membership.
// Levels are totally ordered: Read < Write < Admin.
type PermissionLevel string

const (
	// PermissionNone is the absence of any permission. It is never stored;
	// it only appears as a resolution result.
	PermissionNone PermissionLevel = ""

	PermissionRead  PermissionLevel = "read"
	PermissionWrite PermissionLevel = "write"
	PermissionAdmin PermissionLevel = "admin"
)

// Rank returns the ordering rank of the level. None and unknown values rank 0.
func (l PermissionLevel) Rank() int {
	switch l {
	case PermissionRead:
		return 1
	case PermissionWrite:
		return 2
	case PermissionAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether the level is one of read, write or admin.
func (l PermissionLevel) Valid() bool {
	return l.Rank() > 0
}

// AtLeast reports whether the level grants at least as much as other.
func (l PermissionLevel) AtLeast(other PermissionLevel) bool {
	return l.Rank() >= other.Rank()
}

// VisibilityType marks a subtree as publicly readable or hidden
type VisibilityType string

const (
	// VisibilityPublic grants read access to everyone, including anonymous
	// accounts, for the marked subtree
	VisibilityPublic VisibilityType = "public"

	// VisibilityHidden suppresses access for non-granted accounts even under
	// a Public ancestor
	VisibilityHidden VisibilityType = "hidden"
)

// Valid reports whether the visibility type is known.
func (t VisibilityType) Valid() bool {
	return t == VisibilityPublic || t == VisibilityHidden
}

// ItemMembership grants an account a permission level on an item. The grant
// is declared on ItemID but applies to the whole subtree below it unless a
// closer grant for the same account overrides it.
type ItemMembership struct {
	ID         string          `json:"id"`
	ItemID     string          `json:"item_id"`
	ItemPath   string          `json:"item_path"`
	AccountID  string          `json:"account_id"`
	Permission PermissionLevel `json:"permission"`
	CreatorID  string          `json:"creator_id"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ItemVisibility attaches a visibility marker to an item. Like memberships,
// the closest marker in the ancestor chain wins.
type ItemVisibility struct {
	ID        string         `json:"id"`
	ItemID    string         `json:"item_id"`
	ItemPath  string         `json:"item_path"`
	Type      VisibilityType `json:"type"`
	CreatorID string         `json:"creator_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// MutationResult reports the outcome of a successful Create or Update.
type MutationResult struct {
	// Membership is the resulting effective grant. When a redundant update
	// collapsed into inheritance, this is the ancestor membership that now
	// supplies the level and Inherited is true.
	Membership *ItemMembership `json:"membership"`

	// Inherited is true when the stored row was deleted because the new
	// level exactly matched the inherited floor.
	Inherited bool `json:"inherited,omitempty"`

	// PrunedIDs lists memberships removed by redundancy pruning, for audit.
	PrunedIDs []string `json:"pruned_ids,omitempty"`
}

// DeleteResult reports the outcome of a successful Delete.
type DeleteResult struct {
	// DeletedIDs lists every removed membership: the target first, then any
	// descendant memberships removed by purge-below.
	DeletedIDs []string `json:"deleted_ids"`
}

// Event describes a committed membership change, handed to the notification
// collaborator. Delivery is fire-and-forget; a failed notification never
// rolls back the mutation.
type Event struct {
	Operation  string          `json:"operation"` // "create" or "update"
	ItemID     string          `json:"item_id"`
	AccountID  string          `json:"account_id"`
	Permission PermissionLevel `json:"permission"`
	ActorID    string          `json:"actor_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}
