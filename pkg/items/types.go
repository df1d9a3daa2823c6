package items

import (
	"time"

	"github.com/google/uuid"
)

// MaxNameLength is the longest allowed item name.
const MaxNameLength = 255

// Item represents a single node in the content tree
type Item struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	CreatorID string     `json:"creator_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// NewItem builds an unsaved item under parent. A nil parent creates a root.
// The path is derived once here and never changes afterwards.
func NewItem(name, creatorID string, parent *Item) *Item {
	id := uuid.NewString()
	parentPath := ""
	if parent != nil {
		parentPath = parent.Path
	}
	return &Item{
		ID:        id,
		Name:      name,
		Path:      ChildPath(parentPath, id),
		CreatorID: creatorID,
	}
}

// IsDeleted reports whether the item sits in the recycle bin.
func (i *Item) IsDeleted() bool {
	return i.DeletedAt != nil
}

// IsRoot reports whether the item has no parent.
func (i *Item) IsRoot() bool {
	return ParentPath(i.Path) == ""
}

// ParentPath returns the path of the item's parent, or "" for roots.
func (i *Item) ParentPath() string {
	return ParentPath(i.Path)
}

// Validate checks item fields that the store requires.
func (i *Item) Validate() error {
	if i.Name == "" || len(i.Name) > MaxNameLength {
		return ErrInvalidItemName
	}
	return nil
}

// BatchResult reports the outcome of one item inside a batched recycle or
// restore request. Batches never abort as a whole; each entry succeeds or
// fails on its own.
type BatchResult struct {
	ItemID   string `json:"item_id"`
	Affected int64  `json:"affected,omitempty"`
	Error    string `json:"error,omitempty"`
}
