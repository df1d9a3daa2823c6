package items

import "errors"

var (
	// ErrItemNotFound is returned when the referenced item does not exist
	ErrItemNotFound = errors.New("item not found")

	// ErrItemAlreadyDeleted is returned when recycling an item that is already in the recycle bin
	ErrItemAlreadyDeleted = errors.New("item already deleted")

	// ErrItemNotDeleted is returned when restoring an item that is not in the recycle bin
	ErrItemNotDeleted = errors.New("item not deleted")

	// ErrInvalidItemName is returned when an item name is empty or too long
	ErrInvalidItemName = errors.New("invalid item name")
)
