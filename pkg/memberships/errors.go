package memberships

import "errors"

var (
	// ErrMembershipNotFound is returned when the referenced membership does not exist
	ErrMembershipNotFound = errors.New("item membership not found")

	// ErrVisibilityNotFound is returned when the referenced visibility marker does not exist
	ErrVisibilityNotFound = errors.New("item visibility not found")

	// ErrInsufficientPermission is returned when the acting account does not
	// resolve to Admin on the target item
	ErrInsufficientPermission = errors.New("insufficient permission")

	// ErrModifyExistingMembership is returned when creating a membership that
	// already exists at exactly this item for this account; callers must use
	// Update instead. Store-level uniqueness violations map here too.
	ErrModifyExistingMembership = errors.New("membership already exists, use update instead")

	// ErrInvalidMembership is returned when a new grant would be redundant:
	// lower than or equal to what the account already inherits at the item
	ErrInvalidMembership = errors.New("membership is lower or equal to the inherited permission")

	// ErrInvalidPermissionLevel is returned when updating a membership below
	// the level inherited from an ancestor
	ErrInvalidPermissionLevel = errors.New("cannot downgrade below the inherited permission")

	// ErrCannotDeleteOnlyAdmin is returned when a deletion would leave the
	// item without any reachable Admin
	ErrCannotDeleteOnlyAdmin = errors.New("cannot delete the only admin membership")

	// ErrCannotModifyGuestItemMembership is returned when a guest account is
	// targeted by a direct membership mutation
	ErrCannotModifyGuestItemMembership = errors.New("cannot modify membership of a guest account")

	// ErrUnknownPermissionLevel is returned for permission values outside
	// read/write/admin
	ErrUnknownPermissionLevel = errors.New("unknown permission level")

	// ErrUnknownVisibilityType is returned for visibility values outside
	// public/hidden
	ErrUnknownVisibilityType = errors.New("unknown visibility type")
)
