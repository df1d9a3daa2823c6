package memberships

import "context"

// AccountKind classifies the identity behind an account id.
type AccountKind string

const (
	// AccountMember is a full account that may hold any permission level
	AccountMember AccountKind = "member"

	// AccountGuest is a session-scoped account. Guests are permission-capped
	// at Read and may not be targets of direct membership mutation.
	AccountGuest AccountKind = "guest"

	// AccountAnonymous is an unauthenticated caller. Anonymous access only
	// ever receives Read via a Public visibility marker.
	AccountAnonymous AccountKind = "anonymous"
)

// AnonymousAccountID is the account id the engine treats as anonymous.
const AnonymousAccountID = ""

// AccountProvider resolves opaque account ids to their kind. Authentication
// and account storage live outside this engine; this is the narrow boundary
// contract it consumes.
type AccountProvider interface {
	KindOf(ctx context.Context, accountID string) (AccountKind, error)
}

// AccountProviderFunc adapts a function to the AccountProvider interface.
type AccountProviderFunc func(ctx context.Context, accountID string) (AccountKind, error)

// KindOf implements AccountProvider.
func (f AccountProviderFunc) KindOf(ctx context.Context, accountID string) (AccountKind, error) {
	return f(ctx, accountID)
}

// MembersOnly is an AccountProvider that treats every non-empty account id
// as a full member. Useful when the surrounding application has already
// authenticated the caller.
func MembersOnly() AccountProvider {
	return AccountProviderFunc(func(ctx context.Context, accountID string) (AccountKind, error) {
		if accountID == AnonymousAccountID {
			return AccountAnonymous, nil
		}
		return AccountMember, nil
	})
}
