// Package memberships implements hierarchical authorization for the Shelf
// content platform: permission grants that propagate down the item tree,
// closest-wins resolution, and the membership mutation protocol.
//
// # Model
//
// A membership grants an account one of three ordered levels on an item:
//
//	Read < Write < Admin
//
// The grant is declared on one node but applies to the node's whole
// subtree. Resolution walks the ancestor-or-self chain of the target item
// and takes the grant at the closest (deepest) node that has one for the
// account. A closer grant fully replaces a farther one; levels never
// union, so a closer Read shadows a farther Admin. This models "permission
// is redefined at this subtree", not monotonic inheritance.
//
// Accounts without any grant in the chain fall back to visibility markers:
// the closest Public marker supplies a Read floor (for everyone, including
// anonymous callers), and a closer Hidden marker takes it away again.
// Membership always beats visibility for the numeric level; visibility only
// ever supplies the None-to-Read floor.
//
// # Mutation protocol
//
// The Service enforces the invariants that keep the stored grants minimal
// and the tree safe:
//
//   - at most one grant per (item, account); concurrent creates surface as
//     ErrModifyExistingMembership via the store's unique index
//   - a new grant at or below the inherited floor is rejected
//     (ErrInvalidMembership) since under closest-wins it would silently
//     downgrade access
//   - updating to exactly the inherited floor deletes the redundant row and
//     returns the ancestor grant in its place
//   - creating or raising a grant prunes the same account's now-redundant
//     descendant grants in the same transaction; higher descendant grants
//     are intentional overrides and survive. Pruned ids are returned for
//     audit.
//   - deleting the last reachable Admin of an item fails
//     (ErrCannotDeleteOnlyAdmin)
//   - Delete with purge-below also removes the account's grants on every
//     descendant, restoring pure inheritance for the subtree
//
// Every mutation runs inside one transaction; the pruning step reads
// through that transaction, so it always observes the grant it prunes
// against.
//
// # Collaborators
//
// Accounts, notification delivery and membership-request review live
// outside the engine and are consumed through the AccountProvider,
// Notifier and RequestDeleter interfaces. Notification is fire-and-forget:
// a failed delivery never rolls back a mutation.
//
// # Caching
//
// Resolve is a pure function of the membership chain, the visibility chain
// and the account kind. CachedResolver memoizes it in redis with per-account
// invalidation driven by the mutation service; the core resolver itself
// never caches.
package memberships
