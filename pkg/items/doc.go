// Package items implements the materialized-path item tree of the Shelf
// content platform.
//
// # Overview
//
// Every content unit ("item") is a node in a tree. An item's position is
// fully determined by its path: the ordered chain of ancestor ids (including
// itself) encoded as a single string. Ancestor and descendant queries become
// string-prefix queries over an indexed column, avoiding recursive joins.
//
// # Paths
//
// A path segment is the item's UUID with hyphens replaced by underscores,
// and segments are joined with a dot:
//
//	3obEP2eH-...  ->  3obep2eh_...
//	root.child.grandchild
//
// The codec lives in path.go: ChildPath, IsAncestorOrSelf, AncestorIDs.
// Paths are fixed at creation time; only an explicit move operation (not part
// of this package) may rewrite them.
//
// # Soft deletion
//
// Recycling an item marks the item and its entire subtree deleted in one
// transaction (the recycle bin). Restoring reverses the marker for the whole
// subtree, however deep. Memberships and visibility markers attached to
// recycled items are untouched and become effective again on restore.
// Hard deletion only happens through the retention sweeper in retention.go.
//
// # Stores
//
// Store persists items in PostgreSQL (lib/pq) with a small LRU on id lookups.
// Recycler coordinates transactional subtree soft-delete/restore, including
// batched operations with per-item outcomes. Sweeper hard-deletes subtrees
// that have been in the recycle bin longer than a configured window.
package items
