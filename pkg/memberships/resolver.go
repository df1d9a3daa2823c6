package memberships

import (
	"context"
	"database/sql"
	"time"

	"github.com/platinummonkey/shelf/pkg/items"
	"github.com/platinummonkey/shelf/pkg/observability"
)

// Resolver computes the effective permission of an account on an item.
//
// Resolution is closest-wins: the grant declared at the deepest
// ancestor-or-self node that has one for this account fully replaces any
// grant farther up. Levels never combine; a closer Read shadows a farther
// Admin. Accounts with no grant anywhere in the chain fall back to the
// visibility floor: Read under the closest Public marker, None under the
// closest Hidden marker.
type Resolver struct {
	items       *items.Store
	memberships *Store
	visibility  *VisibilityStore
	accounts    AccountProvider
	metrics     *observability.Metrics
}

// NewResolver creates a new permission resolver
func NewResolver(itemStore *items.Store, membershipStore *Store, visibilityStore *VisibilityStore, accounts AccountProvider, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		items:       itemStore,
		memberships: membershipStore,
		visibility:  visibilityStore,
		accounts:    accounts,
		metrics:     metrics,
	}
}

// WithTx returns a resolver whose reads go through tx. Mutation flows use
// this so invariant checks observe their own uncommitted writes.
func (r *Resolver) WithTx(tx *sql.Tx) *Resolver {
	return &Resolver{
		items:       r.items.WithTx(tx),
		memberships: r.memberships.WithTx(tx),
		visibility:  r.visibility.WithTx(tx),
		accounts:    r.accounts,
		metrics:     r.metrics,
	}
}

// Resolve computes the effective permission of accountID on itemID.
// Unknown items yield items.ErrItemNotFound; lack of access is not an
// error, it is PermissionNone.
func (r *Resolver) Resolve(ctx context.Context, accountID, itemID string) (PermissionLevel, error) {
	item, err := r.items.Get(ctx, itemID)
	if err != nil {
		return PermissionNone, err
	}
	return r.ResolveItem(ctx, accountID, item)
}

// ResolveItem is Resolve for an already-loaded item.
func (r *Resolver) ResolveItem(ctx context.Context, accountID string, item *items.Item) (PermissionLevel, error) {
	start := time.Now()
	level, err := r.resolvePath(ctx, accountID, item.Path)
	if err != nil {
		return PermissionNone, err
	}

	if r.metrics != nil {
		r.metrics.ResolutionsTotal.WithLabelValues(kindLabel(level)).Inc()
		r.metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	}
	return level, nil
}

// resolvePath resolves the effective permission at an arbitrary chain path.
func (r *Resolver) resolvePath(ctx context.Context, accountID, path string) (PermissionLevel, error) {
	kind, err := r.accounts.KindOf(ctx, accountID)
	if err != nil {
		return PermissionNone, err
	}

	var chain []*ItemMembership
	if kind != AccountAnonymous {
		chain, err = r.memberships.GetInChain(ctx, path, accountID)
		if err != nil {
			return PermissionNone, err
		}
	}

	visibilities, err := r.visibility.GetInChain(ctx, path)
	if err != nil {
		return PermissionNone, err
	}

	return Effective(chain, visibilities, kind), nil
}

// Effective computes the effective permission from the account's membership
// chain and the item's visibility chain, both ordered root first. It is a
// pure function of its inputs; all resolution semantics live here.
func Effective(chain []*ItemMembership, visibilities []*ItemVisibility, kind AccountKind) PermissionLevel {
	if closest := ClosestMembership(chain); closest != nil {
		level := closest.Permission
		// Guests are permission-capped regardless of what was granted.
		if kind == AccountGuest && level.Rank() > PermissionRead.Rank() {
			return PermissionRead
		}
		return level
	}

	return visibilityFloor(visibilities)
}

// ClosestMembership returns the deepest membership of a root-first chain,
// or nil for an empty chain.
func ClosestMembership(chain []*ItemMembership) *ItemMembership {
	if len(chain) == 0 {
		return nil
	}
	return chain[len(chain)-1]
}

// visibilityFloor applies closest-wins over visibility markers: the deepest
// marked node decides, and Hidden beats Public when both sit on that node.
func visibilityFloor(visibilities []*ItemVisibility) PermissionLevel {
	if len(visibilities) == 0 {
		return PermissionNone
	}

	closestPath := visibilities[len(visibilities)-1].ItemPath
	public := false
	for _, v := range visibilities {
		if v.ItemPath != closestPath {
			continue
		}
		if v.Type == VisibilityHidden {
			return PermissionNone
		}
		if v.Type == VisibilityPublic {
			public = true
		}
	}
	if public {
		return PermissionRead
	}
	return PermissionNone
}

// effectiveAdmins returns the accounts whose closest grant in the chain is
// Admin, ignoring the membership with id excludeID. Used to enforce
// last-admin protection before a deletion commits.
func effectiveAdmins(chain []*ItemMembership, excludeID string) map[string]bool {
	closest := make(map[string]PermissionLevel)
	for _, m := range chain {
		if m.ID == excludeID {
			continue
		}
		closest[m.AccountID] = m.Permission // root-first order: later entries shadow earlier ones
	}

	admins := make(map[string]bool)
	for account, level := range closest {
		if level == PermissionAdmin {
			admins[account] = true
		}
	}
	return admins
}

func kindLabel(level PermissionLevel) string {
	if level == PermissionNone {
		return "none"
	}
	return string(level)
}
