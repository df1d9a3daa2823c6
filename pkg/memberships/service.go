package memberships

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/shelf/pkg/async"
	"github.com/platinummonkey/shelf/pkg/items"
	"github.com/platinummonkey/shelf/pkg/observability"
)

// RequestDeleter is the membership-request collaborator. Create removes the
// pending request for exactly the granted (item, account) pair; requests on
// ancestors or descendants are left alone.
type RequestDeleter interface {
	DeleteExact(ctx context.Context, itemID, accountID string) error
}

// Notifier receives events for committed membership changes. Delivery is
// fire-and-forget; failures are logged and never affect the mutation.
type Notifier interface {
	MembershipChanged(ctx context.Context, event Event) error
}

// CacheInvalidator drops cached resolutions for an account after a
// mutation. The redis-backed implementation lives in cache.go.
type CacheInvalidator interface {
	InvalidateAccount(ctx context.Context, accountID string) error
}

// ServiceConfig wires the mutation service's collaborators. Requests,
// Notifier and Cache are optional.
type ServiceConfig struct {
	DB          *sql.DB
	Items       *items.Store
	Memberships *Store
	Visibility  *VisibilityStore
	Resolver    *Resolver
	Accounts    AccountProvider
	Requests    RequestDeleter
	Notifier    Notifier
	Cache       CacheInvalidator
	Logger      *observability.Logger
	Metrics     *observability.Metrics
}

// Service implements the membership mutation protocol: create, update and
// delete with inheritance-floor validation, redundancy pruning and
// last-admin protection. Every mutation runs in a single transaction; the
// pruning step reads through the same transaction so it observes the grant
// it prunes against.
type Service struct {
	db          *sql.DB
	items       *items.Store
	memberships *Store
	visibility  *VisibilityStore
	resolver    *Resolver
	accounts    AccountProvider
	requests    RequestDeleter
	notifier    Notifier
	cache       CacheInvalidator
	logger      *observability.Logger
	metrics     *observability.Metrics
	tracer      trace.Tracer
}

// NewService creates a new membership mutation service
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		db:          cfg.DB,
		items:       cfg.Items,
		memberships: cfg.Memberships,
		visibility:  cfg.Visibility,
		resolver:    cfg.Resolver,
		accounts:    cfg.Accounts,
		requests:    cfg.Requests,
		notifier:    cfg.Notifier,
		cache:       cfg.Cache,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		tracer:      otel.Tracer("shelf/memberships"),
	}
}

// Create grants accountID the given level on itemID. The acting account
// must resolve to Admin on the item. Grants at or below the inherited floor
// are rejected; descendant grants made redundant by the new one are pruned
// in the same transaction and reported in the result.
func (s *Service) Create(ctx context.Context, itemID, accountID string, level PermissionLevel, actorID string) (*MutationResult, error) {
	ctx, span := s.tracer.Start(ctx, "memberships.Create", trace.WithAttributes(
		attribute.String("item.id", itemID),
		attribute.String("account.id", accountID),
	))
	defer span.End()

	if !level.Valid() {
		return nil, ErrUnknownPermissionLevel
	}

	var result *MutationResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		itemStore := s.items.WithTx(tx)
		store := s.memberships.WithTx(tx)
		resolver := s.resolver.WithTx(tx)

		item, err := itemStore.Get(ctx, itemID)
		if err != nil {
			return err
		}

		if err := s.requireAdmin(ctx, resolver, actorID, item); err != nil {
			return err
		}

		// A grant at exactly this node must go through Update.
		if _, err := store.GetByItemAccount(ctx, itemID, accountID); err == nil {
			return ErrModifyExistingMembership
		} else if err != ErrMembershipNotFound {
			return err
		}

		// Closest-wins means a new grant at or below the inherited floor
		// would be a no-op at best and a silent downgrade at worst. The
		// floor is the full resolution at the parent, so a Public ancestor
		// already supplying Read rejects a new Read grant too.
		inherited := PermissionNone
		if parentPath := item.ParentPath(); parentPath != "" {
			inherited, err = resolver.resolvePath(ctx, accountID, parentPath)
			if err != nil {
				return err
			}
		}
		if level.Rank() <= inherited.Rank() {
			return ErrInvalidMembership
		}

		m := &ItemMembership{
			ID:         uuid.NewString(),
			ItemID:     item.ID,
			ItemPath:   item.Path,
			AccountID:  accountID,
			Permission: level,
			CreatorID:  actorID,
		}
		if err := store.Create(ctx, m); err != nil {
			return err
		}

		pruned, err := pruneRedundantBelow(ctx, store, item.Path, accountID, level)
		if err != nil {
			return err
		}

		result = &MutationResult{Membership: m, PrunedIDs: pruned}
		return nil
	})
	if err != nil {
		s.countMutation("create", err)
		return nil, err
	}

	s.countMutation("create", nil)
	s.deleteRequest(ctx, itemID, accountID)
	s.afterMutation(ctx, "create", result.Membership, actorID, len(result.PrunedIDs))
	return result, nil
}

// Update changes the level of an existing membership. Downgrading below the
// inherited floor fails; updating to exactly the floor deletes the now
// redundant row and returns the ancestor grant that supplies the level.
func (s *Service) Update(ctx context.Context, membershipID string, level PermissionLevel, actorID string) (*MutationResult, error) {
	ctx, span := s.tracer.Start(ctx, "memberships.Update", trace.WithAttributes(
		attribute.String("membership.id", membershipID),
	))
	defer span.End()

	if !level.Valid() {
		return nil, ErrUnknownPermissionLevel
	}

	var result *MutationResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		itemStore := s.items.WithTx(tx)
		store := s.memberships.WithTx(tx)
		resolver := s.resolver.WithTx(tx)

		m, err := store.Get(ctx, membershipID)
		if err != nil {
			return err
		}

		item, err := itemStore.Get(ctx, m.ItemID)
		if err != nil {
			return err
		}

		if err := s.requireAdmin(ctx, resolver, actorID, item); err != nil {
			return err
		}

		kind, err := s.accounts.KindOf(ctx, m.AccountID)
		if err != nil {
			return err
		}
		if kind == AccountGuest {
			return ErrCannotModifyGuestItemMembership
		}

		ancestor, err := inheritedMembership(ctx, store, item, m.AccountID)
		if err != nil {
			return err
		}

		inherited := PermissionNone
		if ancestor != nil {
			inherited = ancestor.Permission
		}
		if level.Rank() < inherited.Rank() {
			return ErrInvalidPermissionLevel
		}

		// Exactly the inherited floor: the row is redundant, collapse it
		// into inheritance and hand back the ancestor grant.
		if ancestor != nil && level.Rank() == inherited.Rank() {
			if err := store.Delete(ctx, m.ID); err != nil {
				return err
			}
			result = &MutationResult{Membership: ancestor, Inherited: true, PrunedIDs: []string{m.ID}}
			return nil
		}

		if err := store.UpdatePermission(ctx, m.ID, level); err != nil {
			return err
		}
		m.Permission = level

		pruned, err := pruneRedundantBelow(ctx, store, item.Path, m.AccountID, level)
		if err != nil {
			return err
		}

		result = &MutationResult{Membership: m, PrunedIDs: pruned}
		return nil
	})
	if err != nil {
		s.countMutation("update", err)
		return nil, err
	}

	s.countMutation("update", nil)
	s.afterMutation(ctx, "update", result.Membership, actorID, len(result.PrunedIDs))
	return result, nil
}

// Delete removes a membership. Deleting the last reachable Admin of an item
// fails. With purgeBelow, every membership of the same account on any
// descendant is removed too, restoring pure inheritance for that subtree.
func (s *Service) Delete(ctx context.Context, membershipID string, actorID string, purgeBelow bool) (*DeleteResult, error) {
	ctx, span := s.tracer.Start(ctx, "memberships.Delete", trace.WithAttributes(
		attribute.String("membership.id", membershipID),
		attribute.Bool("purge_below", purgeBelow),
	))
	defer span.End()

	var result *DeleteResult
	var accountID string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		itemStore := s.items.WithTx(tx)
		store := s.memberships.WithTx(tx)
		resolver := s.resolver.WithTx(tx)

		m, err := store.Get(ctx, membershipID)
		if err != nil {
			return err
		}
		accountID = m.AccountID

		item, err := itemStore.Get(ctx, m.ItemID)
		if err != nil {
			return err
		}

		if err := s.requireAdmin(ctx, resolver, actorID, item); err != nil {
			return err
		}

		if m.Permission == PermissionAdmin {
			all, err := store.GetAllInChain(ctx, item.Path)
			if err != nil {
				return err
			}
			if len(effectiveAdmins(all, m.ID)) == 0 {
				return ErrCannotDeleteOnlyAdmin
			}
		}

		deleted := []string{m.ID}
		if err := store.Delete(ctx, m.ID); err != nil {
			return err
		}

		if purgeBelow {
			below, err := store.GetBelowForAccount(ctx, item.Path, m.AccountID)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(below))
			for _, bm := range below {
				ids = append(ids, bm.ID)
			}
			if err := store.DeleteMany(ctx, ids); err != nil {
				return err
			}
			deleted = append(deleted, ids...)
		}

		result = &DeleteResult{DeletedIDs: deleted}
		return nil
	})
	if err != nil {
		s.countMutation("delete", err)
		return nil, err
	}

	s.countMutation("delete", nil)
	s.invalidate(ctx, accountID)
	return result, nil
}

// Listing is the membership view of a single item: grants declared on the
// item itself plus grants inherited from ancestors, root first.
type Listing struct {
	Direct    []*ItemMembership `json:"direct"`
	Inherited []*ItemMembership `json:"inherited"`
}

// ListForItem returns the membership listing of an item. The acting account
// needs at least Read on the item.
func (s *Service) ListForItem(ctx context.Context, itemID, actorID string) (*Listing, error) {
	item, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	level, err := s.resolver.ResolveItem(ctx, actorID, item)
	if err != nil {
		return nil, err
	}
	if !level.AtLeast(PermissionRead) {
		return nil, ErrInsufficientPermission
	}

	direct, err := s.memberships.GetForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var inherited []*ItemMembership
	if parentPath := item.ParentPath(); parentPath != "" {
		inherited, err = s.memberships.GetAllInChain(ctx, parentPath)
		if err != nil {
			return nil, err
		}
	}

	return &Listing{Direct: direct, Inherited: inherited}, nil
}

// requireAdmin verifies the acting account resolves to Admin on the item.
func (s *Service) requireAdmin(ctx context.Context, resolver *Resolver, actorID string, item *items.Item) error {
	level, err := resolver.ResolveItem(ctx, actorID, item)
	if err != nil {
		return err
	}
	if level != PermissionAdmin {
		return ErrInsufficientPermission
	}
	return nil
}

// inheritedMembership returns the closest strict-ancestor grant for
// accountID, or nil. Update validates against this membership-only floor;
// Create resolves the parent in full so the visibility floor counts too.
func inheritedMembership(ctx context.Context, store *Store, item *items.Item, accountID string) (*ItemMembership, error) {
	parentPath := item.ParentPath()
	if parentPath == "" {
		return nil, nil
	}
	chain, err := store.GetInChain(ctx, parentPath, accountID)
	if err != nil {
		return nil, err
	}
	return ClosestMembership(chain), nil
}

// pruneRedundantBelow removes the account's descendant memberships made
// redundant by a grant of level at path. Descendant grants with a strictly
// higher level are intentional overrides and survive.
func pruneRedundantBelow(ctx context.Context, store *Store, path, accountID string, level PermissionLevel) ([]string, error) {
	below, err := store.GetBelowForAccount(ctx, path, accountID)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, m := range below {
		if m.Permission.Rank() <= level.Rank() {
			ids = append(ids, m.ID)
		}
	}
	if err := store.DeleteMany(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WithError(rbErr).Error("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// deleteRequest removes the pending membership request for exactly the
// granted pair. The request collaborator failing is logged, not fatal.
func (s *Service) deleteRequest(ctx context.Context, itemID, accountID string) {
	if s.requests == nil {
		return
	}
	if err := s.requests.DeleteExact(ctx, itemID, accountID); err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"item_id":    itemID,
			"account_id": accountID,
		}).Warn("failed to delete membership request")
	}
}

// afterMutation handles committed-mutation side effects: cache invalidation
// and fire-and-forget notification.
func (s *Service) afterMutation(ctx context.Context, op string, m *ItemMembership, actorID string, pruned int) {
	s.invalidate(ctx, m.AccountID)

	if s.metrics != nil && pruned > 0 {
		s.metrics.PrunedMembershipsTotal.Add(float64(pruned))
	}

	if s.notifier == nil {
		return
	}
	event := Event{
		Operation:  op,
		ItemID:     m.ItemID,
		AccountID:  m.AccountID,
		Permission: m.Permission,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
	notifier := s.notifier
	logger := s.logger
	async.SafeGo(context.WithoutCancel(ctx), 10*time.Second, "membership notification", func(ctx context.Context) error {
		if err := notifier.MembershipChanged(ctx, event); err != nil {
			logger.WithError(err).Warn("membership notification failed")
		}
		return nil
	})
}

func (s *Service) invalidate(ctx context.Context, accountID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAccount(ctx, accountID); err != nil {
		s.logger.WithError(err).WithField("account_id", accountID).Warn("failed to invalidate permission cache")
	}
}

func (s *Service) countMutation(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.MutationsTotal.WithLabelValues(op, outcome).Inc()
}
