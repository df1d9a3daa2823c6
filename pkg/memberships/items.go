package memberships

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/shelf/pkg/items"
)

// CreateRootItem creates a top-level item. The creator receives an Admin
// membership on it in the same transaction, bootstrapping the subtree's
// admin chain. Only full member accounts may create roots.
func (s *Service) CreateRootItem(ctx context.Context, name, actorID string) (*items.Item, error) {
	ctx, span := s.tracer.Start(ctx, "memberships.CreateRootItem", trace.WithAttributes(
		attribute.String("item.name", name),
	))
	defer span.End()

	kind, err := s.accounts.KindOf(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if kind != AccountMember {
		return nil, ErrInsufficientPermission
	}

	item := items.NewItem(name, actorID, nil)
	if err := item.Validate(); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.items.WithTx(tx).Create(ctx, item); err != nil {
			return err
		}
		m := &ItemMembership{
			ID:         uuid.NewString(),
			ItemID:     item.ID,
			ItemPath:   item.Path,
			AccountID:  actorID,
			Permission: PermissionAdmin,
			CreatorID:  actorID,
		}
		return s.memberships.WithTx(tx).Create(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"item_id":  item.ID,
		"actor_id": actorID,
	}).Info("root item created")
	return item, nil
}

// CreateChildItem creates an item under parentID. The acting account needs
// Write on the parent. The child carries no grants of its own; access is
// inherited until a membership is declared on it.
func (s *Service) CreateChildItem(ctx context.Context, parentID, name, actorID string) (*items.Item, error) {
	ctx, span := s.tracer.Start(ctx, "memberships.CreateChildItem", trace.WithAttributes(
		attribute.String("item.parent_id", parentID),
		attribute.String("item.name", name),
	))
	defer span.End()

	var item *items.Item
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		itemStore := s.items.WithTx(tx)
		resolver := s.resolver.WithTx(tx)

		parent, err := itemStore.Get(ctx, parentID)
		if err != nil {
			return err
		}
		if parent.IsDeleted() {
			return items.ErrItemAlreadyDeleted
		}

		level, err := resolver.ResolveItem(ctx, actorID, parent)
		if err != nil {
			return err
		}
		if !level.AtLeast(PermissionWrite) {
			return ErrInsufficientPermission
		}

		item = items.NewItem(name, actorID, parent)
		if err := item.Validate(); err != nil {
			return err
		}
		return itemStore.Create(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"item_id":   item.ID,
		"parent_id": parentID,
		"actor_id":  actorID,
	}).Info("child item created")
	return item, nil
}

// SetVisibility places a Public or Hidden marker on an item. Requires Admin.
func (s *Service) SetVisibility(ctx context.Context, itemID string, vType VisibilityType, actorID string) (*ItemVisibility, error) {
	if !vType.Valid() {
		return nil, ErrUnknownVisibilityType
	}

	var v *ItemVisibility
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		itemStore := s.items.WithTx(tx)
		resolver := s.resolver.WithTx(tx)

		item, err := itemStore.Get(ctx, itemID)
		if err != nil {
			return err
		}
		if err := s.requireAdmin(ctx, resolver, actorID, item); err != nil {
			return err
		}

		v = &ItemVisibility{
			ItemID:    item.ID,
			ItemPath:  item.Path,
			Type:      vType,
			CreatorID: actorID,
		}
		return s.visibility.WithTx(tx).Create(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// UnsetVisibility removes a marker of the given type from an item. Requires
// Admin.
func (s *Service) UnsetVisibility(ctx context.Context, itemID string, vType VisibilityType, actorID string) error {
	if !vType.Valid() {
		return ErrUnknownVisibilityType
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		itemStore := s.items.WithTx(tx)
		resolver := s.resolver.WithTx(tx)
		visStore := s.visibility.WithTx(tx)

		item, err := itemStore.Get(ctx, itemID)
		if err != nil {
			return err
		}
		if err := s.requireAdmin(ctx, resolver, actorID, item); err != nil {
			return err
		}

		markers, err := visStore.GetForItem(ctx, itemID)
		if err != nil {
			return err
		}
		for _, marker := range markers {
			if marker.Type == vType {
				return visStore.Delete(ctx, marker.ID)
			}
		}
		return ErrVisibilityNotFound
	})
}
