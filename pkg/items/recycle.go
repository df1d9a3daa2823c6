package items

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/shelf/pkg/observability"
)

// Recycler coordinates transactional soft-delete and restore of subtrees.
// Memberships and visibility markers attached to recycled items are never
// touched; they reactivate when the subtree is restored.
type Recycler struct {
	db      *sql.DB
	store   *Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRecycler creates a new recycle/restore coordinator
func NewRecycler(db *sql.DB, store *Store, logger *observability.Logger, metrics *observability.Metrics) *Recycler {
	return &Recycler{db: db, store: store, logger: logger, metrics: metrics}
}

// Recycle soft-deletes the item and its whole subtree in one transaction.
// Returns the number of items moved to the recycle bin.
func (r *Recycler) Recycle(ctx context.Context, itemID string) (int64, error) {
	var affected int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		store := r.store.WithTx(tx)

		item, err := store.Get(ctx, itemID)
		if err != nil {
			return err
		}
		if item.IsDeleted() {
			return ErrItemAlreadyDeleted
		}

		affected, err = store.SoftDeleteSubtree(ctx, item.Path)
		return err
	})
	r.countOp("recycle", err)
	if err != nil {
		return 0, err
	}
	r.store.PurgeCache()

	r.logger.WithFields(map[string]interface{}{"item_id": itemID, "affected": affected}).Info("item recycled")
	return affected, nil
}

// Restore clears the deletion marker on the item and on every formerly
// deleted descendant in the same transaction. The item itself must be in
// the recycle bin.
func (r *Recycler) Restore(ctx context.Context, itemID string) (int64, error) {
	var affected int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		store := r.store.WithTx(tx)

		item, err := store.Get(ctx, itemID)
		if err != nil {
			return err
		}
		if !item.IsDeleted() {
			return ErrItemNotDeleted
		}

		affected, err = store.RestoreSubtree(ctx, item.Path)
		return err
	})
	r.countOp("restore", err)
	if err != nil {
		return 0, err
	}
	r.store.PurgeCache()

	r.logger.WithFields(map[string]interface{}{"item_id": itemID, "affected": affected}).Info("item restored")
	return affected, nil
}

// RecycleMany recycles each item independently. Per-item failures are
// reported in the result and never abort the rest of the batch.
func (r *Recycler) RecycleMany(ctx context.Context, itemIDs []string) []BatchResult {
	return r.batch(ctx, itemIDs, r.Recycle)
}

// RestoreMany restores each item independently, with the same partial
// failure semantics as RecycleMany.
func (r *Recycler) RestoreMany(ctx context.Context, itemIDs []string) []BatchResult {
	return r.batch(ctx, itemIDs, r.Restore)
}

func (r *Recycler) batch(ctx context.Context, itemIDs []string, op func(context.Context, string) (int64, error)) []BatchResult {
	results := make([]BatchResult, len(itemIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range itemIDs {
		i, id := i, id
		g.Go(func() error {
			affected, err := op(ctx, id)
			results[i] = BatchResult{ItemID: id, Affected: affected}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil // batch entries fail independently
		})
	}
	_ = g.Wait()

	return results
}

func (r *Recycler) countOp(operation string, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.metrics.RecycleOpsTotal.WithLabelValues(operation, outcome).Inc()
}

func (r *Recycler) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.WithError(rbErr).Error("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
