package store

import (
	"context"
	"fmt"

	"vinskraper/models"
)

// Reconciler merges freshly scraped batches into the persisted
// collection. Known products get their descriptive fields overwritten
// with the latest scrape and their price series extended by key union;
// new products are inserted whole.
type Reconciler struct {
	store Store
}

// NewReconciler builds a reconciler over the given store.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile upserts one category batch. Each product becomes a single
// atomic field-set update: descriptive fields are overwritten, the
// current month's price key is added (or overwritten on a same-month
// re-run), and all other months' price keys are left untouched because
// the patch never mentions them. The batch either fully succeeds or the
// error is returned for the orchestrator to retry.
func (r *Reconciler) Reconcile(ctx context.Context, batch []*models.Product) (models.WriteSummary, error) {
	ops := make([]Upsert, 0, len(batch))
	for _, product := range batch {
		if product == nil {
			continue
		}
		ops = append(ops, Upsert{Index: product.Index, Patch: product.Patch()})
	}

	summary, err := r.store.BulkUpsert(ctx, ops)
	if err != nil {
		return models.WriteSummary{}, fmt.Errorf("reconcile batch: %w", err)
	}
	return summary, nil
}
