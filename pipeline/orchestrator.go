// Package pipeline coordinates the category scrape workers and the
// reconciliation, derivation, and archival passes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"vinskraper/config"
	"vinskraper/models"
	"vinskraper/scraper"
	"vinskraper/store"
)

// dedupCacheSize bounds the per-category seen-index cache. The vendor's
// paging occasionally repeats a product across page boundaries.
const dedupCacheSize = 16384

// FetcherFactory builds one page fetcher per category worker. Workers
// must not share fetchers: pages within a category are sequential.
type FetcherFactory func() scraper.PageFetcher

// Orchestrator runs the scrape-and-reconcile pipeline across all
// categories on a bounded worker pool. Categories are independent; a
// category whose reconciliation write fails is requeued against a retry
// budget shared by the whole run.
type Orchestrator struct {
	cfg        *config.Config
	store      store.Store
	reconciler *store.Reconciler
	deriver    *store.Deriver
	metrics    *scraper.Metrics
	newFetcher FetcherFactory
}

// NewOrchestrator wires the pipeline over the given store and fetcher
// factory.
func NewOrchestrator(cfg *config.Config, st store.Store, metrics *scraper.Metrics, factory FetcherFactory) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      st,
		reconciler: store.NewReconciler(st),
		deriver:    store.NewDeriver(st),
		metrics:    metrics,
		newFetcher: factory,
	}
}

type categoryStats struct {
	skippedPages int
	products     int
	writes       models.WriteSummary
}

// Run scrapes every category, then recomputes derived fields and
// archives expired products. Permanently failed categories are reported
// in the result but do not block completion of the others.
func (o *Orchestrator) Run(ctx context.Context, categories []models.Category) (*models.RunResult, error) {
	result := &models.RunResult{Categories: len(categories)}
	if len(categories) == 0 {
		return result, nil
	}

	month := models.MonthOf(time.Now())
	retryBudget := int64(o.cfg.WriteRetryBudget)

	// Buffer covers every initial job plus every possible requeue, so a
	// worker never blocks on its own requeue.
	jobs := make(chan models.Category, len(categories)+o.cfg.WriteRetryBudget)
	var pending sync.WaitGroup
	for _, category := range categories {
		pending.Add(1)
		jobs <- category
	}

	var mu sync.Mutex
	workers := o.cfg.Workers
	if workers > len(categories) {
		workers = len(categories)
	}

	var workerWG sync.WaitGroup
	for i := 0; i < workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for category := range jobs {
				stats, err := o.runCategory(ctx, category, month)

				mu.Lock()
				result.SkippedPages += stats.skippedPages
				result.Products += int64(stats.products)
				result.Writes.Add(stats.writes)
				mu.Unlock()

				if err != nil && ctx.Err() == nil {
					if atomic.AddInt64(&retryBudget, -1) >= 0 {
						slog.Warn("category requeued",
							slog.String("category", category.String()),
							slog.Any("error", err),
						)
						jobs <- category
						continue
					}
					slog.Error("category abandoned, retry budget exhausted",
						slog.String("category", category.String()),
						slog.Any("error", err),
					)
					mu.Lock()
					result.FailedCategories = append(result.FailedCategories, category)
					mu.Unlock()
				} else if err != nil {
					mu.Lock()
					result.FailedCategories = append(result.FailedCategories, category)
					mu.Unlock()
				}
				pending.Done()
			}
		}()
	}

	pending.Wait()
	close(jobs)
	workerWG.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	derived, err := o.deriver.DeriveAll(ctx)
	if err != nil {
		return result, fmt.Errorf("derivation pass: %w", err)
	}
	result.Derived = derived

	archived, err := o.store.ArchiveExpired(ctx)
	if err != nil {
		return result, fmt.Errorf("archive pass: %w", err)
	}
	result.Archived = archived

	return result, nil
}

// runCategory fetches one category's pages in increasing order until the
// first empty page, extracts the records, and reconciles the batch. A
// failed page is skipped, not fatal; a reconciliation error is returned
// for the caller's retry queue.
func (o *Orchestrator) runCategory(ctx context.Context, category models.Category, month models.Month) (categoryStats, error) {
	var stats categoryStats

	fetcher := o.newFetcher()
	extractor := scraper.NewExtractor(month, o.metrics)
	seen, err := lru.New[int, struct{}](dedupCacheSize)
	if err != nil {
		return stats, fmt.Errorf("dedup cache: %w", err)
	}

	var batch []*models.Product
pages:
	for page := 0; page < o.cfg.MaxPages; page++ {
		result := fetcher.FetchPage(ctx, category, page)
		switch result.State {
		case scraper.PageEmpty:
			slog.Info("category exhausted",
				slog.String("category", category.String()),
				slog.Int("final_page", page-1),
			)
			break pages
		case scraper.PageFailed:
			if errors.Is(result.Err, scraper.ErrNoProxies) {
				return stats, result.Err
			}
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			stats.skippedPages++
			continue
		case scraper.PageData:
			for _, product := range extractor.ExtractAll(result.Products) {
				if _, dup := seen.Get(product.Index); dup {
					continue
				}
				seen.Add(product.Index, struct{}{})
				batch = append(batch, product)
			}
		}
	}

	summary, err := o.reconciler.Reconcile(ctx, batch)
	if err != nil {
		return stats, err
	}
	o.metrics.AddUpserts(summary.Matched, summary.Inserted)

	stats.products = len(batch)
	stats.writes = summary
	slog.Info("category reconciled",
		slog.String("category", category.String()),
		slog.Int("products", len(batch)),
		slog.Int("skipped_pages", stats.skippedPages),
		slog.Int64("matched", summary.Matched),
		slog.Int64("inserted", summary.Inserted),
	)
	return stats, nil
}
