// Package pipeline runs the two-stage crawl: collect walks the category
// tree and materializes per-category manifests, ingest replays the
// manifests through extraction, reconciliation and price upserts. The
// stages are separate commands on purpose: a failed ingest can be re-run
// against the same manifests without re-crawling list pages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/pharma-price-crawler/internal/config"
	"github.com/JakeFAU/pharma-price-crawler/internal/crawl"
	"github.com/JakeFAU/pharma-price-crawler/internal/errlog"
	"github.com/JakeFAU/pharma-price-crawler/internal/extract"
	"github.com/JakeFAU/pharma-price-crawler/internal/fetch"
	"github.com/JakeFAU/pharma-price-crawler/internal/metrics"
	"github.com/JakeFAU/pharma-price-crawler/internal/reconcile"
	"github.com/JakeFAU/pharma-price-crawler/internal/sources"
)

// Store is the persistence surface the pipeline drives.
type Store interface {
	reconcile.Store
	GetOrCreateCategoryPath(ctx context.Context, breadcrumbs []string) (int64, error)
	EnsurePharmacy(ctx context.Context, name, address string) (int64, error)
	UpsertPrice(ctx context.Context, pharmacyID, medicineID int64, price float64) error
}

// CollectSummary reports one collect run.
type CollectSummary struct {
	RunID      string
	Categories int
	Pages      int
	Products   int
	Failed     int
}

// IngestSummary reports one ingest or replay run.
type IngestSummary struct {
	RunID     string
	Processed int
	Skipped   int
	Unmatched int
	Failed    int
}

// Pipeline binds one configured source to the fetch, crawl and persistence
// machinery. Every run gets a fresh id so log lines from overlapping runs
// stay attributable.
type Pipeline struct {
	cfg    config.Config
	source config.SourceConfig
	parser crawl.SiteParser
	fetch  *fetch.Client
	store  Store
	errors *errlog.Log
	logger *zap.Logger
	runID  string
}

// New wires a Pipeline for the named source from the configuration.
func New(cfg config.Config, sourceName string, st Store, logger *zap.Logger) (*Pipeline, error) {
	src, ok := cfg.Sources[sourceName]
	if !ok {
		return nil, fmt.Errorf("source %q not configured", sourceName)
	}

	parser, err := sources.New(src.Parser, src.BaseURL)
	if err != nil {
		return nil, err
	}

	elog, err := errlog.New(filepath.Join(cfg.Paths.ErrorLogDir, sourceName))
	if err != nil {
		return nil, err
	}

	reqMin, reqMax := cfg.Crawler.RequestDelay()
	client := fetch.New(fetch.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.RequestTimeout(),
		Delay:     fetch.DelayRange{Min: reqMin, Max: reqMax},
	}, logger)

	runID := uuid.NewString()
	return &Pipeline{
		cfg:    cfg,
		source: src,
		parser: parser,
		fetch:  client,
		store:  st,
		errors: elog,
		logger: logger.With(zap.String("source", sourceName), zap.String("run_id", runID)),
		runID:  runID,
	}, nil
}

// Collect discovers leaf categories and crawls each one's listing into a
// manifest file. Zero discovered categories is fatal: it means the landing
// page markup changed and every downstream stage would silently no-op.
func (p *Pipeline) Collect(ctx context.Context) (CollectSummary, error) {
	summary := CollectSummary{RunID: p.runID}

	discoverer := crawl.NewDiscoverer(p.fetch, p.parser, p.logger)
	targets, err := discoverer.Discover(ctx, p.source.BaseURL)
	if err != nil {
		return summary, fmt.Errorf("discover categories: %w", err)
	}
	if len(targets) == 0 {
		return summary, fmt.Errorf("no categories discovered at %s", p.source.BaseURL)
	}

	sink, err := crawl.NewManifestSink(p.manifestDir(), p.logger)
	if err != nil {
		return summary, err
	}

	pageMin, pageMax := p.cfg.Crawler.PageDelay()
	catMin, catMax := p.cfg.Crawler.CategoryDelay()
	categoryDelay := fetch.DelayRange{Min: catMin, Max: catMax}
	crawler := crawl.NewListCrawler(p.fetch, p.parser, fetch.DelayRange{Min: pageMin, Max: pageMax}, p.logger)

	var (
		pages    atomic.Int64
		products atomic.Int64
		failed   atomic.Int64
	)

	p.forEach(ctx, len(targets), func(ctx context.Context, i int) {
		target := targets[i]
		result := crawler.Crawl(ctx, target)
		pages.Add(int64(result.Pages))
		products.Add(int64(len(result.ProductURLs)))

		// A dead list page ends its category. It never enters the error
		// log: replay runs the detail path, which cannot retry a listing.
		if result.Reason == crawl.ReasonFetchFailed && len(result.ProductURLs) == 0 {
			failed.Add(1)
			p.logger.Warn("Category failed on first page", zap.String("url", target.URL))
			return
		}

		if _, err := sink.Write(ctx, crawl.Manifest{
			CategoryURL: target.URL,
			Breadcrumbs: target.Breadcrumbs,
			ProductURLs: result.ProductURLs,
		}); err != nil {
			failed.Add(1)
			p.logger.Warn("Manifest write failed", zap.String("url", target.URL), zap.Error(err))
			return
		}

		// Jitter between categories keeps the request train irregular even
		// when several workers finish near-simultaneously.
		select {
		case <-ctx.Done():
		case <-time.After(categoryDelay.Pick()):
		}
	})

	summary.Categories = len(targets)
	summary.Pages = int(pages.Load())
	summary.Products = int(products.Load())
	summary.Failed = int(failed.Load())

	p.logger.Info("Collect finished",
		zap.Int("categories", summary.Categories),
		zap.Int("pages", summary.Pages),
		zap.Int("product_urls", summary.Products),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// Ingest walks every manifest and pushes each product page through
// extraction, reconciliation and the price upsert. Item failures are
// isolated: they go to the error log and the run continues.
func (p *Pipeline) Ingest(ctx context.Context, role reconcile.Role) (IngestSummary, error) {
	summary := IngestSummary{RunID: p.runID}

	manifests, err := crawl.LoadManifests(p.manifestDir())
	if err != nil {
		return summary, err
	}
	if len(manifests) == 0 {
		return summary, fmt.Errorf("no manifests under %s, run collect first", p.manifestDir())
	}

	ing, err := p.newIngester(ctx, role)
	if err != nil {
		return summary, err
	}

	// Category rows belong to the catalog builder. The price attacher never
	// references a category, so its manifests must not grow the taxonomy.
	var items []ingestItem
	for _, m := range manifests {
		var categoryID *int64
		if role == reconcile.RoleCatalogBuilder {
			id, err := p.store.GetOrCreateCategoryPath(ctx, m.Breadcrumbs)
			if err != nil {
				// Every item in this manifest would fail the same way.
				for _, url := range m.ProductURLs {
					ing.failed.Add(1)
					p.recordFailure(url, m.Breadcrumbs, err.Error())
				}
				continue
			}
			categoryID = &id
		}
		for _, url := range m.ProductURLs {
			items = append(items, ingestItem{url: url, breadcrumbs: m.Breadcrumbs, categoryID: categoryID})
		}
	}

	// One worker slot per product URL, whatever manifest it came from.
	// The per-request jitter in the fetch client spaces the requests.
	p.forEach(ctx, len(items), func(ctx context.Context, i int) {
		it := items[i]
		ing.processItem(ctx, it.url, it.breadcrumbs, it.categoryID)
	})

	summary.Processed = int(ing.processed.Load())
	summary.Skipped = int(ing.skipped.Load())
	summary.Unmatched = int(ing.unmatched.Load())
	summary.Failed = int(ing.failed.Load())

	p.logger.Info("Ingest finished",
		zap.String("role", string(role)),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("unmatched", summary.Unmatched),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// Replay re-runs the newest error log partition's items through the same
// ingest path. Entries that fail again are re-recorded, so the next replay
// still sees them.
func (p *Pipeline) Replay(ctx context.Context, role reconcile.Role) (IngestSummary, error) {
	summary := IngestSummary{RunID: p.runID}

	entries, path, err := p.errors.ReadLatest()
	if err != nil {
		return summary, err
	}
	if len(entries) == 0 {
		p.logger.Info("No failed items to replay")
		return summary, nil
	}
	p.logger.Info("Replaying failed items", zap.String("partition", path), zap.Int("items", len(entries)))

	ing, err := p.newIngester(ctx, role)
	if err != nil {
		return summary, err
	}

	p.forEach(ctx, len(entries), func(ctx context.Context, i int) {
		e := entries[i]
		var categoryID *int64
		if role == reconcile.RoleCatalogBuilder && len(e.Breadcrumbs) > 0 {
			id, err := p.store.GetOrCreateCategoryPath(ctx, e.Breadcrumbs)
			if err != nil {
				ing.failed.Add(1)
				p.recordFailure(e.URL, e.Breadcrumbs, err.Error())
				return
			}
			categoryID = &id
		}
		ing.processItem(ctx, e.URL, e.Breadcrumbs, categoryID)
	})

	summary.Processed = int(ing.processed.Load())
	summary.Skipped = int(ing.skipped.Load())
	summary.Unmatched = int(ing.unmatched.Load())
	summary.Failed = int(ing.failed.Load())
	return summary, nil
}

// ingestItem is one resolved unit of detail work.
type ingestItem struct {
	url         string
	breadcrumbs []string
	categoryID  *int64
}

// ingester holds the per-run state shared by ingest and replay.
type ingester struct {
	pipeline   *Pipeline
	extractor  *extract.Extractor
	reconciler *reconcile.Reconciler
	pharmacyID int64

	processed atomic.Int64
	skipped   atomic.Int64
	unmatched atomic.Int64
	failed    atomic.Int64
}

func (p *Pipeline) newIngester(ctx context.Context, role reconcile.Role) (*ingester, error) {
	pharmacyID, err := p.store.EnsurePharmacy(ctx, p.source.Name, p.source.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ensure pharmacy: %w", err)
	}

	reconciler, err := reconcile.New(ctx, role, p.store, p.logger)
	if err != nil {
		return nil, err
	}

	return &ingester{
		pipeline:   p,
		extractor:  extract.New(p.fetch, p.parser, p.logger),
		reconciler: reconciler,
		pharmacyID: pharmacyID,
	}, nil
}

// processItem runs one product URL end to end. Any failure is logged and
// recorded, never propagated; a single broken page must not stop the run.
func (i *ingester) processItem(ctx context.Context, url string, breadcrumbs []string, categoryID *int64) {
	p := i.pipeline

	detail, err := i.extractor.Extract(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// A page that loads but lacks a usable title or price is a skip,
		// not a failure: replaying it would yield the same page.
		if errors.Is(err, extract.ErrMissingTitle) || errors.Is(err, extract.ErrMissingPrice) {
			i.skipped.Add(1)
			metrics.ItemsSkippedTotal.Inc()
			p.logger.Debug("Item skipped", zap.String("url", url), zap.Error(err))
			return
		}
		i.failed.Add(1)
		p.recordFailure(url, breadcrumbs, err.Error())
		return
	}

	result, err := i.reconciler.Reconcile(ctx, detail, categoryID)
	if err != nil {
		i.failed.Add(1)
		p.recordFailure(url, breadcrumbs, err.Error())
		return
	}

	switch result.Outcome {
	case reconcile.OutcomeUnmatched:
		i.unmatched.Add(1)
		metrics.ItemsUnmatchedTotal.Inc()
		p.logger.Debug("Item unmatched", zap.String("url", url), zap.String("title", detail.Title))
		return
	case reconcile.OutcomeMatched, reconcile.OutcomeCreated:
		if err := p.store.UpsertPrice(ctx, i.pharmacyID, result.MedicineID, detail.Price); err != nil {
			i.failed.Add(1)
			p.recordFailure(url, breadcrumbs, err.Error())
			return
		}
		metrics.PricesUpsertedTotal.Inc()
	}

	i.processed.Add(1)
	metrics.ItemsProcessedTotal.Inc()
}

// forEach runs fn over n indices with a bounded worker pool.
func (p *Pipeline) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	concurrency := p.cfg.Crawler.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, i)
		}(i)
	}
	wg.Wait()
}

func (p *Pipeline) recordFailure(url string, breadcrumbs []string, reason string) {
	p.logger.Warn("Item failed", zap.String("url", url), zap.String("reason", reason))
	if err := p.errors.Record(url, breadcrumbs, reason); err != nil {
		p.logger.Error("Error log write failed", zap.Error(err))
	}
}

func (p *Pipeline) manifestDir() string {
	return filepath.Join(p.cfg.Paths.ManifestDir, p.source.Name)
}
