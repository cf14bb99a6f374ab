package crawl

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/pharma-price-crawler/internal/catalog"
)

// Discoverer builds the leaf-category list from a site's landing page.
type Discoverer struct {
	fetcher Fetcher
	parser  SiteParser
	logger  *zap.Logger
}

// NewDiscoverer constructs a Discoverer.
func NewDiscoverer(fetcher Fetcher, parser SiteParser, logger *zap.Logger) *Discoverer {
	return &Discoverer{
		fetcher: fetcher,
		parser:  parser,
		logger:  logger,
	}
}

// Discover fetches landingURL and returns the leaf categories to crawl.
// A landing page without a recognizable menu yields an empty list rather
// than an error; only the fetch itself can fail here.
func (d *Discoverer) Discover(ctx context.Context, landingURL string) ([]catalog.Target, error) {
	body, err := d.fetcher.Fetch(ctx, landingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch landing page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse landing page: %w", err)
	}

	targets := d.parser.ExtractCategories(doc)
	d.logger.Info("Category discovery finished",
		zap.String("url", landingURL),
		zap.Int("leaf_categories", len(targets)),
	)
	return targets, nil
}
