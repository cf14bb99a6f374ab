// Package extract turns one product page into a structured record.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/pharma-price-crawler/internal/catalog"
	"github.com/JakeFAU/pharma-price-crawler/internal/crawl"
)

// Extraction failures. A record missing its title or price is invalid as a
// whole; half-populated products are never persisted.
var (
	ErrMissingTitle = errors.New("missing or placeholder title")
	ErrMissingPrice = errors.New("missing or unparseable price")
)

// Extractor fetches and parses product detail pages.
type Extractor struct {
	fetcher crawl.Fetcher
	parser  crawl.SiteParser
	logger  *zap.Logger
}

// New constructs an Extractor.
func New(fetcher crawl.Fetcher, parser crawl.SiteParser, logger *zap.Logger) *Extractor {
	return &Extractor{
		fetcher: fetcher,
		parser:  parser,
		logger:  logger,
	}
}

// Extract fetches url and returns its structured record. Fetch errors pass
// through unchanged so callers can classify them; validation failures wrap
// ErrMissingTitle or ErrMissingPrice.
func (e *Extractor) Extract(ctx context.Context, url string) (catalog.Detail, error) {
	body, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return catalog.Detail{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return catalog.Detail{}, fmt.Errorf("parse product page %s: %w", url, err)
	}

	detail := e.parser.ExtractDetail(doc, body)
	if err := Validate(detail); err != nil {
		e.logger.Debug("Skipping invalid product record",
			zap.String("url", url),
			zap.Error(err),
		)
		return catalog.Detail{}, fmt.Errorf("extract %s: %w", url, err)
	}
	return detail, nil
}

// Validate rejects records with a missing/placeholder title or a
// non-positive price.
func Validate(d catalog.Detail) error {
	if d.Title == "" {
		return ErrMissingTitle
	}
	if d.Price <= 0 {
		return ErrMissingPrice
	}
	return nil
}
