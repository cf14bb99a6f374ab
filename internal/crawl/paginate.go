package crawl

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/pharma-price-crawler/internal/catalog"
	"github.com/JakeFAU/pharma-price-crawler/internal/fetch"
	"github.com/JakeFAU/pharma-price-crawler/internal/metrics"
)

// TerminationReason records why a category traversal stopped.
type TerminationReason string

// Termination reasons.
const (
	ReasonFetchFailed     TerminationReason = "fetch-failed"
	ReasonEmptyPage       TerminationReason = "empty-page"
	ReasonNoNewLinks      TerminationReason = "no-new-links"
	ReasonEndOfPagination TerminationReason = "end-of-pagination"
	ReasonCanceled        TerminationReason = "canceled"
)

// crawlState is the explicit state of the pagination machine.
type crawlState int

const (
	stateFetching crawlState = iota
	stateExtracting
	stateDeciding
	stateTerminated
)

// Result is the terminal output of one category traversal: the deduplicated
// product URL set plus the breadcrumb context it was found under.
type Result struct {
	Target      catalog.Target
	ProductURLs []string
	Pages       int
	Reason      TerminationReason
}

// ListCrawler walks one category's paginated listing. Each Crawl call owns
// its dedup set and page counter; instances are safe to reuse sequentially
// and cheap enough to build per category.
type ListCrawler struct {
	fetcher Fetcher
	parser  SiteParser
	delay   fetch.DelayRange
	logger  *zap.Logger
}

// NewListCrawler constructs a ListCrawler. delay is the inter-page jitter
// range applied between consecutive list pages.
func NewListCrawler(fetcher Fetcher, parser SiteParser, delay fetch.DelayRange, logger *zap.Logger) *ListCrawler {
	return &ListCrawler{
		fetcher: fetcher,
		parser:  parser,
		delay:   delay,
		logger:  logger,
	}
}

// Crawl traverses target's listing until a termination condition fires.
// Termination is guaranteed for any finite page sequence: every transition
// back to fetching requires at least one previously-unseen link or a fresh
// next pointer, and a repeated or self-referential pointer stops the walk.
func (c *ListCrawler) Crawl(ctx context.Context, target catalog.Target) Result {
	var (
		seen    = make(map[string]struct{})
		result  []string
		page    = 1
		current = target.URL
		reason  TerminationReason

		links []string
		doc   *goquery.Document
	)

	state := stateFetching
	for state != stateTerminated {
		switch state {
		case stateFetching:
			body, err := c.fetcher.Fetch(ctx, current)
			if err != nil {
				// A missing list page means no further links are
				// discoverable from this pointer; do not retry.
				reason = ReasonFetchFailed
				if ctx.Err() != nil {
					reason = ReasonCanceled
				}
				state = stateTerminated
				continue
			}
			metrics.PagesCrawledTotal.Inc()
			doc, err = goquery.NewDocumentFromReader(bytes.NewReader(body))
			if err != nil {
				reason = ReasonFetchFailed
				state = stateTerminated
				continue
			}
			state = stateExtracting

		case stateExtracting:
			links = c.parser.ExtractLinks(doc)
			if len(links) == 0 {
				reason = ReasonEmptyPage
				state = stateTerminated
				continue
			}
			state = stateDeciding

		case stateDeciding:
			newLinks := c.deduplicate(links, seen)
			if len(newLinks) == 0 && page > 1 {
				// Some sites serve the last page forever instead of
				// signaling end-of-pagination.
				reason = ReasonNoNewLinks
				state = stateTerminated
				continue
			}
			result = append(result, newLinks...)

			next := c.parser.NextPage(doc, current, page)
			if next == "" || next == current {
				reason = ReasonEndOfPagination
				state = stateTerminated
				continue
			}
			current = next
			page++
			if err := c.pause(ctx); err != nil {
				reason = ReasonCanceled
				state = stateTerminated
				continue
			}
			state = stateFetching
		}
	}

	sort.Strings(result)
	c.logger.Info("Category crawl terminated",
		zap.Strings("breadcrumbs", target.Breadcrumbs),
		zap.Int("pages", page),
		zap.Int("product_urls", len(result)),
		zap.String("reason", string(reason)),
	)
	return Result{
		Target:      target,
		ProductURLs: result,
		Pages:       page,
		Reason:      reason,
	}
}

// deduplicate returns the links not yet in seen, marking them as seen.
// Comparison happens on normalized URLs; unparseable links are kept as-is
// rather than dropped.
func (c *ListCrawler) deduplicate(links []string, seen map[string]struct{}) []string {
	var fresh []string
	for _, link := range links {
		key := link
		if normalized, err := NormalizeURL(link); err == nil {
			key = normalized
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, key)
	}
	return fresh
}

func (c *ListCrawler) pause(ctx context.Context) error {
	delay := c.delay.Pick()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
