// Package crawl implements category discovery and the paginated list crawl.
package crawl

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/pharma-price-crawler/internal/catalog"
)

// Fetcher fetches a URL and returns the raw page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SiteParser supplies the per-source field-extraction capability. One
// implementation exists per pharmacy site (see internal/sources); selection
// happens via configuration, never by inheritance.
type SiteParser interface {
	// ExtractCategories walks the landing page menu and returns the leaf
	// categories with their breadcrumb paths. An unrecognized page yields an
	// empty slice.
	ExtractCategories(doc *goquery.Document) []catalog.Target

	// ExtractLinks returns the absolute product URLs on one list page.
	ExtractLinks(doc *goquery.Document) []string

	// NextPage resolves the next list page pointer: an explicit "next" link
	// if present, else a numbered pagination link for currentPage+1, else a
	// constructed page-index URL. Empty means end of pagination.
	NextPage(doc *goquery.Document, currentURL string, currentPage int) string

	// ExtractDetail parses one product page. Raw is the unparsed body, kept
	// for regex price fallbacks over script fragments.
	ExtractDetail(doc *goquery.Document, raw []byte) catalog.Detail
}
