// Package metrics exposes Prometheus counters for the crawl pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks HTTP requests dispatched by the fetch client.
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharmacrawl_requests_total",
		Help: "The total number of HTTP requests sent.",
	})
	// RequestErrorsTotal tracks requests that failed with a transport or status error.
	RequestErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharmacrawl_request_errors_total",
		Help: "The total number of failed HTTP requests.",
	})
	// PagesCrawledTotal tracks list pages walked during the collect stage.
	PagesCrawledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharmacrawl_list_pages_total",
		Help: "The total number of category list pages crawled.",
	})
	// ItemsProcessedTotal tracks product pages fully ingested.
	ItemsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharmacrawl_items_processed_total",
		Help: "The total number of product pages successfully ingested.",
	})
	// ItemsSkippedTotal tracks items dropped for missing required fields or fetch failures.
	ItemsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharmacrawl_items_skipped_total",
		Help: "The total number of items skipped due to fetch or extraction failures.",
	})
	// ItemsUnmatchedTotal tracks price-attacher items with no canonical match.
	ItemsUnmatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharmacrawl_items_unmatched_total",
		Help: "The total number of items that matched no canonical product.",
	})
	// PricesUpsertedTotal tracks successful price observations.
	PricesUpsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pharmacrawl_prices_upserted_total",
		Help: "The total number of price observations written.",
	})
)
