// Package fetch implements the rate-limited page fetcher using gocolly.
package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/pharma-price-crawler/internal/metrics"
)

// Kind classifies a fetch failure.
type Kind string

// Failure kinds. Transport covers DNS, connection and timeout errors;
// status covers any non-2xx response.
const (
	KindTransport Kind = "transport-error"
	KindStatus    Kind = "status-error"
)

// Error is the typed failure returned by the client.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DelayRange holds a randomized jitter interval.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Pick draws one delay from the range.
func (r DelayRange) Pick() time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rand.Int63n(int64(r.Max-r.Min)))
}

// Config controls client behavior. All values come from the configuration
// surface; the client has no hidden defaults beyond a zero-safe timeout.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Delay     DelayRange
}

// Client performs single-shot GETs with a pre-request jitter sleep. It does
// not retry: list-page callers treat a failure as end of that category's
// pagination, and detail-page callers route failures through the error log
// for a later replay pass.
type Client struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		cfg:           cfg,
		logger:        logger,
		baseCollector: c,
	}
}

// Fetch sleeps a jittered delay, then GETs url and returns the body.
// Failures are returned as *Error with the transport/status kind set.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.sleep(ctx); err != nil {
		return nil, err
	}

	var (
		body     []byte
		status   int
		fetchErr error
	)

	collector := c.baseCollector.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(c.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	metrics.RequestsTotal.Inc()

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		metrics.RequestErrorsTotal.Inc()
		return nil, &Error{Kind: KindTransport, URL: url, Err: ctx.Err()}
	case visitErr := <-done:
		if fetchErr == nil && visitErr != nil {
			fetchErr = visitErr
		}
	}

	if fetchErr != nil {
		metrics.RequestErrorsTotal.Inc()
		if status > 0 && (status < 200 || status >= 300) {
			c.logger.Warn("Status error", zap.String("url", url), zap.Int("status_code", status))
			return nil, &Error{Kind: KindStatus, URL: url, StatusCode: status, Err: fetchErr}
		}
		c.logger.Warn("Transport error", zap.String("url", url), zap.Error(fetchErr))
		return nil, &Error{Kind: KindTransport, URL: url, Err: fetchErr}
	}
	return body, nil
}

// sleep waits the jittered pre-request delay, honoring ctx cancellation.
func (c *Client) sleep(ctx context.Context) error {
	delay := c.cfg.Delay.Pick()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &Error{Kind: KindTransport, Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
