package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/gocolly/colly/v2"
)

// CollyFetcher implements the Fetcher interface using colly
type CollyFetcher struct {
	collector *colly.Collector
	logger    *log.Logger
}

// NewCollyFetcher creates a new CollyFetcher instance
func NewCollyFetcher(opts ...Option) *CollyFetcher {
	s := newSettings(opts)

	collectorOpts := []colly.CollectorOption{
		// every topic page is visited once per run, but runs repeat under the scheduler
		colly.AllowURLRevisit(),
	}
	if s.userAgent != "" {
		collectorOpts = append(collectorOpts, colly.UserAgent(s.userAgent))
	}
	c := colly.NewCollector(collectorOpts...)

	// Non-2xx responses are delivered to OnResponse so the status can be reported
	c.ParseHTTPErrorResponse = true
	if s.timeout > 0 {
		c.SetRequestTimeout(s.timeout)
	}

	return &CollyFetcher{
		collector: c,
		logger:    s.logger,
	}
}

// Fetch implements the Fetcher interface
func (cf *CollyFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	// Clone keeps the transport but starts without callbacks from earlier calls
	c := cf.collector.Clone()
	c.Context = ctx

	var resp *colly.Response
	c.OnResponse(func(r *colly.Response) {
		resp = r
	})

	cf.logger.Debug("Fetching page", "url", url)
	if err := c.Visit(url); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if resp == nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("no response received")}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}
	doc.Url = resp.Request.URL

	cf.logger.Debug("Fetched page", "url", url, "bytes", len(resp.Body))
	return doc, nil
}
