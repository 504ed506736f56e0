package crawler

import (
	"context"
)

// Crawler defines the main crawling interface
type Crawler interface {
	Crawl(ctx context.Context, seedURL string, maxPages int) (*Result, error)
	GetStats() CrawlStats
	Close()
}

// Fetcher retrieves pages. *HTTPClient implements it with bounded retry.
type Fetcher interface {
	Get(ctx context.Context, url string) (*HTTPResponse, error)
}

// PageProcessor turns one frontier entry into a page record
type PageProcessor interface {
	Process(ctx context.Context, entry FrontierEntry) *PageResult
}

// PageResult represents the result of processing a single page
type PageResult struct {
	Record PageRecord
	// Links are the normalized internal links in document order, duplicates
	// included. Empty for error records.
	Links []string
}
