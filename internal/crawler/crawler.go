// Package crawler implements the site crawl: fetching with bounded retry,
// per-page extraction, the shared frontier and link graph, and the post-pass
// that derives graph metrics for every record.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/masahif/sitescope/internal/config"
	"github.com/masahif/sitescope/internal/urlutil"
)

const defaultStatsInterval = 10 * time.Second

// DefaultCrawler implements the Crawler interface
type DefaultCrawler struct {
	config        *config.CrawlConfig
	httpClient    *HTTPClient
	preflight     *Preflight
	metrics       *Metrics
	statsInterval time.Duration

	// Per-run state, replaced by each Crawl call
	mu        sync.Mutex
	frontier  *Frontier
	graph     *Graph
	startTime time.Time

	errorCount atomic.Int64
}

// Option customizes a DefaultCrawler
type Option func(*DefaultCrawler)

// WithMetrics makes the crawler report to m instead of unregistered collectors
func WithMetrics(m *Metrics) Option {
	return func(c *DefaultCrawler) { c.metrics = m }
}

// WithStatsInterval changes how often progress is logged
func WithStatsInterval(d time.Duration) Option {
	return func(c *DefaultCrawler) { c.statsInterval = d }
}

// NewCrawler creates a new crawler instance
func NewCrawler(cfg *config.CrawlConfig, opts ...Option) (*DefaultCrawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crawl config: %w", err)
	}

	c := &DefaultCrawler{
		config:        cfg,
		statsInterval: defaultStatsInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}

	c.httpClient = NewHTTPClient(ClientOptions{
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.RequestTimeout,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Retry:        cfg.Retry,
		RequestDelay: cfg.RequestDelay,
		Metrics:      c.metrics,
	})
	c.preflight = NewPreflight(c.httpClient, cfg.PreflightTimeout)

	return c, nil
}

// Crawl traverses the site breadth-first from seedURL until the frontier
// empties, maxPages pages have been visited, or ctx is cancelled. Per-page
// failures become error records; a cancelled crawl still returns the pages
// recorded so far with graph metrics applied.
func (c *DefaultCrawler) Crawl(ctx context.Context, seedURL string, maxPages int) (*Result, error) {
	if maxPages <= 0 {
		return nil, config.ErrInvalidLimit
	}

	seed := urlutil.Normalize(seedURL)
	result := &Result{
		RunID:     uuid.NewString(),
		Seed:      seed,
		StartedAt: time.Now().UTC(),
		Pages:     make(map[string]PageRecord),
	}
	logger := slog.With("run_id", result.RunID)
	logger.Info("Starting crawler", "seed", seed, "limit", maxPages, "concurrency", c.config.Concurrency)

	site := c.preflight.Run(ctx, seedURL)

	var robots *PreflightResult
	if c.config.RespectRobots {
		robots = site
		if delay := site.CrawlDelay(c.config.UserAgent); delay > 0 {
			c.httpClient.limiter.SetHostDelay(urlutil.Host(seed), delay)
		}
	}
	processor := NewPageProcessor(c.httpClient, seed, robots, c.config.UserAgent)

	frontier := NewFrontier(maxPages)
	graph := NewGraph()
	c.mu.Lock()
	c.frontier, c.graph, c.startTime = frontier, graph, time.Now()
	c.mu.Unlock()
	c.errorCount.Store(0)

	frontier.Offer(seed, 0)
	stopOnCancel := context.AfterFunc(ctx, frontier.Stop)
	defer stopOnCancel()

	var pagesMu sync.Mutex
	record := func(url string, rec PageRecord) {
		pagesMu.Lock()
		result.Pages[url] = rec
		pagesMu.Unlock()
	}

	reporterDone := make(chan struct{})
	go c.statsReporter(logger, reporterDone)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.config.Concurrency; i++ {
		id := i
		g.Go(func() error {
			c.worker(gctx, id, logger, frontier, graph, processor, record)
			return nil
		})
	}
	_ = g.Wait()
	close(reporterDone)

	Aggregate(result.Pages, graph, seed, site.Data)
	result.Order = frontier.Visited()
	result.Edges = graph.Edges()
	result.FinishedAt = time.Now().UTC()

	full, failed, orphans := result.Counts()
	logger.Info("Crawling completed",
		"pages", len(result.Pages),
		"full", full,
		"errors", failed,
		"orphans", orphans,
		"edges", len(result.Edges),
		"duration", result.FinishedAt.Sub(result.StartedAt),
		"cancelled", ctx.Err() != nil)

	return result, nil
}

// worker drains the frontier until it halts
func (c *DefaultCrawler) worker(ctx context.Context, id int, logger *slog.Logger, frontier *Frontier, graph *Graph, processor PageProcessor, record func(string, PageRecord)) {
	logger.Debug("Worker started", "worker_id", id)
	defer logger.Debug("Worker stopped", "worker_id", id)

	for {
		entry, ok := frontier.Next()
		if !ok {
			return
		}

		res := processor.Process(ctx, entry)
		for _, link := range res.Links {
			graph.AddEdge(entry.URL, link)
			frontier.Offer(link, entry.Depth+1)
		}
		record(entry.URL, res.Record)
		frontier.Done()

		_, pending := frontier.Counts()
		c.metrics.FrontierPending.Set(float64(pending))
		c.logProcessingResult(logger, id, res)
	}
}

func (c *DefaultCrawler) logProcessingResult(logger *slog.Logger, id int, res *PageResult) {
	base := res.Record.Common()
	switch rec := res.Record.(type) {
	case *FullRecord:
		c.metrics.Pages.WithLabelValues(OutcomeFull).Inc()
		logger.Info("Worker processed URL", "worker_id", id, "url", base.URL, "depth", base.Depth,
			"status", int(base.StatusCode), "links", len(rec.InternalLinks))
	case *ErrorRecord:
		c.errorCount.Add(1)
		c.metrics.Pages.WithLabelValues(rec.ErrorType).Inc()
		logger.Info("Worker processed URL (failed)", "worker_id", id, "url", base.URL, "depth", base.Depth,
			"status", int(base.StatusCode), "error_type", rec.ErrorType)
	}
}

func (c *DefaultCrawler) statsReporter(logger *slog.Logger, done <-chan struct{}) {
	ticker := time.NewTicker(c.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			stats := c.GetStats()
			logger.Info("Crawling stats",
				"visited", stats.PagesCrawled,
				"pending", stats.PagesQueued,
				"errors", stats.ErrorCount,
				"edges", stats.EdgeCount,
				"duration", stats.Duration)
		}
	}
}

// GetStats returns statistics for the current or last crawl
func (c *DefaultCrawler) GetStats() CrawlStats {
	c.mu.Lock()
	frontier, graph, start := c.frontier, c.graph, c.startTime
	c.mu.Unlock()

	stats := CrawlStats{
		ErrorCount: int(c.errorCount.Load()),
		StartTime:  start,
	}
	if !start.IsZero() {
		stats.Duration = time.Since(start)
	}
	if frontier != nil {
		stats.PagesCrawled, stats.PagesQueued = frontier.Counts()
	}
	if graph != nil {
		stats.EdgeCount = graph.EdgeCount()
	}
	return stats
}

// Close releases idle connections
func (c *DefaultCrawler) Close() {
	c.httpClient.Close()
}

var _ Crawler = (*DefaultCrawler)(nil)
