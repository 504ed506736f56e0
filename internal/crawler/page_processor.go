package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/masahif/sitescope/internal/parser"
)

// DefaultPageProcessor implements the PageProcessor interface
type DefaultPageProcessor struct {
	fetcher   Fetcher
	seedURL   string
	robots    *PreflightResult // nil unless robots.txt is respected
	userAgent string
}

// NewPageProcessor creates a page processor for a crawl seeded at seedURL.
// A non-nil robots result gates every fetch.
func NewPageProcessor(fetcher Fetcher, seedURL string, robots *PreflightResult, userAgent string) *DefaultPageProcessor {
	return &DefaultPageProcessor{
		fetcher:   fetcher,
		seedURL:   seedURL,
		robots:    robots,
		userAgent: userAgent,
	}
}

// Process fetches and extracts a single page. It never fails: every
// problem is captured as an error record.
func (p *DefaultPageProcessor) Process(ctx context.Context, entry FrontierEntry) (result *PageResult) {
	base := RecordBase{URL: entry.URL, Depth: entry.Depth}

	if p.robots != nil && !p.robots.Allowed(entry.URL, p.userAgent) {
		slog.Info("Skipping URL disallowed by robots.txt", "url", entry.URL)
		return &PageResult{Record: &ErrorRecord{
			RecordBase: base,
			ErrorType:  OutcomeRobotsDisallowed,
			Message:    "disallowed by robots.txt",
		}}
	}

	resp, err := p.fetcher.Get(ctx, entry.URL)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			slog.Warn("Fetch failed", "url", entry.URL, "attempts", fetchErr.Attempts, "error", err)
		} else {
			slog.Warn("Fetch failed", "url", entry.URL, "error", err)
		}
		return &PageResult{Record: &ErrorRecord{
			RecordBase: base,
			ErrorType:  OutcomeFetchFailed,
			Message:    err.Error(),
		}}
	}

	base.StatusCode = StatusCode(resp.StatusCode)
	base.ResponseTime = resp.Elapsed.Seconds()
	delivery := deliveryHeaders(resp.Headers)
	security := securityHeaders(resp.Headers)

	errorRecord := func(kind, message string) *PageResult {
		return &PageResult{Record: &ErrorRecord{
			RecordBase:      base,
			ErrorType:       kind,
			Message:         message,
			HTTP:            &delivery,
			SecurityHeaders: &security,
			RedirectChain:   resp.Redirects,
		}}
	}

	if resp.StatusCode != http.StatusOK {
		slog.Info("Non-200 response", "url", entry.URL, "status", resp.StatusCode)
		return errorRecord(OutcomeFetchFailed, fmt.Sprintf("HTTP %s", resp.Status))
	}
	if !resp.IsHTML() {
		slog.Debug("Skipping non-HTML content", "url", entry.URL, "content_type", resp.ContentType)
		return errorRecord(OutcomeNotHTML, fmt.Sprintf("content type %q is not text/html", resp.ContentType))
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Page extraction panicked", "url", entry.URL, "panic", r)
			result = errorRecord(OutcomeProcessingError, fmt.Sprintf("extraction failed: %v", r))
		}
	}()

	htmlParser, err := parser.NewHTMLParser(resp.FinalURL, p.seedURL)
	if err != nil {
		return errorRecord(OutcomeProcessingError, err.Error())
	}
	parsed, err := htmlParser.Parse(resp.Body, resp.ContentType)
	if err != nil {
		slog.Warn("HTML parsing failed", "url", entry.URL, "error", err)
		return errorRecord(OutcomeProcessingError, err.Error())
	}

	slog.Debug("Found links", "url", entry.URL,
		"internal", len(parsed.Page.InternalLinks),
		"external", len(parsed.Page.ExternalLinks))

	return &PageResult{
		Record: &FullRecord{
			RecordBase:         base,
			Page:               parsed.Page,
			HTTP:               delivery,
			SecurityHeaders:    security,
			RedirectChain:      resp.Redirects,
			ContentLengthBytes: resp.BodySize,
		},
		Links: parsed.DiscoveredLinks,
	}
}
