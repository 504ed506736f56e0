package crawler

import (
	"encoding/json"
	"time"

	"github.com/masahif/sitescope/internal/parser"
)

// PageRecord is the per-URL outcome of a crawl: either *FullRecord or
// *ErrorRecord.
type PageRecord interface {
	Common() *RecordBase
	isPageRecord()
}

// StatusCode is an HTTP status. Zero means no status was obtained and
// serializes as the string "Error".
type StatusCode int

// MarshalJSON implements json.Marshaler
func (s StatusCode) MarshalJSON() ([]byte, error) {
	if s == 0 {
		return []byte(`"Error"`), nil
	}
	return json.Marshal(int(s))
}

// RecordBase holds the fields shared by both record kinds. In/out degree,
// orphan flag and site-wide data are filled in by Aggregate.
type RecordBase struct {
	URL          string             `json:"url"`
	Depth        int                `json:"depth"`
	StatusCode   StatusCode         `json:"status_code"`
	ResponseTime float64            `json:"response_time"` // seconds
	InDegree     int                `json:"in_degree"`
	OutDegree    int                `json:"out_degree"`
	IsOrphan     bool               `json:"is_orphan"`
	SiteWide     *SitePreflightData `json:"site_wide,omitempty"`
}

// Common returns the shared fields
func (b *RecordBase) Common() *RecordBase { return b }

// FullRecord is a successfully fetched and extracted HTML page
type FullRecord struct {
	RecordBase
	parser.Page

	HTTP               DeliveryHeaders `json:"http"`
	SecurityHeaders    SecurityHeaders `json:"security_headers"`
	RedirectChain      []RedirectHop   `json:"redirect_chain"`
	ContentLengthBytes int64           `json:"content_length_bytes"`
}

func (*FullRecord) isPageRecord() {}

// ErrorRecord is a page that failed or was skipped
type ErrorRecord struct {
	RecordBase

	ErrorType       string           `json:"error_type"`
	Message         string           `json:"error"`
	HTTP            *DeliveryHeaders `json:"http,omitempty"`
	SecurityHeaders *SecurityHeaders `json:"security_headers,omitempty"`
	RedirectChain   []RedirectHop    `json:"redirect_chain,omitempty"`
}

func (*ErrorRecord) isPageRecord() {}

// SitePreflightData is attached to the seed record
type SitePreflightData struct {
	RobotsTxt       string   `json:"robots_txt"`
	Sitemaps        []string `json:"sitemaps"`
	SitemapURLCount int      `json:"sitemap_url_count"`
}

// Edge is a directed internal link between two normalized URLs
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Result is the outcome of one crawl run
type Result struct {
	RunID      string
	Seed       string // normalized
	StartedAt  time.Time
	FinishedAt time.Time
	Pages      map[string]PageRecord
	Order      []string // visit order
	Edges      []Edge
}

// Counts returns the number of full and error records
func (r *Result) Counts() (full, failed, orphans int) {
	for _, rec := range r.Pages {
		switch rec.(type) {
		case *FullRecord:
			full++
		case *ErrorRecord:
			failed++
		}
		if rec.Common().IsOrphan {
			orphans++
		}
	}
	return full, failed, orphans
}

// CrawlStats represents crawling statistics
type CrawlStats struct {
	PagesCrawled int
	PagesQueued  int
	ErrorCount   int
	EdgeCount    int
	StartTime    time.Time
	Duration     time.Duration
}
