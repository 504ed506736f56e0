package crawler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/temoto/robotstxt"
)

// maxRobotsRunes bounds the robots.txt text kept on the seed record
const maxRobotsRunes = 10000

// Preflight inspects robots.txt and /sitemap.xml once per crawl. Every
// failure degrades to empty data.
type Preflight struct {
	client  *HTTPClient
	timeout time.Duration
}

// PreflightResult holds the site-wide data and the parsed robots rules
type PreflightResult struct {
	Data   SitePreflightData
	robots *robotstxt.RobotsData
}

// NewPreflight creates a preflight inspector using client for its probes
func NewPreflight(client *HTTPClient, timeout time.Duration) *Preflight {
	return &Preflight{client: client, timeout: timeout}
}

// Run probes the origin of baseURL
func (p *Preflight) Run(ctx context.Context, baseURL string) *PreflightResult {
	result := &PreflightResult{Data: SitePreflightData{Sitemaps: []string{}}}

	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		slog.Debug("Skipping preflight for unparseable seed", "url", baseURL)
		return result
	}
	origin := u.Scheme + "://" + u.Host

	sitemaps := map[string]struct{}{}

	robotsURL := origin + "/robots.txt"
	if resp, err := p.client.Probe(ctx, robotsURL, p.timeout); err != nil {
		slog.Debug("robots.txt unavailable", "url", robotsURL, "error", err)
	} else if resp.StatusCode == http.StatusOK && strings.Contains(strings.ToLower(resp.ContentType), "text") {
		result.Data.RobotsTxt = truncateRunes(string(resp.Body), maxRobotsRunes)
		if robots, err := robotstxt.FromBytes(resp.Body); err == nil {
			result.robots = robots
			for _, sm := range robots.Sitemaps {
				if sm = strings.TrimSpace(sm); sm != "" {
					sitemaps[sm] = struct{}{}
				}
			}
		} else {
			slog.Debug("robots.txt did not parse", "url", robotsURL, "error", err)
		}
	}

	sitemapURL := origin + "/sitemap.xml"
	if resp, err := p.client.Probe(ctx, sitemapURL, p.timeout); err != nil {
		slog.Debug("sitemap.xml unavailable", "url", sitemapURL, "error", err)
	} else if resp.StatusCode == http.StatusOK && strings.Contains(strings.ToLower(resp.ContentType), "xml") {
		sitemaps[sitemapURL] = struct{}{}
		result.Data.SitemapURLCount = countSitemapLocs(resp.Body)
	}

	for sm := range sitemaps {
		result.Data.Sitemaps = append(result.Data.Sitemaps, sm)
	}
	sort.Strings(result.Data.Sitemaps)

	slog.Info("Preflight complete",
		"origin", origin,
		"robots_txt", result.Data.RobotsTxt != "",
		"sitemaps", len(result.Data.Sitemaps),
		"sitemap_urls", result.Data.SitemapURLCount)

	return result
}

// Allowed reports whether robots.txt lets agent fetch rawURL.
// Without robots rules everything is allowed.
func (r *PreflightResult) Allowed(rawURL, agent string) bool {
	if r == nil || r.robots == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return r.robots.TestAgent(path, agent)
}

// CrawlDelay returns the Crawl-delay robots.txt sets for agent, if any
func (r *PreflightResult) CrawlDelay(agent string) time.Duration {
	if r == nil || r.robots == nil {
		return 0
	}
	if group := r.robots.FindGroup(agent); group != nil {
		return group.CrawlDelay
	}
	return 0
}

// countSitemapLocs counts <loc> entries of a sitemap or sitemap index
func countSitemapLocs(body []byte) int {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return 0
	}
	return len(xmlquery.Find(doc, "//*[local-name()='loc']"))
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
