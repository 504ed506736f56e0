package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/masahif/sitescope/internal/urlutil"
)

type linkSet struct {
	internal []string // document order, duplicates kept
	external []string
}

// skippedHrefPrefixes never point at crawlable documents
var skippedHrefPrefixes = []string{"#", "mailto:", "tel:", "javascript:"}

// extractLinks resolves every anchor against the page URL, normalizes it and
// splits it by whether it shares the seed's host.
func (p *HTMLParser) extractLinks(doc *goquery.Document) linkSet {
	links := linkSet{internal: []string{}, external: []string{}}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || hasSkippedPrefix(href) {
			return
		}

		abs, err := urlutil.Resolve(p.baseURL, href)
		if err != nil {
			return
		}
		normalized := urlutil.Normalize(abs)
		if normalized == "" {
			return
		}

		if urlutil.IsInternal(normalized, p.seedURL) {
			links.internal = append(links.internal, normalized)
		} else {
			links.external = append(links.external, normalized)
		}
	})

	return links
}

func hasSkippedPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, prefix := range skippedHrefPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// absolute resolves a resource reference against the page URL, returning
// the trimmed input unchanged when it cannot be parsed.
func (p *HTMLParser) absolute(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	abs, err := urlutil.Resolve(p.baseURL, ref)
	if err != nil {
		return ref
	}
	return abs
}
