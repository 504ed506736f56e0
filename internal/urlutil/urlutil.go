// Package urlutil canonicalizes and classifies URLs for the crawler.
// A normalized URL is the only identity key used for deduplication,
// queueing and graph nodes.
package urlutil

import (
	"net/url"
	"strings"
)

// Normalize strips the fragment and any trailing slashes.
// It works on the raw string so malformed URLs normalize to themselves.
func Normalize(rawURL string) string {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		rawURL = rawURL[:i]
	}
	return strings.TrimRight(rawURL, "/")
}

// IsInternal reports whether rawURL shares the network location (host[:port])
// of base. Scheme and path are ignored. Unparseable input is never internal.
func IsInternal(rawURL, base string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	return u.Host == b.Host
}

// Resolve converts href to an absolute URL relative to base.
func Resolve(base *url.URL, href string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// Host returns the network location of rawURL, or "" when it cannot be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
