package parser

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/language"
)

type metaFields struct {
	description string
	keywords    string
	robots      string
	viewport    bool
}

func extractTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// extractMeta reads the first matching <meta name=...> of each kind.
// Names are matched case-insensitively.
func extractMeta(doc *goquery.Document) metaFields {
	var m metaFields
	seen := map[string]bool{}
	doc.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		name := strings.ToLower(strings.TrimSpace(s.AttrOr("name", "")))
		if seen[name] {
			return
		}
		content := strings.TrimSpace(s.AttrOr("content", ""))
		switch name {
		case "description":
			m.description = content
		case "keywords":
			m.keywords = content
		case "robots":
			m.robots = content
		case "viewport":
			m.viewport = true
		default:
			return
		}
		seen[name] = true
	})
	return m
}

func extractH1(doc *goquery.Document) []string {
	h1s := []string{}
	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		h1s = append(h1s, visibleText(s.Get(0)))
	})
	return h1s
}

// headingSkips walks h1..h6 in document order and records every pair
// (previous, current) where the level jumps down by more than one.
func headingSkips(doc *goquery.Document) [][2]int {
	issues := [][2]int{}
	prev := 0
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		level := int(goquery.NodeName(s)[1] - '0')
		if prev > 0 && level > prev+1 {
			issues = append(issues, [2]int{prev, level})
		}
		prev = level
	})
	return issues
}

// jsonLD decodes every application/ld+json block, skipping invalid ones
func jsonLD(doc *goquery.Document) []any {
	items := []any{}
	doc.Find("script[type]").Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("type", "")), "application/ld+json") {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return
		}
		items = append(items, v)
	})
	return items
}

// metaProperties collects <meta property|name> entries whose key starts
// with prefix. The first value for a key wins.
func metaProperties(doc *goquery.Document, prefix string) map[string]string {
	props := map[string]string{}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := strings.TrimSpace(s.AttrOr("property", ""))
		if key == "" {
			key = strings.TrimSpace(s.AttrOr("name", ""))
		}
		key = strings.ToLower(key)
		if !strings.HasPrefix(key, prefix) {
			return
		}
		if _, ok := props[key]; ok {
			return
		}
		props[key] = strings.TrimSpace(s.AttrOr("content", ""))
	})
	return props
}

func (p *HTMLParser) canonical(doc *goquery.Document) string {
	href := ""
	doc.Find("link[rel][href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !hasRel(s, "canonical") {
			return true
		}
		href = p.absolute(s.AttrOr("href", ""))
		return false
	})
	return href
}

func (p *HTMLParser) hreflang(doc *goquery.Document) []Hreflang {
	alts := []Hreflang{}
	doc.Find("link[hreflang][href]").Each(func(_ int, s *goquery.Selection) {
		if !hasRel(s, "alternate") {
			return
		}
		alts = append(alts, Hreflang{
			Lang: strings.TrimSpace(s.AttrOr("hreflang", "")),
			Href: p.absolute(s.AttrOr("href", "")),
		})
	})
	return alts
}

func declaredLanguage(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("html").First().AttrOr("lang", ""))
}

// languageMatch compares the base language of the declared tag with the
// detected language. It is nil when either side is unknown.
func languageMatch(declared, detected string) *bool {
	if declared == "" || detected == "" || detected == languageUnknown {
		return nil
	}
	match := baseLanguage(declared) == detected
	return &match
}

func baseLanguage(tag string) string {
	if t, err := language.Parse(tag); err == nil {
		base, _ := t.Base()
		return base.String()
	}
	tag = strings.ToLower(tag)
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

// hasRel reports whether the space-separated rel attribute contains want
func hasRel(s *goquery.Selection, want string) bool {
	for _, rel := range strings.Fields(s.AttrOr("rel", "")) {
		if strings.EqualFold(rel, want) {
			return true
		}
	}
	return false
}
