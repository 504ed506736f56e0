package parser

import (
	"errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type structureCounts struct {
	images      int
	scripts     int
	stylesheets int
	paragraphs  int
	headings    int
}

func countStructure(doc *goquery.Document) structureCounts {
	c := structureCounts{
		images:     doc.Find("img").Length(),
		scripts:    doc.Find("script").Length(),
		paragraphs: doc.Find("p").Length(),
		headings:   doc.Find("h2, h3, h4, h5, h6").Length(),
	}
	doc.Find("link[rel]").Each(func(_ int, s *goquery.Selection) {
		if hasRel(s, "stylesheet") {
			c.stylesheets++
		}
	})
	return c
}

// mixedContentSources maps tags to the attribute holding their resource URL
var mixedContentSources = []struct{ tag, attr string }{
	{"img", "src"},
	{"script", "src"},
	{"link", "href"},
	{"iframe", "src"},
	{"video", "src"},
	{"source", "src"},
}

// mixedContent lists plain-http resources referenced by an https page
func (p *HTMLParser) mixedContent(doc *goquery.Document) []string {
	if !strings.EqualFold(p.baseURL.Scheme, "https") {
		return []string{}
	}
	var insecure []string
	for _, src := range mixedContentSources {
		doc.Find(src.tag + "[" + src.attr + "]").Each(func(_ int, s *goquery.Selection) {
			abs := p.absolute(s.AttrOr(src.attr, ""))
			if strings.HasPrefix(strings.ToLower(abs), "http://") {
				insecure = append(insecure, abs)
			}
		})
	}
	return sortedUnique(insecure)
}

var hintRels = []string{"preload", "prefetch", "preconnect"}

func (p *HTMLParser) resourceHints(doc *goquery.Document) []ResourceHint {
	hints := []ResourceHint{}
	doc.Find("link[rel]").Each(func(_ int, s *goquery.Selection) {
		for _, rel := range hintRels {
			if !hasRel(s, rel) {
				continue
			}
			hints = append(hints, ResourceHint{
				Rel:  rel,
				As:   strings.TrimSpace(s.AttrOr("as", "")),
				Href: p.absolute(s.AttrOr("href", "")),
			})
		}
	})
	return hints
}

func lazyImageCount(doc *goquery.Document) int {
	n := 0
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if strings.EqualFold(strings.TrimSpace(s.AttrOr("loading", "")), "lazy") {
			n++
			return
		}
		for _, attr := range s.Get(0).Attr {
			if attr.Key == "data-src" || strings.HasPrefix(attr.Key, "data-lazy") {
				n++
				return
			}
		}
	})
	return n
}

// largestImage picks the image with the greatest declared width×height.
// The first one wins on ties; images without both dimensions are ignored.
func largestImage(doc *goquery.Document) *ImageSize {
	var best *ImageSize
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		w := dimension(s.AttrOr("width", ""))
		h := dimension(s.AttrOr("height", ""))
		if w <= 0 || h <= 0 {
			return
		}
		if best != nil && w*h <= best.Width*best.Height {
			return
		}
		best = &ImageSize{Src: imageSource(s), Width: w, Height: h}
	})
	return best
}

// maxImageDimension bounds a declared size so width×height cannot overflow
const maxImageDimension = 1_000_000

func dimension(v string) int {
	v = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(v)), "px")
	n, err := strconv.Atoi(v)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(v, "-") {
			return maxImageDimension
		}
		return 0
	}
	return min(n, maxImageDimension)
}
