// Package parser provides HTML parsing and content extraction capabilities.
// It turns one fetched document into the content, SEO, accessibility,
// structured-data and link fields of a page record.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// HTMLParser extracts page fields and links from HTML
type HTMLParser struct {
	baseURL *url.URL // final URL of the page, used to resolve relative references
	seedURL string   // crawl seed, used for the internal/external split
}

// ParseResult contains the parsed HTML data
type ParseResult struct {
	Page Page

	// DiscoveredLinks lists normalized internal links in document order,
	// duplicates included. Page.InternalLinks is the deduplicated view.
	DiscoveredLinks []string
}

// Page holds every field extracted from a successfully fetched HTML document.
// Each field is computed by an independent rule; a failing rule leaves its
// zero value in place.
type Page struct {
	// Identity
	Title           string `json:"title"`
	MetaDescription string `json:"meta_description"`
	MetaKeywords    string `json:"meta_keywords"`
	MetaRobots      string `json:"meta_robots"`

	// Headings
	H1Tags        []string `json:"h1_tags"`
	HeadingIssues [][2]int `json:"heading_issues"`

	// Content metrics
	WordCount        int                `json:"word_count"`
	ReadabilityScore float64            `json:"readability_score"`
	Sentiment        float64            `json:"sentiment"`
	KeywordDensity   map[string]float64 `json:"keyword_density"`
	ReadTimeMinutes  float64            `json:"read_time_minutes"`

	// Structure
	ImageCount      int  `json:"image_count"`
	ScriptCount     int  `json:"script_count"`
	StylesheetCount int  `json:"stylesheet_count"`
	ParagraphCount  int  `json:"paragraph_count"`
	HeadingCount    int  `json:"heading_count"`
	HasViewportMeta bool `json:"has_viewport_meta"`

	// Accessibility
	SemanticElements map[string]bool `json:"semantic_elements"`
	LandmarkCounts   map[string]int  `json:"landmark_counts"`
	ImagesWithoutAlt []string        `json:"images_without_alt"`
	UnlabeledInputs  []string        `json:"unlabeled_inputs"`
	GenericLinkTexts []GenericLink   `json:"generic_link_texts"`
	ARIARoles        map[string]int  `json:"aria_roles"`

	// Structured data
	JSONLD      []any             `json:"json_ld"`
	OpenGraph   map[string]string `json:"open_graph"`
	TwitterCard map[string]string `json:"twitter_card"`
	Canonical   string            `json:"canonical"`
	Hreflang    []Hreflang        `json:"hreflang"`

	MixedContent []string `json:"mixed_content"`

	// Fingerprint & language
	ContentHash      string `json:"content_hash"`
	DetectedLanguage string `json:"detected_language"`
	DeclaredLanguage string `json:"declared_language"`
	LanguageMatch    *bool  `json:"language_match"`

	// Resource hints
	ResourceHints  []ResourceHint `json:"resource_hints"`
	LazyImageCount int            `json:"lazy_image_count"`
	LargestImage   *ImageSize     `json:"largest_image"`

	// Links
	InternalLinks []string `json:"internal_links"`
	ExternalLinks []string `json:"external_links"`
}

// GenericLink is an anchor whose visible text says nothing about its target
type GenericLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Hreflang is an alternate-language link
type Hreflang struct {
	Lang string `json:"lang"`
	Href string `json:"href"`
}

// ResourceHint is a preload/prefetch/preconnect link
type ResourceHint struct {
	Rel  string `json:"rel"`
	As   string `json:"as"`
	Href string `json:"href"`
}

// ImageSize is an image with its declared dimensions
type ImageSize struct {
	Src    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// NewHTMLParser creates a parser for a page fetched from pageURL during a
// crawl seeded at seedURL.
func NewHTMLParser(pageURL, seedURL string) (*HTMLParser, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	return &HTMLParser{
		baseURL: parsedURL,
		seedURL: seedURL,
	}, nil
}

// Parse decodes the body according to contentType and runs every extraction
// rule over the document. It only fails when the document cannot be read at
// all; individual rule failures fall back to empty values.
func (p *HTMLParser) Parse(body []byte, contentType string) (*ParseResult, error) {
	var reader io.Reader = bytes.NewReader(body)
	if decoded, err := charset.NewReader(reader, contentType); err == nil {
		reader = decoded
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return p.extract(doc), nil
}

func (p *HTMLParser) extract(doc *goquery.Document) *ParseResult {
	page := Page{}

	// Identity
	page.Title = rule("title", "", func() string { return extractTitle(doc) })
	metas := rule("meta", metaFields{}, func() metaFields { return extractMeta(doc) })
	page.MetaDescription = metas.description
	page.MetaKeywords = metas.keywords
	page.MetaRobots = metas.robots
	page.HasViewportMeta = metas.viewport

	// Headings
	page.H1Tags = rule("h1_tags", []string{}, func() []string { return extractH1(doc) })
	page.HeadingIssues = rule("heading_issues", [][2]int{}, func() [][2]int { return headingSkips(doc) })

	// Content metrics
	text := rule("content_text", "", func() string { return contentText(doc) })
	page.WordCount = rule("word_count", 0, func() int { return wordCount(text) })
	page.ReadabilityScore = rule("readability", 0.0, func() float64 { return fleschKincaidGrade(text) })
	page.Sentiment = rule("sentiment", 0.0, func() float64 { return polarity(text) })
	page.KeywordDensity = rule("keyword_density", map[string]float64{}, func() map[string]float64 { return keywordDensity(text, 10) })
	page.ReadTimeMinutes = readTime(page.WordCount)

	// Structure
	counts := rule("structure", structureCounts{}, func() structureCounts { return countStructure(doc) })
	page.ImageCount = counts.images
	page.ScriptCount = counts.scripts
	page.StylesheetCount = counts.stylesheets
	page.ParagraphCount = counts.paragraphs
	page.HeadingCount = counts.headings

	// Accessibility
	page.SemanticElements = rule("semantic_elements", map[string]bool{}, func() map[string]bool { return semanticPresence(doc) })
	page.LandmarkCounts = rule("landmark_counts", map[string]int{}, func() map[string]int { return landmarkCounts(doc) })
	page.ImagesWithoutAlt = rule("images_without_alt", []string{}, func() []string { return imagesWithoutAlt(doc) })
	page.UnlabeledInputs = rule("unlabeled_inputs", []string{}, func() []string { return unlabeledInputs(doc) })
	page.GenericLinkTexts = rule("generic_link_texts", []GenericLink{}, func() []GenericLink { return genericLinks(doc) })
	page.ARIARoles = rule("aria_roles", map[string]int{}, func() map[string]int { return ariaRoles(doc) })

	// Structured data
	page.JSONLD = rule("json_ld", []any{}, func() []any { return jsonLD(doc) })
	page.OpenGraph = rule("open_graph", map[string]string{}, func() map[string]string { return metaProperties(doc, "og:") })
	page.TwitterCard = rule("twitter_card", map[string]string{}, func() map[string]string { return metaProperties(doc, "twitter:") })
	page.Canonical = rule("canonical", "", func() string { return p.canonical(doc) })
	page.Hreflang = rule("hreflang", []Hreflang{}, func() []Hreflang { return p.hreflang(doc) })
	page.MixedContent = rule("mixed_content", []string{}, func() []string { return p.mixedContent(doc) })

	// Fingerprint & language
	page.ContentHash = rule("content_hash", "", func() string { return fingerprint(text) })
	page.DetectedLanguage = rule("detected_language", languageUnknown, func() string { return detectLanguage(text) })
	page.DeclaredLanguage = rule("declared_language", "", func() string { return declaredLanguage(doc) })
	page.LanguageMatch = rule("language_match", (*bool)(nil), func() *bool {
		return languageMatch(page.DeclaredLanguage, page.DetectedLanguage)
	})

	// Resource hints
	page.ResourceHints = rule("resource_hints", []ResourceHint{}, func() []ResourceHint { return p.resourceHints(doc) })
	page.LazyImageCount = rule("lazy_images", 0, func() int { return lazyImageCount(doc) })
	page.LargestImage = rule("largest_image", (*ImageSize)(nil), func() *ImageSize { return largestImage(doc) })

	// Links
	links := rule("links", linkSet{internal: []string{}, external: []string{}}, func() linkSet { return p.extractLinks(doc) })
	page.InternalLinks = sortedUnique(links.internal)
	page.ExternalLinks = sortedUnique(links.external)

	return &ParseResult{
		Page:            page,
		DiscoveredLinks: links.internal,
	}
}
