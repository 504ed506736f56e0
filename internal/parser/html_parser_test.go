package parser

import (
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func parse(t *testing.T, pageURL, htmlContent string) *ParseResult {
	t.Helper()
	parser, err := NewHTMLParser(pageURL, "https://example.com")
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	result, err := parser.Parse([]byte(htmlContent), "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("Failed to parse HTML: %v", err)
	}
	return result
}

func TestHTMLParser(t *testing.T) {
	htmlContent := `
<!DOCTYPE html>
<html>
<head>
	<title>  Test Page Title
	</title>
	<meta name="Description" content=" This is a test description ">
	<meta name="keywords" content="go, crawler">
	<meta name="robots" content="index,follow">
	<meta name="viewport" content="width=device-width">
</head>
<body>
	<h1>Test <em>Page</em></h1>
	<p>Some content</p>
	<a href="/relative-link">Relative Link</a>
	<a href="https://example.com/absolute-link/">Absolute Link</a>
	<a href="https://external.com/page" rel="nofollow">External Link</a>
	<a href="#anchor">Anchor Link</a>
	<a href="javascript:void(0)">JavaScript Link</a>
	<a href="mailto:team@example.com">Mail</a>
	<a href="tel:+100">Call</a>
	<a href="">Empty</a>
	<a href="/page#frag">Fragment</a>
	<a href=" /relative-link ">Again</a>
</body>
</html>
`
	result := parse(t, "https://example.com/test-page", htmlContent)
	page := result.Page

	if page.Title != "Test Page Title" {
		t.Errorf("Expected title 'Test Page Title', got '%s'", page.Title)
	}
	if page.MetaDescription != "This is a test description" {
		t.Errorf("Expected description 'This is a test description', got '%s'", page.MetaDescription)
	}
	if page.MetaKeywords != "go, crawler" {
		t.Errorf("Expected keywords 'go, crawler', got '%s'", page.MetaKeywords)
	}
	if page.MetaRobots != "index,follow" {
		t.Errorf("Expected robots 'index,follow', got '%s'", page.MetaRobots)
	}
	if !page.HasViewportMeta {
		t.Error("Expected viewport meta to be detected")
	}
	if !reflect.DeepEqual(page.H1Tags, []string{"Test Page"}) {
		t.Errorf("H1Tags = %v", page.H1Tags)
	}

	wantInternal := []string{
		"https://example.com/absolute-link",
		"https://example.com/page",
		"https://example.com/relative-link",
	}
	if !reflect.DeepEqual(page.InternalLinks, wantInternal) {
		t.Errorf("InternalLinks = %v, want %v", page.InternalLinks, wantInternal)
	}
	if !reflect.DeepEqual(page.ExternalLinks, []string{"https://external.com/page"}) {
		t.Errorf("ExternalLinks = %v", page.ExternalLinks)
	}

	wantDiscovered := []string{
		"https://example.com/relative-link",
		"https://example.com/absolute-link",
		"https://example.com/page",
		"https://example.com/relative-link",
	}
	if !reflect.DeepEqual(result.DiscoveredLinks, wantDiscovered) {
		t.Errorf("DiscoveredLinks = %v, want %v", result.DiscoveredLinks, wantDiscovered)
	}
}

func TestFragmentOnlyAnchorIgnored(t *testing.T) {
	result := parse(t, "https://example.com/", `<html><body><a href="#section">Jump</a></body></html>`)

	if len(result.Page.InternalLinks) != 0 || len(result.Page.ExternalLinks) != 0 {
		t.Errorf("fragment anchor leaked into links: %v %v", result.Page.InternalLinks, result.Page.ExternalLinks)
	}
	if len(result.DiscoveredLinks) != 0 {
		t.Errorf("fragment anchor discovered: %v", result.DiscoveredLinks)
	}
}

func TestSchemeOnlyHrefsIgnored(t *testing.T) {
	result := parse(t, "https://example.com/", `<html><body>
		<a href="JavaScript:alert(1)">Run</a>
		<a href=" javascript:void(0)">Noop</a>
		<a href="MAILTO:team@example.com">Mail</a>
		<a href="tel:+100">Call</a>
	</body></html>`)

	if len(result.Page.InternalLinks) != 0 || len(result.Page.ExternalLinks) != 0 {
		t.Errorf("scheme-only hrefs leaked into links: %v %v", result.Page.InternalLinks, result.Page.ExternalLinks)
	}
	if len(result.DiscoveredLinks) != 0 {
		t.Errorf("scheme-only hrefs discovered: %v", result.DiscoveredLinks)
	}
}

func TestHeadingIssues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want [][2]int
	}{
		{"h1 to h4", "<h1>A</h1><h4>B</h4>", [][2]int{{1, 4}}},
		{"sequential", "<h1>A</h1><h2>B</h2><h3>C</h3>", [][2]int{}},
		{"going back up is fine", "<h1>A</h1><h2>B</h2><h3>C</h3><h1>D</h1>", [][2]int{}},
		{"multiple skips", "<h2>A</h2><h5>B</h5><h1>C</h1><h3>D</h3>", [][2]int{{2, 5}, {1, 3}}},
		{"no headings", "<p>text</p>", [][2]int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parse(t, "https://example.com/", "<html><body>"+tt.body+"</body></html>")
			if !reflect.DeepEqual(result.Page.HeadingIssues, tt.want) {
				t.Errorf("HeadingIssues = %v, want %v", result.Page.HeadingIssues, tt.want)
			}
		})
	}
}

func TestContentMetrics(t *testing.T) {
	result := parse(t, "https://example.com/", `<html><body>
		<p>Go go gophers.</p>
		<div>ignored div text</div>
		<span>Gophers love Go!</span>
		<h2>Headline</h2>
	</body></html>`)
	page := result.Page

	if page.WordCount != 7 {
		t.Errorf("WordCount = %d, want 7", page.WordCount)
	}
	if page.HeadingCount != 1 {
		t.Errorf("HeadingCount = %d, want 1", page.HeadingCount)
	}
	if page.ParagraphCount != 1 {
		t.Errorf("ParagraphCount = %d, want 1", page.ParagraphCount)
	}

	want := map[string]float64{"go": 0.4286, "gophers": 0.2857, "love": 0.1429, "headline": 0.1429}
	if !reflect.DeepEqual(page.KeywordDensity, want) {
		t.Errorf("KeywordDensity = %v, want %v", page.KeywordDensity, want)
	}
	if page.ContentHash == "" {
		t.Error("expected content hash")
	}
}

func TestKeywordDensityIdempotent(t *testing.T) {
	htmlContent := `<html><body><article><p>Crawlers follow links. Links connect pages and pages hold content.</p></article></body></html>`

	first := parse(t, "https://example.com/", htmlContent)
	second := parse(t, "https://example.com/", htmlContent)

	if !reflect.DeepEqual(first.Page.KeywordDensity, second.Page.KeywordDensity) {
		t.Errorf("density differs between runs: %v vs %v", first.Page.KeywordDensity, second.Page.KeywordDensity)
	}
	if first.Page.ContentHash != second.Page.ContentHash {
		t.Error("content hash differs between runs")
	}
}

func TestKeywordDensityTopTen(t *testing.T) {
	words := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliet", "kilo", "lima"}
	density := keywordDensity(strings.Join(words, " ")+" alpha", 10)

	if len(density) != 10 {
		t.Fatalf("expected 10 keywords, got %d: %v", len(density), density)
	}
	if density["alpha"] != round(2.0/13.0, 4) {
		t.Errorf("alpha density = %v", density["alpha"])
	}
	if _, ok := density["lima"]; ok {
		t.Error("ties should keep first-appearance order, lima should be cut")
	}
}

func TestEmptyContentDefaults(t *testing.T) {
	result := parse(t, "https://example.com/", `<html><body><div>only a div</div></body></html>`)
	page := result.Page

	if page.WordCount != 0 || page.ReadabilityScore != 0 || page.Sentiment != 0 || page.ReadTimeMinutes != 0 {
		t.Errorf("expected zero metrics, got %+v", page)
	}
	if len(page.KeywordDensity) != 0 {
		t.Errorf("expected empty keyword density, got %v", page.KeywordDensity)
	}
	if page.ContentHash != "" {
		t.Errorf("expected empty content hash, got %q", page.ContentHash)
	}
	if page.DetectedLanguage != "unknown" {
		t.Errorf("DetectedLanguage = %q, want unknown", page.DetectedLanguage)
	}
	if page.LanguageMatch != nil {
		t.Errorf("LanguageMatch = %v, want nil", *page.LanguageMatch)
	}
}

func TestAccessibility(t *testing.T) {
	result := parse(t, "https://example.com/", `<html><body>
		<header></header><nav></nav>
		<main><section></section><section></section></main>
		<img src="/a.png"><img data-src="/b.png" alt=""><img src="/c.png" alt="ok">
		<label for="email">Email</label><input id="email" type="text">
		<label>Name <input id="name"></label>
		<input id="phone"><input name="q"><select></select>
		<input type="hidden" id="h"><input type="SUBMIT">
		<a href="/x">Click here</a><a href="/y">Pricing</a><a href="/z"> Read  More </a>
		<div role="button"></div><div role="Button navigation"></div>
	</body></html>`)
	page := result.Page

	if !page.SemanticElements["main"] || !page.SemanticElements["nav"] || page.SemanticElements["aside"] {
		t.Errorf("SemanticElements = %v", page.SemanticElements)
	}
	if page.LandmarkCounts["section"] != 2 || page.LandmarkCounts["footer"] != 0 {
		t.Errorf("LandmarkCounts = %v", page.LandmarkCounts)
	}
	if !reflect.DeepEqual(page.ImagesWithoutAlt, []string{"/a.png", "/b.png"}) {
		t.Errorf("ImagesWithoutAlt = %v", page.ImagesWithoutAlt)
	}
	if !reflect.DeepEqual(page.UnlabeledInputs, []string{"phone", "q", "select"}) {
		t.Errorf("UnlabeledInputs = %v", page.UnlabeledInputs)
	}
	if len(page.GenericLinkTexts) != 2 || page.GenericLinkTexts[0].Href != "/x" {
		t.Errorf("GenericLinkTexts = %v", page.GenericLinkTexts)
	}
	if page.ARIARoles["button"] != 2 || page.ARIARoles["navigation"] != 1 {
		t.Errorf("ARIARoles = %v", page.ARIARoles)
	}
	if page.ImageCount != 3 {
		t.Errorf("ImageCount = %d, want 3", page.ImageCount)
	}
}

func TestStructuredData(t *testing.T) {
	result := parse(t, "https://example.com/blog/post", `<html><head>
		<script type="application/ld+json">{"@type": "Article", "headline": "Hi"}</script>
		<script type="application/ld+json">{not json</script>
		<meta property="og:title" content="OG Title">
		<meta property="og:type" content="article">
		<meta name="twitter:card" content="summary">
		<link rel="canonical" href="/blog/post">
		<link rel="alternate" hreflang="de" href="/de/blog/post">
		<link rel="stylesheet" href="/site.css">
	</head><body></body></html>`)
	page := result.Page

	if len(page.JSONLD) != 1 {
		t.Fatalf("expected one JSON-LD block, got %d", len(page.JSONLD))
	}
	if obj, ok := page.JSONLD[0].(map[string]any); !ok || obj["@type"] != "Article" {
		t.Errorf("JSONLD[0] = %v", page.JSONLD[0])
	}
	if page.OpenGraph["og:title"] != "OG Title" || page.OpenGraph["og:type"] != "article" {
		t.Errorf("OpenGraph = %v", page.OpenGraph)
	}
	if page.TwitterCard["twitter:card"] != "summary" {
		t.Errorf("TwitterCard = %v", page.TwitterCard)
	}
	if page.Canonical != "https://example.com/blog/post" {
		t.Errorf("Canonical = %q", page.Canonical)
	}
	want := []Hreflang{{Lang: "de", Href: "https://example.com/de/blog/post"}}
	if !reflect.DeepEqual(page.Hreflang, want) {
		t.Errorf("Hreflang = %v", page.Hreflang)
	}
	if page.StylesheetCount != 1 {
		t.Errorf("StylesheetCount = %d, want 1", page.StylesheetCount)
	}
}

func TestMixedContent(t *testing.T) {
	body := `<html><head>
		<link rel="stylesheet" href="http://cdn.example.com/a.css">
		<script src="http://cdn.example.com/a.js"></script>
	</head><body>
		<img src="http://cdn.example.com/a.png">
		<img src="http://cdn.example.com/a.png">
		<img src="https://cdn.example.com/safe.png">
		<img src="/relative.png">
	</body></html>`

	secure := parse(t, "https://example.com/", body)
	want := []string{
		"http://cdn.example.com/a.css",
		"http://cdn.example.com/a.js",
		"http://cdn.example.com/a.png",
	}
	if !reflect.DeepEqual(secure.Page.MixedContent, want) {
		t.Errorf("MixedContent = %v, want %v", secure.Page.MixedContent, want)
	}

	plain := parse(t, "http://example.com/", body)
	if len(plain.Page.MixedContent) != 0 {
		t.Errorf("http pages have no mixed content, got %v", plain.Page.MixedContent)
	}
}

func TestLanguage(t *testing.T) {
	english := `<p>This is a page about the crawler and it is written in plain English for the reader.</p>`

	tests := []struct {
		name     string
		lang     string
		body     string
		detected string
		match    *bool
	}{
		{"declared matches", "en-US", english, "en", boolPtr(true)},
		{"declared differs", "fr", english, "en", boolPtr(false)},
		{"no declaration", "", english, "en", nil},
		{"undetectable text", "en", "<p>12345 67890</p>", "unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			htmlTag := "<html>"
			if tt.lang != "" {
				htmlTag = `<html lang="` + tt.lang + `">`
			}
			page := parse(t, "https://example.com/", htmlTag+"<body>"+tt.body+"</body></html>").Page

			if page.DetectedLanguage != tt.detected {
				t.Errorf("DetectedLanguage = %q, want %q", page.DetectedLanguage, tt.detected)
			}
			if page.DeclaredLanguage != tt.lang {
				t.Errorf("DeclaredLanguage = %q, want %q", page.DeclaredLanguage, tt.lang)
			}
			switch {
			case tt.match == nil && page.LanguageMatch != nil:
				t.Errorf("LanguageMatch = %v, want nil", *page.LanguageMatch)
			case tt.match != nil && (page.LanguageMatch == nil || *page.LanguageMatch != *tt.match):
				t.Errorf("LanguageMatch = %v, want %v", page.LanguageMatch, *tt.match)
			}
		})
	}
}

func TestResourceHints(t *testing.T) {
	page := parse(t, "https://example.com/", `<html><head>
		<link rel="preload" as="font" href="/f.woff2">
		<link rel="preconnect" href="https://cdn.example.com">
		<link rel="icon" href="/favicon.ico">
	</head><body>
		<img src="/lazy.png" loading="LAZY">
		<img data-lazy-src="/deferred.png">
		<img src="/small.png" width="100" height="50">
		<img src="/big.png" width="300px" height="200">
		<img src="/same.png" width="200" height="300">
	</body></html>`).Page

	wantHints := []ResourceHint{
		{Rel: "preload", As: "font", Href: "https://example.com/f.woff2"},
		{Rel: "preconnect", As: "", Href: "https://cdn.example.com"},
	}
	if !reflect.DeepEqual(page.ResourceHints, wantHints) {
		t.Errorf("ResourceHints = %v", page.ResourceHints)
	}
	if page.LazyImageCount != 2 {
		t.Errorf("LazyImageCount = %d, want 2", page.LazyImageCount)
	}
	want := &ImageSize{Src: "/big.png", Width: 300, Height: 200}
	if !reflect.DeepEqual(page.LargestImage, want) {
		t.Errorf("LargestImage = %+v, want %+v", page.LargestImage, want)
	}
}

func TestLargestImageClampsDimensions(t *testing.T) {
	page := parse(t, "https://example.com/", `<html><body>
		<img src="/normal.png" width="800" height="600">
		<img src="/absurd.png" width="4294967296" height="4294967296">
		<img src="/overflow.png" width="99999999999999999999" height="10">
		<img src="/negative.png" width="-5" height="10">
	</body></html>`).Page

	want := &ImageSize{Src: "/absurd.png", Width: maxImageDimension, Height: maxImageDimension}
	if !reflect.DeepEqual(page.LargestImage, want) {
		t.Errorf("LargestImage = %+v, want %+v", page.LargestImage, want)
	}

	tests := map[string]int{
		"640":                   640,
		" 120px ":               120,
		"2000000":               maxImageDimension,
		"99999999999999999999":  maxImageDimension,
		"-3":                    -3,
		"-99999999999999999999": 0,
		"auto":                  0,
	}
	for in, want := range tests {
		if got := dimension(in); got != want {
			t.Errorf("dimension(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestReadTime(t *testing.T) {
	page := parse(t, "https://example.com/", "<p>"+strings.Repeat("word ", 450)+"</p>").Page

	if page.WordCount != 450 {
		t.Errorf("WordCount = %d, want 450", page.WordCount)
	}
	if page.ReadTimeMinutes != 2.25 {
		t.Errorf("ReadTimeMinutes = %v, want 2.25", page.ReadTimeMinutes)
	}
}

func TestCharsetDecoding(t *testing.T) {
	parser, err := NewHTMLParser("https://example.com/", "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	body := []byte("<html><head><title>Caf\xe9</title></head></html>")

	result, err := parser.Parse(body, "text/html; charset=iso-8859-1")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if result.Page.Title != "Café" {
		t.Errorf("Title = %q, want Café", result.Page.Title)
	}
}

func TestRuleRecoversFromPanic(t *testing.T) {
	got := rule("explodes", 7, func() int { panic("boom") })
	if got != 7 {
		t.Errorf("rule returned %d, want fallback 7", got)
	}
	if got := rule("fine", 7, func() int { return 3 }); got != 3 {
		t.Errorf("rule returned %d, want 3", got)
	}
}

func TestSentiment(t *testing.T) {
	tests := []struct {
		name string
		text string
		sign int
	}{
		{"positive", "This is a great and wonderful product", 1},
		{"negative", "This is a terrible and awful experience", -1},
		{"negated", "The service was not good", -1},
		{"broad lexicon positive", "The staff were delightful and the food was delicious.", 1},
		{"broad lexicon negative", "An atrocious, miserable, dreadful experience.", -1},
		{"neutral", "The page lists opening hours", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := polarity(tt.text)
			if got < -1 || got > 1 {
				t.Fatalf("polarity %v out of range", got)
			}
			switch {
			case tt.sign > 0 && got <= 0, tt.sign < 0 && got >= 0, tt.sign == 0 && got != 0:
				t.Errorf("polarity(%q) = %v, want sign %d", tt.text, got, tt.sign)
			}
		})
	}
}

func TestSentimentAveragesSentences(t *testing.T) {
	pleased := polarity("The food was delicious.")
	upset := polarity("The room was miserable.")
	mixed := polarity("The food was delicious. The room was miserable.")

	if pleased <= 0 || upset >= 0 {
		t.Fatalf("single sentences scored %v and %v", pleased, upset)
	}
	if mixed <= upset || mixed >= pleased {
		t.Errorf("mixed text scored %v, want between %v and %v", mixed, upset, pleased)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "   ", 0},
		{"no terminator", "Opening hours and directions", 1},
		{"three sentences", "The cat sat. The dog ran! Did the bird fly?", 3},
		{"abbreviation", "Bring a tool, e.g. a hammer, to the shed. Then rest.", 2},
		{"punctuation only", "... !!", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if len(got) != tt.want {
				t.Errorf("splitSentences(%q) = %q, want %d sentences", tt.text, got, tt.want)
			}
		})
	}

	if got := countSentences(""); got != 1 {
		t.Errorf("countSentences(\"\") = %d, want 1", got)
	}
}

func TestCountSyllables(t *testing.T) {
	tests := map[string]int{
		"cat":       1,
		"make":      1,
		"table":     2,
		"beautiful": 3,
		"a":         1,
	}
	for word, want := range tests {
		if got := countSyllables(word); got != want {
			t.Errorf("countSyllables(%q) = %d, want %d", word, got, want)
		}
	}
}

func TestFleschKincaidGrade(t *testing.T) {
	if got := fleschKincaidGrade(""); got != 0 {
		t.Errorf("empty text grade = %v, want 0", got)
	}
	simple := fleschKincaidGrade("The cat sat. The dog ran.")
	hard := fleschKincaidGrade("Comprehensive institutional documentation necessitates considerable organizational responsibility.")
	if simple >= hard {
		t.Errorf("expected simple text (%v) to grade below complex text (%v)", simple, hard)
	}
}

func boolPtr(b bool) *bool { return &b }
