package parser

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"golang.org/x/net/html"
)

const (
	languageEnglish = "en"
	languageUnknown = "unknown"

	// Minimum share of stop words among alphabetic tokens for English text.
	englishStopWordRatio = 0.02

	wordsPerMinute = 200
)

// contentSelector lists the elements whose text makes up the page content
const contentSelector = "p, h1, h2, h3, h4, h5, h6, li, span, article"

// contentText concatenates the visible text of the content elements in
// document order, separated by single spaces.
func contentText(doc *goquery.Document) string {
	var parts []string
	doc.Find(contentSelector).Each(func(_ int, s *goquery.Selection) {
		if t := visibleText(s.Get(0)); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

// visibleText joins the trimmed text nodes below n with single spaces,
// skipping script-like subtrees.
func visibleText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			if t := strings.TrimSpace(node.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			switch node.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func readTime(words int) float64 {
	return round(float64(words)/wordsPerMinute, 2)
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// stripPunctuation removes ASCII punctuation, leaving letters, digits and
// whitespace in place.
func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= unicode.MaxASCII && (unicode.IsPunct(r) || unicode.IsSymbol(r)) {
			return -1
		}
		return r
	}, s)
}

func isAlpha(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// keywordDensity returns the top most frequent content words with their
// share of all content words. Ties keep first-appearance order.
func keywordDensity(text string, top int) map[string]float64 {
	tokens := strings.Fields(strings.ToLower(stripPunctuation(text)))

	counts := make(map[string]int)
	var order []string
	total := 0
	for _, tok := range tokens {
		if !isAlpha(tok) || len([]rune(tok)) <= 1 || isStopWord(tok) {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
		total++
	}

	density := make(map[string]float64)
	if total == 0 {
		return density
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > top {
		order = order[:top]
	}
	for _, word := range order {
		density[word] = round(float64(counts[word])/float64(total), 4)
	}
	return density
}

// detectLanguage reports "en" when enough alphabetic tokens are English
// stop words.
func detectLanguage(text string) string {
	alpha, stop := 0, 0
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.TrimFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) && r != '\'' })
		if !isAlpha(strings.ReplaceAll(tok, "'", "")) {
			continue
		}
		alpha++
		if isStopWord(tok) {
			stop++
		}
	}
	if alpha == 0 {
		return languageUnknown
	}
	if float64(stop)/float64(alpha) >= englishStopWordRatio {
		return languageEnglish
	}
	return languageUnknown
}

// fingerprint is the MD5 of the lower-cased, whitespace-normalized text
func fingerprint(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if normalized == "" {
		return ""
	}
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// fleschKincaidGrade computes the Flesch-Kincaid grade level
func fleschKincaidGrade(text string) float64 {
	words := 0
	syllables := 0
	for _, tok := range strings.Fields(text) {
		word := strings.TrimFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if word == "" {
			continue
		}
		words++
		syllables += countSyllables(word)
	}
	if words == 0 {
		return 0
	}

	sentenceCount := countSentences(text)
	grade := 0.39*float64(words)/float64(sentenceCount) + 11.8*float64(syllables)/float64(words) - 15.59
	return round(grade, 2)
}

// sentenceTokenizer is the English punkt model, which keeps abbreviations
// such as "e.g." and "Dr." from ending a sentence.
var sentenceTokenizer = sync.OnceValues(func() (*sentences.DefaultSentenceTokenizer, error) {
	return english.NewSentenceTokenizer(nil)
})

// splitSentences returns the trimmed sentences of text that contain at
// least one letter or digit.
func splitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	tokenizer, err := sentenceTokenizer()
	if err != nil {
		return []string{strings.TrimSpace(text)}
	}

	var out []string
	for _, s := range tokenizer.Tokenize(text) {
		sentence := strings.TrimSpace(s.Text)
		if strings.IndexFunc(sentence, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			out = append(out, sentence)
		}
	}
	return out
}

func countSentences(text string) int {
	if n := len(splitSentences(text)); n > 0 {
		return n
	}
	return 1
}

// countSyllables approximates English syllables by counting vowel groups
func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
