package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var landmarkTags = []string{"main", "nav", "article", "section", "header", "footer", "aside"}

var genericLinkPhrases = map[string]struct{}{
	"click here": {},
	"click":      {},
	"here":       {},
	"more":       {},
	"learn more": {},
	"read more":  {},
	"link":       {},
	"this link":  {},
	"details":    {},
}

var unlabeledInputExempt = map[string]struct{}{
	"hidden": {},
	"submit": {},
	"button": {},
	"reset":  {},
}

func semanticPresence(doc *goquery.Document) map[string]bool {
	present := make(map[string]bool, len(landmarkTags))
	for _, tag := range landmarkTags {
		present[tag] = doc.Find(tag).Length() > 0
	}
	return present
}

func landmarkCounts(doc *goquery.Document) map[string]int {
	counts := make(map[string]int, len(landmarkTags))
	for _, tag := range landmarkTags {
		counts[tag] = doc.Find(tag).Length()
	}
	return counts
}

// imagesWithoutAlt lists the source of each image with a missing or blank alt
func imagesWithoutAlt(doc *goquery.Document) []string {
	missing := []string{}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, ok := s.Attr("alt")
		if ok && strings.TrimSpace(alt) != "" {
			return
		}
		missing = append(missing, imageSource(s))
	})
	return missing
}

// unlabeledInputs lists form controls that have neither a <label for>
// pointing at their id nor an enclosing <label>. Controls without an id
// are reported by name, then by tag.
func unlabeledInputs(doc *goquery.Document) []string {
	labelled := map[string]struct{}{}
	doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
		if target := strings.TrimSpace(s.AttrOr("for", "")); target != "" {
			labelled[target] = struct{}{}
		}
	})

	unlabeled := []string{}
	doc.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		if tag == "input" {
			kind := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
			if _, exempt := unlabeledInputExempt[kind]; exempt {
				return
			}
		}

		id := strings.TrimSpace(s.AttrOr("id", ""))
		if id != "" {
			if _, ok := labelled[id]; ok {
				return
			}
		}
		if s.ParentsFiltered("label").Length() > 0 {
			return
		}

		switch {
		case id != "":
			unlabeled = append(unlabeled, id)
		case strings.TrimSpace(s.AttrOr("name", "")) != "":
			unlabeled = append(unlabeled, strings.TrimSpace(s.AttrOr("name", "")))
		default:
			unlabeled = append(unlabeled, tag)
		}
	})
	return unlabeled
}

func genericLinks(doc *goquery.Document) []GenericLink {
	generic := []GenericLink{}
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		text := visibleText(s.Get(0))
		key := strings.Trim(strings.ToLower(strings.Join(strings.Fields(text), " ")), ".!:…»›> ")
		if _, ok := genericLinkPhrases[key]; !ok {
			return
		}
		generic = append(generic, GenericLink{
			Text: text,
			Href: strings.TrimSpace(s.AttrOr("href", "")),
		})
	})
	return generic
}

func ariaRoles(doc *goquery.Document) map[string]int {
	roles := map[string]int{}
	doc.Find("[role]").Each(func(_ int, s *goquery.Selection) {
		for _, role := range strings.Fields(strings.ToLower(s.AttrOr("role", ""))) {
			roles[role]++
		}
	})
	return roles
}

func imageSource(s *goquery.Selection) string {
	if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
		return src
	}
	return strings.TrimSpace(s.AttrOr("data-src", ""))
}
