package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Matcher extracts one field from a page. ok is false when the strategy found nothing usable.
type Matcher[T any] func(doc *goquery.Document) (T, bool)

// FirstMatch evaluates a ranked cascade and returns the first usable value
func FirstMatch[T any](doc *goquery.Document, cascade []Matcher[T]) (T, bool) {
	for _, m := range cascade {
		if v, ok := m(doc); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// textOf is a matcher for the first element of selector with non-empty text
func textOf(selector string) Matcher[string] {
	return func(doc *goquery.Document) (string, bool) {
		text := cleanText(doc.Find(selector).First().Text())
		return text, text != ""
	}
}

// cleanText collapses runs of whitespace, including NBSP, into single spaces
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int, ellipsis string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	keep := n - len([]rune(ellipsis))
	if keep < 0 {
		keep = 0
	}
	return string(r[:keep]) + ellipsis
}
