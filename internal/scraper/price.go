package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// A price token is a number, optionally grouped by spaces, directly followed by a rouble marker.
var priceTokenRe = regexp.MustCompile(`((?:\d{1,3}(?:[ \x{00A0}\x{202F}]\d{3})+|\d+)(?:[.,]\d{1,2})?)[\s\x{00A0}\x{202F}]*(?:(?i:руб)|₽)`)

// PricePair is the outcome of price extraction. OldPrice is unset when only one token was found.
type PricePair struct {
	Price    decimal.Decimal
	OldPrice decimal.NullDecimal
}

var priceSelectors = []string{
	".page2-price-",
	".price-current",
	".current-price",
	".product-price",
	".price",
	`[itemprop="price"]`,
	`[class*="price"]`,
}

// PriceTokens returns every positive price-like number in text, in document order
func PriceTokens(text string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, m := range priceTokenRe.FindAllStringSubmatch(text, -1) {
		raw := strings.Map(func(r rune) rune {
			switch r {
			case ' ', '\u00a0', '\u202f':
				return -1
			case ',':
				return '.'
			}
			return r
		}, m[1])
		d, err := decimal.NewFromString(raw)
		if err != nil || !d.IsPositive() {
			continue
		}
		out = append(out, d)
	}
	return out
}

// PairFromTokens maps tokens to price/old price. With two or more tokens the
// minimum is the price and the maximum the old price, whatever the count.
func PairFromTokens(tokens []decimal.Decimal) (PricePair, bool) {
	switch len(tokens) {
	case 0:
		return PricePair{}, false
	case 1:
		return PricePair{Price: tokens[0]}, true
	}
	return PricePair{
		Price:    decimal.Min(tokens[0], tokens[1:]...),
		OldPrice: decimal.NullDecimal{Decimal: decimal.Max(tokens[0], tokens[1:]...), Valid: true},
	}, true
}

// priceIn matches the first element of selector whose own text carries price tokens
func priceIn(selector string) Matcher[PricePair] {
	return func(doc *goquery.Document) (PricePair, bool) {
		var pair PricePair
		var found bool
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			pair, found = PairFromTokens(PriceTokens(s.Text()))
			return !found
		})
		return pair, found
	}
}

// priceFromPageText is the last resort: the cheapest price mentioned anywhere on the page
func priceFromPageText(doc *goquery.Document) (PricePair, bool) {
	tokens := PriceTokens(doc.Find("body").Text())
	if len(tokens) == 0 {
		return PricePair{}, false
	}
	return PricePair{Price: decimal.Min(tokens[0], tokens[1:]...)}, true
}

func priceCascade() []Matcher[PricePair] {
	cascade := make([]Matcher[PricePair], 0, len(priceSelectors)+1)
	for _, sel := range priceSelectors {
		cascade = append(cascade, priceIn(sel))
	}
	return append(cascade, priceFromPageText)
}
