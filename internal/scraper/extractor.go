package scraper

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"catalog-ingest/internal/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// NoName is returned when no heading could be found
	NoName = "Без названия"

	minDescriptionRunes = 50
	maxDescriptionRunes = 500
	maxAttributeName    = 100
)

var descriptionSelectors = []string{
	".product-description",
	".description",
	`[itemprop="description"]`,
	".item-description",
	".detail-text",
	".product-detail-text",
	".product-info",
	".tab-content",
	"#description",
}

var skuSelectors = []string{".article", ".sku", ".artikul", `[itemprop="sku"]`}

var attributeRowSelectors = []string{
	".characteristics table tr",
	".table-style tr",
	".characteristics tr",
	".props-list tr",
	".properties table tr",
	".char-table tr",
	".product-attributes tr",
	".specifications tr",
	".params tr",
	"table tr",
}

// header rows of spec tables contain one of these
var headerKeywords = []string{"характеристик", "описание", "цена"}

var lowerRU = cases.Lower(language.Russian)

// Extractor turns product pages into candidates. It is stateless apart from the site base.
type Extractor struct {
	base *url.URL
	now  func() time.Time

	name        []Matcher[string]
	price       []Matcher[PricePair]
	description []Matcher[string]
	sku         []Matcher[string]
	attributes  []Matcher[[]models.Attribute]
}

// NewExtractor creates an extractor resolving relative links against baseURL
func NewExtractor(baseURL string) (*Extractor, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	e := &Extractor{
		base:  base,
		now:   time.Now,
		name:  []Matcher[string]{headingName},
		price: priceCascade(),
	}
	for _, sel := range descriptionSelectors {
		e.description = append(e.description, descriptionIn(sel))
	}
	for _, sel := range skuSelectors {
		e.sku = append(e.sku, skuIn(sel))
	}
	for _, sel := range attributeRowSelectors {
		e.attributes = append(e.attributes, attributeRows(sel))
	}
	e.attributes = append(e.attributes, attributeListItems)
	return e, nil
}

// Base returns the site origin the extractor resolves against
func (e *Extractor) Base() *url.URL {
	u := *e.base
	return &u
}

// PageURL resolves a site-relative path such as a category path
func (e *Extractor) PageURL(path string) string {
	if abs, ok := e.resolve(path); ok {
		return abs
	}
	return e.base.String() + path
}

// Extract builds a candidate from a product page. Missing fields fall back to
// placeholders; the caller decides acceptance with Validate.
func (e *Extractor) Extract(doc *goquery.Document, link ProductLink) *models.ProductCandidate {
	c := &models.ProductCandidate{Name: NoName}

	if name, ok := FirstMatch(doc, e.name); ok {
		c.Name = name
	}
	if pair, ok := FirstMatch(doc, e.price); ok {
		c.Price = pair.Price
		c.OldPrice = pair.OldPrice
	}

	if desc, ok := FirstMatch(doc, e.description); ok {
		c.Description = truncateRunes(desc, maxDescriptionRunes, "...")
		c.DescriptionFound = true
	} else {
		c.Description = c.Name + " - качественная мебель от производителя"
	}

	if sku, ok := FirstMatch(doc, e.sku); ok {
		c.SKU = sku
	} else {
		c.SKU = fmt.Sprintf("SKU-%d", e.now().UnixMilli())
	}

	c.Images = e.imageURLs(doc, link.Thumbnail)
	if attrs, ok := FirstMatch(doc, e.attributes); ok {
		c.Attributes = attrs
	}
	return c
}

// headingName keeps the part of the first h1 before a comma, which usually precedes an article number
func headingName(doc *goquery.Document) (string, bool) {
	name := cleanText(doc.Find("h1").First().Text())
	if i := strings.Index(name, ","); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return name, name != ""
}

func descriptionIn(selector string) Matcher[string] {
	return func(doc *goquery.Document) (string, bool) {
		text := cleanText(doc.Find(selector).First().Text())
		return text, utf8.RuneCountInString(text) > minDescriptionRunes
	}
}

func skuIn(selector string) Matcher[string] {
	return func(doc *goquery.Document) (string, bool) {
		text, ok := textOf(selector)(doc)
		if !ok {
			return "", false
		}
		// "Артикул: 12345"
		if i := strings.Index(text, ":"); i >= 0 {
			text = strings.TrimSpace(text[i+1:])
		}
		return text, text != ""
	}
}

func isHeaderName(name string) bool {
	lower := lowerRU.String(name)
	for _, kw := range headerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func acceptAttribute(name, value string) bool {
	return name != "" && value != "" &&
		utf8.RuneCountInString(name) < maxAttributeName &&
		!isHeaderName(name)
}

func attributeRows(selector string) Matcher[[]models.Attribute] {
	return func(doc *goquery.Document) ([]models.Attribute, bool) {
		var attrs []models.Attribute
		doc.Find(selector).Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td, th")
			if cells.Length() < 2 {
				return
			}
			name := strings.TrimSuffix(cleanText(cells.Eq(0).Text()), ":")
			value := cleanText(cells.Eq(1).Text())
			if acceptAttribute(name, value) {
				attrs = append(attrs, models.Attribute{Name: name, Value: value})
			}
		})
		return attrs, len(attrs) > 0
	}
}

// attributeListItems parses "name: value" bullet lists
func attributeListItems(doc *goquery.Document) ([]models.Attribute, bool) {
	var attrs []models.Attribute
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		name, value, found := strings.Cut(cleanText(li.Text()), ":")
		if !found {
			return
		}
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if acceptAttribute(name, value) {
			attrs = append(attrs, models.Attribute{Name: name, Value: value})
		}
	})
	return attrs, len(attrs) > 0
}
