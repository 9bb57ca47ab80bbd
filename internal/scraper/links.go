package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ProductLink is a product page found on a category listing
type ProductLink struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

var linkSelectors = []string{
	".item-block a",
	".product-item a",
	".catalog-item a",
	`a[href*="/furniture/"]`,
}

// last path segments naming a category, filter or page rather than a product
var linkDenylist = map[string]bool{
	"krovati": true,
	"divany":  true,
	"shkafy":  true,
	"stoly":   true,
	"stulya":  true,
	"penaly":  true,
	"vitriny": true,
	"filter":  true,
	"all":     true,
	"page":    true,
	"pagen":   true,
	"sort":    true,
}

const thumbnailAncestors = 5

// ProductLinks lists product pages of a category page, de-duplicated, in document order.
// The first selector producing any product link wins.
func (e *Extractor) ProductLinks(doc *goquery.Document) []ProductLink {
	for _, sel := range linkSelectors {
		if links := e.linksIn(doc, sel); len(links) > 0 {
			return links
		}
	}
	return nil
}

func (e *Extractor) linksIn(doc *goquery.Document, selector string) []ProductLink {
	var links []ProductLink
	seen := make(map[string]bool)
	doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs, ok := e.productURL(href)
		if !ok || seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, ProductLink{URL: abs, Thumbnail: e.thumbnailNear(a, abs)})
	})
	return links
}

// productURL accepts same-host /furniture/<collection>/<product>/ links
func (e *Extractor) productURL(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := e.base.ResolveReference(ref)
	if !strings.EqualFold(u.Host, e.base.Host) || u.RawQuery != "" || u.Fragment != "" {
		return "", false
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) < 3 || segments[0] != "furniture" || segments[1] == "all" {
		return "", false
	}
	for _, token := range strings.Split(strings.ToLower(segments[len(segments)-1]), "-") {
		if linkDenylist[token] {
			return "", false
		}
	}
	return u.String(), true
}

// thumbnailNear looks for an image around a, climbing no further than the
// first ancestor that also holds a link to a different product.
func (e *Extractor) thumbnailNear(a *goquery.Selection, productURL string) string {
	scope := a
	for i := 0; i <= thumbnailAncestors && scope.Length() > 0; i++ {
		if i > 0 && e.linksElsewhere(scope, productURL) {
			return ""
		}
		var found string
		scope.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			src := imageSrc(img)
			if src == "" || blockedImage(src) {
				return true
			}
			if abs, ok := e.resolve(src); ok {
				found = abs
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
		scope = scope.Parent()
	}
	return ""
}

func (e *Extractor) linksElsewhere(scope *goquery.Selection, productURL string) bool {
	other := false
	scope.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if abs, ok := e.productURL(href); ok && abs != productURL {
			other = true
			return false
		}
		return true
	})
	return other
}
