package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var imageSelectors = []string{
	".product-gallery img",
	".thumbnails img",
	".bx-pager img",
	"[data-fancybox] img",
	".item-slider img",
	".slides img",
	".product-images img",
	".gallery img",
	".product-photos img",
	".main-image img",
	".product-main img",
	".item-image img",
	".photo img",
	`img[src*="product"]`,
	`img[src*="furniture"]`,
	`img[src*="mebel"]`,
	`img[src*="image"]`,
	`img[src*="photo"]`,
	`img[src*="iblock"]`,
}

var imageSrcAttrs = []string{"src", "data-src", "data-lazy", "data-original"}

var imageBlocklist = []string{"no-photo", "placeholder", "logo", "icon", "banner"}

var (
	// resize_cache/iblock/abc/445_320_2/file.jpg -> iblock/abc/file.jpg
	resizeCacheRe     = regexp.MustCompile(`/resize_cache/(iblock/[^/]+)/[^/]+/`)
	backgroundImageRe = regexp.MustCompile(`background-image:\s*url\(['"]?([^'")]+)['"]?\)`)
)

func blockedImage(src string) bool {
	lower := strings.ToLower(src)
	for _, marker := range imageBlocklist {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// FullSizeImage rewrites a Bitrix thumbnail path to the original upload
func FullSizeImage(src string) string {
	return resizeCacheRe.ReplaceAllString(src, "/$1/")
}

// resolve makes ref absolute against the site base. Non-http results are dropped.
func (e *Extractor) resolve(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	abs := e.base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

func imageSrc(s *goquery.Selection) string {
	for _, attr := range imageSrcAttrs {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// imageURLs collects candidate images in cascade order. The listing thumbnail,
// when it points at an upload, goes first.
func (e *Extractor) imageURLs(doc *goquery.Document, thumbnail string) []string {
	var images []string
	seen := make(map[string]bool)
	add := func(src string) {
		if src == "" || blockedImage(src) {
			return
		}
		abs, ok := e.resolve(src)
		if !ok {
			return
		}
		abs = FullSizeImage(abs)
		if seen[abs] {
			return
		}
		seen[abs] = true
		images = append(images, abs)
	}

	if strings.Contains(thumbnail, "/upload/") {
		add(thumbnail)
	}
	for _, sel := range imageSelectors {
		doc.Find(sel).Each(func(_ int, img *goquery.Selection) {
			add(imageSrc(img))
		})
	}

	if len(images) == 0 {
		doc.Find(`[style*="background-image"]`).Each(func(_ int, s *goquery.Selection) {
			style, _ := s.Attr("style")
			if m := backgroundImageRe.FindStringSubmatch(style); m != nil {
				add(m[1])
			}
		})
	}
	return images
}
