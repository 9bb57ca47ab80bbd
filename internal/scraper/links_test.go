package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductLinksFiltering(t *testing.T) {
	e := newTestExtractor(t)
	doc := mustDoc(t, `<html><body>
		<div class="catalog">
		  <div class="item-block">
		    <div class="pic"><img src="/upload/resize_cache/iblock/a/445_320_2/napoli.jpg"></div>
		    <a href="/furniture/napoli/krovat-napoli-160/">Наполи</a>
		  </div>
		  <div class="item-block"><a href="/furniture/napoli/krovat-napoli-160/">дубль</a></div>
		  <div class="item-block"><a href="/furniture/all/krovat-x/">all</a></div>
		  <div class="item-block"><a href="/furniture/napoli/krovati/">категория</a></div>
		  <div class="item-block"><a href="/furniture/napoli/filter-white/">фильтр</a></div>
		  <div class="item-block"><a href="/furniture/napoli/?PAGEN_1=2">страница</a></div>
		  <div class="item-block"><a href="/furniture/mario/shkaf-mario-2d/?color=white">query</a></div>
		  <div class="item-block"><a href="https://other.test/furniture/a/b/">чужой</a></div>
		  <div class="item-block"><a href="/furniture/napoli/">коллекция</a></div>
		  <div class="item-block"><a href="/furniture/mario/shkaf-mario-2d/">Марио</a></div>
		</div>
	</body></html>`)

	links := e.ProductLinks(doc)
	require.Len(t, links, 2)
	assert.Equal(t, "https://mebel.test/furniture/napoli/krovat-napoli-160/", links[0].URL)
	assert.Equal(t, "https://mebel.test/upload/resize_cache/iblock/a/445_320_2/napoli.jpg", links[0].Thumbnail)
	assert.Equal(t, "https://mebel.test/furniture/mario/shkaf-mario-2d/", links[1].URL)
	assert.Empty(t, links[1].Thumbnail)
}

func TestProductLinksThumbnailStaysInsideCard(t *testing.T) {
	e := newTestExtractor(t)
	doc := mustDoc(t, `<html><body>
		<div class="catalog">
		  <div class="item-block">
		    <img src="/upload/iblock/a/napoli.jpg">
		    <a href="/furniture/napoli/krovat-napoli-160/">Наполи</a>
		  </div>
		  <div class="item-block">
		    <div class="title"><a href="/furniture/mario/shkaf-mario-2d/">Марио</a></div>
		  </div>
		</div>
	</body></html>`)

	links := e.ProductLinks(doc)
	require.Len(t, links, 2)
	assert.Equal(t, "https://mebel.test/upload/iblock/a/napoli.jpg", links[0].Thumbnail)
	assert.Empty(t, links[1].Thumbnail)
}

func TestProductLinksFallsBackToHrefPattern(t *testing.T) {
	e := newTestExtractor(t)
	doc := mustDoc(t, `<html><body>
		<nav><a href="/about/">О нас</a></nav>
		<a href="https://mebel.test/furniture/lima/stol-lima/">Стол Лима</a>
	</body></html>`)

	links := e.ProductLinks(doc)
	require.Len(t, links, 1)
	assert.Equal(t, "https://mebel.test/furniture/lima/stol-lima/", links[0].URL)
	assert.Empty(t, links[0].Thumbnail)
}

func TestProductLinksNone(t *testing.T) {
	e := newTestExtractor(t)
	assert.Empty(t, e.ProductLinks(mustDoc(t, `<html><body><p>Пусто</p></body></html>`)))
}
