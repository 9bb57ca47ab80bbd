package scraper

import (
	"errors"
	"strings"
	"testing"
	"time"

	"catalog-ingest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `<html><body>
<h1>Кровать Наполи, арт. 1234</h1>
<div class="product-price">15 000 руб. <span class="old">20 000 руб.</span></div>
<div class="article">Артикул: NP-160</div>
<div class="product-description">Кровать Наполи с мягким изголовьем и ортопедическим основанием, размер спального места 160 на 200.</div>
<div class="product-gallery">
  <img src="/upload/iblock/abc/napoli-1.jpg">
  <img data-src="/upload/resize_cache/iblock/def/445_320_2/napoli-2.jpg">
  <img src="/local/templates/main/logo.png">
</div>
<div class="characteristics"><table>
  <tr><th>Характеристики</th><th></th></tr>
  <tr><td>Ширина</td><td>160 см</td></tr>
  <tr><td>Длина:</td><td>200 см</td></tr>
  <tr><td>Материал</td><td>ЛДСП</td></tr>
</table></div>
</body></html>`

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor("https://mebel.test/")
	require.NoError(t, err)
	e.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return e
}

func TestNewExtractorRejectsRelativeBase(t *testing.T) {
	_, err := NewExtractor("/furniture")
	assert.Error(t, err)
}

func TestExtractFullPage(t *testing.T) {
	e := newTestExtractor(t)
	c := e.Extract(mustDoc(t, productPage), ProductLink{URL: "https://mebel.test/furniture/napoli/bed/"})

	assert.Equal(t, "Кровать Наполи", c.Name)
	assert.True(t, c.Price.Equal(dec(15000)))
	require.True(t, c.OldPrice.Valid)
	assert.True(t, c.OldPrice.Decimal.Equal(dec(20000)))
	assert.Equal(t, "NP-160", c.SKU)
	assert.True(t, c.DescriptionFound)
	assert.Contains(t, c.Description, "ортопедическим")

	assert.Equal(t, []string{
		"https://mebel.test/upload/iblock/abc/napoli-1.jpg",
		"https://mebel.test/upload/iblock/def/napoli-2.jpg",
	}, c.Images)

	assert.Equal(t, []models.Attribute{
		{Name: "Ширина", Value: "160 см"},
		{Name: "Длина", Value: "200 см"},
		{Name: "Материал", Value: "ЛДСП"},
	}, c.Attributes)
	assert.NoError(t, Validate(c))
}

func TestExtractFallbacks(t *testing.T) {
	e := newTestExtractor(t)
	doc := mustDoc(t, `<html><body>
		<h1>Шкаф Марио</h1>
		<div class="description">Коротко</div>
		<p>Цена: 8 000 руб</p>
		<div class="hero" style="background-image: url('/upload/iblock/x/mario.jpg')"></div>
		<ul><li>Цвет: белый</li><li>Без значения</li></ul>
	</body></html>`)

	c := e.Extract(doc, ProductLink{})

	assert.Equal(t, "Шкаф Марио", c.Name)
	assert.True(t, c.Price.Equal(dec(8000)))
	assert.False(t, c.OldPrice.Valid)
	assert.False(t, c.DescriptionFound)
	assert.Equal(t, "Шкаф Марио - качественная мебель от производителя", c.Description)
	assert.Equal(t, "SKU-1700000000000", c.SKU)
	assert.Equal(t, []string{"https://mebel.test/upload/iblock/x/mario.jpg"}, c.Images)
	assert.Equal(t, []models.Attribute{{Name: "Цвет", Value: "белый"}}, c.Attributes)
}

func TestExtractMissingHeading(t *testing.T) {
	e := newTestExtractor(t)
	c := e.Extract(mustDoc(t, `<html><body><div class="price">100 руб</div></body></html>`), ProductLink{})

	assert.Equal(t, NoName, c.Name)
	assert.ErrorIs(t, Validate(c), ErrInvalidName)
}

func TestExtractDescriptionTruncated(t *testing.T) {
	e := newTestExtractor(t)
	long := strings.Repeat("дуб ", 200)
	c := e.Extract(mustDoc(t, `<html><body><h1>Стол</h1><div class="description">`+long+`</div></body></html>`), ProductLink{})

	assert.True(t, c.DescriptionFound)
	assert.Equal(t, 500, len([]rune(c.Description)))
	assert.True(t, strings.HasSuffix(c.Description, "..."))
}

func TestExtractThumbnailFirst(t *testing.T) {
	e := newTestExtractor(t)
	doc := mustDoc(t, `<html><body><h1>Диван</h1>
		<div class="gallery"><img src="/upload/iblock/b/second.jpg"></div>
	</body></html>`)

	c := e.Extract(doc, ProductLink{Thumbnail: "https://mebel.test/upload/resize_cache/iblock/a/200_200_1/first.jpg"})
	assert.Equal(t, []string{
		"https://mebel.test/upload/iblock/a/first.jpg",
		"https://mebel.test/upload/iblock/b/second.jpg",
	}, c.Images)
}

func TestFirstMatchOrder(t *testing.T) {
	doc := mustDoc(t, `<html><body><p class="a">first</p><p class="b">second</p></body></html>`)

	got, ok := FirstMatch(doc, []Matcher[string]{textOf(".missing"), textOf(".b"), textOf(".a")})
	require.True(t, ok)
	assert.Equal(t, "second", got)

	_, ok = FirstMatch(doc, []Matcher[string]{textOf(".missing")})
	assert.False(t, ok)
}

func TestAttributeHeaderRowsRejected(t *testing.T) {
	doc := mustDoc(t, `<table>
		<tr><td>ЦЕНА</td><td>15000</td></tr>
		<tr><td>Описание товара</td><td>...</td></tr>
		<tr><td>Высота</td><td>90 см</td></tr>
		<tr><td>один столбец</td></tr>
	</table>`)

	attrs, ok := attributeRows("table tr")(doc)
	require.True(t, ok)
	assert.Equal(t, []models.Attribute{{Name: "Высота", Value: "90 см"}}, attrs)
}

func TestValidate(t *testing.T) {
	ok := &models.ProductCandidate{Name: "Кровать Наполи", Price: dec(15000)}
	assert.NoError(t, Validate(ok))

	tests := []struct {
		name string
		c    *models.ProductCandidate
		want error
	}{
		{"empty name", &models.ProductCandidate{Name: "", Price: dec(100)}, ErrInvalidName},
		{"sentinel", &models.ProductCandidate{Name: NoName, Price: dec(100)}, ErrInvalidName},
		{"too short", &models.ProductCandidate{Name: "Ab", Price: dec(100)}, ErrInvalidName},
		{"zero price", &models.ProductCandidate{Name: "Шкаф", Price: dec(0)}, ErrInvalidPrice},
		{"negative price", &models.ProductCandidate{Name: "Шкаф", Price: dec(-5)}, ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.c)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, errors.Is(err, ErrRejected))
		})
	}
}
