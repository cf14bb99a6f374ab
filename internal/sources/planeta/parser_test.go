package planeta

import (
	"bytes"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	require.NoError(t, err)
	return doc
}

func TestExtractCategoriesFlatMenu(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<nav class="catalog-menu">
  <a class="catalog-menu__link" href="/catalog/pain/">Обезболивающие</a>
  <a class="catalog-menu__link" href="/catalog/vitamins/">Витамины</a>
  <a class="catalog-menu__link" href="">Пустая</a>
</nav>
</body></html>`

	p := New("https://planetazdorovo.ru")
	targets := p.ExtractCategories(docFrom(t, html))
	require.Len(t, targets, 2)
	require.Equal(t, "https://planetazdorovo.ru/catalog/pain/", targets[0].URL)
	require.Equal(t, []string{"Обезболивающие"}, targets[0].Breadcrumbs)
}

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<a class="product-card__link" href="/catalog/pain/nurofen-forte/">Нурофен Форте</a>
<div class="catalog-item"><a class="catalog-item__title" href="/catalog/pain/paracetamol/">Парацетамол</a></div>
</body></html>`

	p := New("https://planetazdorovo.ru")
	links := p.ExtractLinks(docFrom(t, html))
	require.Equal(t, []string{
		"https://planetazdorovo.ru/catalog/pain/nurofen-forte/",
		"https://planetazdorovo.ru/catalog/pain/paracetamol/",
	}, links)
}

func TestNextPageArrowOnly(t *testing.T) {
	t.Parallel()

	p := New("https://planetazdorovo.ru")

	withArrow := `<html><body><a class="pagination__next" href="/catalog/pain/?page=2">→</a></body></html>`
	require.Equal(t,
		"https://planetazdorovo.ru/catalog/pain/?page=2",
		p.NextPage(docFrom(t, withArrow), "https://planetazdorovo.ru/catalog/pain/", 1),
	)

	// No arrow means the listing is finished; this parser never constructs
	// page URLs.
	withoutArrow := `<html><body><a class="pagination__item" href="/catalog/pain/?page=2">2</a></body></html>`
	require.Empty(t, p.NextPage(docFrom(t, withoutArrow), "https://planetazdorovo.ru/catalog/pain/", 1))
}

func TestExtractDetailVisiblePrice(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<h1 class="product-title">Нурофен Форте 400мг таб. №12</h1>
<img class="product-image" src="/images/nurofen.jpg">
<div class="product-price"><span class="price">214,50 ₽</span></div>
</body></html>`

	p := New("https://planetazdorovo.ru")
	detail := p.ExtractDetail(docFrom(t, html), []byte(html))
	require.Equal(t, "Нурофен Форте 400мг таб. №12", detail.Title)
	require.Equal(t, "https://planetazdorovo.ru/images/nurofen.jpg", detail.ImageURL)
	require.Equal(t, 214.50, detail.Price)
}

func TestExtractDetailThousandsPrice(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<h1 class="product-title">Витамины</h1>
<div class="product-price"><span class="price">2 150 ₽</span></div>
</body></html>`

	p := New("https://planetazdorovo.ru")
	detail := p.ExtractDetail(docFrom(t, html), []byte(html))
	require.Equal(t, float64(2150), detail.Price)
}

func TestExtractDetailMetadataFallback(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<h1 class="product-title">Парацетамол 500мг</h1>
<meta itemprop="price" content="54.50">
</body></html>`

	p := New("https://planetazdorovo.ru")
	detail := p.ExtractDetail(docFrom(t, html), []byte(html))
	require.Equal(t, 54.50, detail.Price)
}

func TestExtractDetailNoPrice(t *testing.T) {
	t.Parallel()

	html := `<html><body><h1 class="product-title">Товар</h1></body></html>`
	p := New("https://planetazdorovo.ru")
	require.Zero(t, p.ExtractDetail(docFrom(t, html), []byte(html)).Price)
}
