// Package planeta implements the SiteParser capability for planetazdorovo.ru,
// the price-attaching source.
package planeta

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/pharma-price-crawler/internal/catalog"
	"github.com/JakeFAU/pharma-price-crawler/internal/extract"
)

// Parser holds the site's base URL for resolving relative links.
type Parser struct {
	baseURL string
}

// New constructs a Parser.
func New(baseURL string) *Parser {
	return &Parser{baseURL: strings.TrimRight(baseURL, "/")}
}

// ExtractCategories returns the catalog menu leaves. This source's menu is a
// flat list of category links; every entry is its own leaf.
func (p *Parser) ExtractCategories(doc *goquery.Document) []catalog.Target {
	var targets []catalog.Target
	doc.Find("nav.catalog-menu a.catalog-menu__link").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Text())
		href, _ := s.Attr("href")
		if name == "" || href == "" {
			return
		}
		targets = append(targets, catalog.Target{
			URL:         p.absolute(href),
			Breadcrumbs: []string{name},
		})
	})
	return targets
}

// ExtractLinks returns the product links on one list page.
func (p *Parser) ExtractLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find("a.product-card__link, div.catalog-item a.catalog-item__title").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			links = append(links, p.absolute(href))
		}
	})
	return links
}

// NextPage follows the explicit next arrow only; this site signals the end
// of pagination by omitting it.
func (p *Parser) NextPage(doc *goquery.Document, _ string, _ int) string {
	if href, ok := doc.Find("a.pagination__next").First().Attr("href"); ok && href != "" {
		return p.absolute(href)
	}
	return ""
}

var digitRun = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// ExtractDetail parses one product page. The visible price node is the
// primary encoding here; structured metadata is the fallback.
func (p *Parser) ExtractDetail(doc *goquery.Document, raw []byte) catalog.Detail {
	title := strings.TrimSpace(doc.Find("h1.product-title").First().Text())

	price := visiblePrice(doc)
	if price <= 0 {
		price = extract.FindPrice(doc, raw)
	}

	var imageURL string
	if src, ok := doc.Find("img.product-image").First().Attr("src"); ok {
		imageURL = p.absolute(src)
	}

	return catalog.Detail{
		Title:    title,
		ImageURL: imageURL,
		Price:    price,
	}
}

func visiblePrice(doc *goquery.Document) float64 {
	text := doc.Find("div.product-price span.price").First().Text()
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, " ", "")
	m := digitRun.FindString(text)
	if m == "" {
		return 0
	}
	price, err := extract.ParseDecimal(m)
	if err != nil {
		return 0
	}
	return price
}

func (p *Parser) absolute(href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(p.baseURL + "/")
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
