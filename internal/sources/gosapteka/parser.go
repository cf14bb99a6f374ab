// Package gosapteka implements the SiteParser capability for gosapteka18.ru,
// the catalog-building source.
package gosapteka

import (
	"fmt"
	"net/url"
	"strconv"
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

// ExtractCategories walks the nested catalog menu recursively. A menu item
// without a recognized child container is a leaf; only leaves are returned,
// because list pages exist only for leaf categories on this site.
func (p *Parser) ExtractCategories(doc *goquery.Document) []catalog.Target {
	container := doc.Find("div.menu-catalog").First()
	if container.Length() == 0 {
		return nil
	}
	return p.walkMenu(container, nil)
}

func (p *Parser) walkMenu(container *goquery.Selection, breadcrumbs []string) []catalog.Target {
	var targets []catalog.Target

	items := container.ChildrenFiltered("div.menu-catalog__item, div.menu-catalog__sub-item")
	items.Each(func(_ int, item *goquery.Selection) {
		link := item.ChildrenFiltered("a.menu-catalog__link, a.menu-catalog__sub-link").First()
		name := strings.TrimSpace(link.Text())
		if name == "" {
			return
		}

		href, _ := link.Attr("href")
		path := append(append([]string(nil), breadcrumbs...), name)

		submenu := item.ChildrenFiltered("div.menu-catalog__sub-menu, div.menu-catalog__sub2-menu").First()
		if submenu.Length() > 0 {
			targets = append(targets, p.walkMenu(submenu, path)...)
			return
		}
		targets = append(targets, catalog.Target{
			URL:         p.absolute(href),
			Breadcrumbs: path,
		})
	})
	return targets
}

// ExtractLinks returns the product links on one list page.
func (p *Parser) ExtractLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find("a.product-mini__title-link, a.product-mini__picture").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			links = append(links, p.absolute(href))
		}
	})
	return links
}

// NextPage resolves the next list page using three methods in order: the
// explicit next button, a numbered pagination link for currentPage+1, and
// finally a constructed PAGEN_1 query parameter.
func (p *Parser) NextPage(doc *goquery.Document, currentURL string, currentPage int) string {
	if href, ok := doc.Find("a.modern-page-next").First().Attr("href"); ok && href != "" {
		return p.absolute(href)
	}

	var numbered string
	doc.Find("a.pagination__item, .bx-pagination-container a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n, err := strconv.Atoi(strings.TrimSpace(s.Text()))
		if err != nil || n != currentPage+1 {
			return true
		}
		if href, ok := s.Attr("href"); ok && href != "" {
			numbered = p.absolute(href)
			return false
		}
		return true
	})
	if numbered != "" {
		return numbered
	}

	return pageIndexURL(currentURL, currentPage+1)
}

// ExtractDetail parses one product page.
func (p *Parser) ExtractDetail(doc *goquery.Document, raw []byte) catalog.Detail {
	title := strings.TrimSpace(doc.Find("h1.product-card__title").First().Text())
	if isPlaceholderTitle(title) {
		title = ""
	}

	var imageURL string
	if src, ok := doc.Find("img.product-card__picture-view-img").First().Attr("src"); ok {
		imageURL = p.absolute(src)
	}

	return catalog.Detail{
		Title:       title,
		Description: description(doc),
		ImageURL:    imageURL,
		Price:       extract.FindPrice(doc, raw),
	}
}

// description assembles the h4-sectioned description block into
// "heading:\nbody" paragraphs, falling back to the block's flat text.
func description(doc *goquery.Document) string {
	block := doc.Find("div.product-card__description").First()
	if block.Length() == 0 {
		return ""
	}

	var sections []string
	block.Find("h4").Each(func(_ int, h *goquery.Selection) {
		heading := strings.TrimSpace(h.Text())
		var parts []string
		h.NextAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
			if goquery.NodeName(sib) == "h4" {
				return false
			}
			if text := strings.TrimSpace(sib.Text()); text != "" {
				parts = append(parts, text)
			}
			return true
		})
		if heading != "" && len(parts) > 0 {
			sections = append(sections, fmt.Sprintf("%s:\n%s", heading, strings.Join(parts, " ")))
		}
	})
	if len(sections) > 0 {
		return strings.Join(sections, "\n\n")
	}
	return strings.TrimSpace(block.Text())
}

func isPlaceholderTitle(title string) bool {
	switch strings.ToLower(title) {
	case "", "без названия", "untitled":
		return true
	}
	return false
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

// pageIndexURL rewrites currentURL with an explicit PAGEN_1=page parameter,
// the Bitrix pagination convention this site runs on.
func pageIndexURL(currentURL string, page int) string {
	u, err := url.Parse(currentURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("PAGEN_1", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
