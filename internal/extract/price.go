package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Price fallbacks over the raw page, tried in order after the structured
// metadata field. The JSON-fragment pattern covers prices embedded in
// script blocks; the itemprop pattern covers pages where goquery's meta
// lookup misses because of malformed markup.
var priceRegexes = []*regexp.Regexp{
	regexp.MustCompile(`"price"\s*:\s*"?(\d+(?:[.,]\d+)?)"?`),
	regexp.MustCompile(`itemprop="price"[^>]+content="(\d+(?:[.,]\d+)?)"`),
	regexp.MustCompile(`price-value[^>]*>\s*([\d\s]+(?:[.,]\d+)?)`),
}

// FindPrice resolves the price of one product page: the structured
// meta[itemprop=price] field first, then the regex fallbacks over the raw
// body. Returns 0 when no encoding yields a parseable positive number.
func FindPrice(doc *goquery.Document, raw []byte) float64 {
	if content, ok := doc.Find(`meta[itemprop="price"]`).Attr("content"); ok {
		if price, err := ParseDecimal(content); err == nil && price > 0 {
			return price
		}
	}
	for _, re := range priceRegexes {
		if m := re.FindSubmatch(raw); m != nil {
			if price, err := ParseDecimal(string(m[1])); err == nil && price > 0 {
				return price
			}
		}
	}
	return 0
}

// ParseDecimal converts a localized price string to a float. Spaces act as
// thousands separators and a comma as the decimal mark ("1 299,50" →
// 1299.50). A comma followed by exactly three digits and no other decimal
// mark is treated as a thousands separator ("1,299" → 1299).
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	if i := strings.LastIndex(s, ","); i >= 0 {
		switch {
		case strings.Contains(s, "."):
			// The dot is the decimal mark, commas group thousands.
			s = strings.ReplaceAll(s, ",", "")
		case strings.Count(s, ",") == 1 && len(s)-i-1 == 3:
			s = strings.ReplaceAll(s, ",", "")
		default:
			s = strings.ReplaceAll(s[:i], ",", "") + "." + s[i+1:]
		}
	}

	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return price, nil
}
