// Package sources selects the per-site parser implementation by name.
package sources

import (
	"fmt"

	"github.com/JakeFAU/pharma-price-crawler/internal/crawl"
	"github.com/JakeFAU/pharma-price-crawler/internal/sources/gosapteka"
	"github.com/JakeFAU/pharma-price-crawler/internal/sources/planeta"
)

// New returns the SiteParser registered under name. Selection is explicit
// configuration, not inheritance: adding a source means adding a package
// here and a sources entry in the config file.
func New(name, baseURL string) (crawl.SiteParser, error) {
	switch name {
	case "gosapteka":
		return gosapteka.New(baseURL), nil
	case "planeta":
		return planeta.New(baseURL), nil
	default:
		return nil, fmt.Errorf("unknown site parser %q", name)
	}
}
