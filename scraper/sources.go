package scraper

import (
	"strconv"
	"strings"

	"marketplace-scraper/models"
)

// Source is the fixed extraction configuration of one marketplace. All
// marketplaces share the same extraction routine; only this table differs.
type Source struct {
	Name    models.Source
	BaseURL string

	// Selectors are evaluated relative to each fragment.
	FragmentSelector string
	LinkSelector     string
	PriceSelector    string
	DateSelector     string
	DateAttr         string

	// When set, the posted date is read from the listing's own page.
	DetailDateSelector string
	DetailDatePrefix   string

	CurrencySymbol string
	RateToUSD      float64
	Paginated      bool

	searchPath func(query string, offset int) string
}

// SearchURL returns the results page for an escaped query. An offset of
// zero requests the first page.
func (s Source) SearchURL(query string, offset int) string {
	return strings.TrimRight(s.BaseURL, "/") + "/" + s.searchPath(query, offset)
}

// Craigslist returns the USD-denominated, offset-paginated source.
func Craigslist(baseURL string) Source {
	return Source{
		Name:             models.SourceCraigslist,
		BaseURL:          baseURL,
		FragmentSelector: "li.result-row",
		LinkSelector:     "p.result-info > a",
		PriceSelector:    "a > span.result-price",
		DateSelector:     "time",
		DateAttr:         "datetime",
		CurrencySymbol:   "$",
		RateToUSD:        1.0,
		Paginated:        true,
		searchPath: func(query string, offset int) string {
			if offset > 0 {
				return "search/sss?s=" + strconv.Itoa(offset) + "&sort=rel&query=" + query
			}
			return "search/sss?sort=rel&query=" + query
		},
	}
}

// Preloved returns the GBP-denominated source. Its result fragments carry
// no date, so each listing page is fetched for it.
func Preloved(baseURL string, gbpToUSD float64) Source {
	return Source{
		Name:               models.SourcePreloved,
		BaseURL:            baseURL,
		FragmentSelector:   "li.search-result",
		LinkSelector:       "h2 > a.search-result__title.is-title",
		PriceSelector:      "span > span[itemprop='price']",
		DetailDateSelector: "li.classified__additional__meta__item.classified__timeago",
		DetailDatePrefix:   "This advert was updated ",
		CurrencySymbol:     "£",
		RateToUSD:          gbpToUSD,
		searchPath: func(query string, _ int) string {
			return "search?keyword=" + query
		},
	}
}
