package scraper

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"marketplace-scraper/fetch"
	"marketplace-scraper/models"
	"marketplace-scraper/utils"
)

// Adapter extracts listings from one marketplace's pages.
type Adapter struct {
	Source
	fetcher fetch.Fetcher
	logger  *utils.Logger
}

// NewAdapter binds a source configuration to a fetcher.
func NewAdapter(src Source, fetcher fetch.Fetcher, logger *utils.Logger) *Adapter {
	return &Adapter{Source: src, fetcher: fetcher, logger: logger}
}

// FetchPage loads a results page and extracts its listings. Fetch errors
// are returned unchanged.
func (a *Adapter) FetchPage(ctx context.Context, pageURL string) ([]models.Listing, error) {
	doc, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return a.ExtractListings(ctx, doc)
}

// LocateFragments returns the listing fragments of a results page.
func (a *Adapter) LocateFragments(doc *goquery.Document) *goquery.Selection {
	return doc.Find(a.FragmentSelector)
}

// ExtractListings builds one Listing per usable fragment. Fragments without
// a title or link are skipped. The only error is ctx cancellation during
// detail-page fetches.
func (a *Adapter) ExtractListings(ctx context.Context, doc *goquery.Document) ([]models.Listing, error) {
	fragments := a.LocateFragments(doc)
	listings := make([]models.Listing, 0, fragments.Length())

	var err error
	fragments.EachWithBreak(func(i int, frag *goquery.Selection) bool {
		listing, ok := a.extractFragment(frag)
		if !ok {
			a.logger.Debug("[%s] Skipping fragment %d: no title or link", a.Name, i)
			return true
		}

		if a.DetailDateSelector != "" {
			listing.PostedAt, err = a.detailDate(ctx, listing.URL)
			if err != nil {
				return false
			}
		}

		listings = append(listings, listing)
		return true
	})
	if err != nil {
		return nil, err
	}

	a.logger.Debug("[%s] Extracted %d of %d fragments", a.Name, len(listings), fragments.Length())
	return listings, nil
}

func (a *Adapter) extractFragment(frag *goquery.Selection) (models.Listing, bool) {
	link := frag.Find(a.LinkSelector).First()
	if link.Length() == 0 {
		return models.Listing{}, false
	}

	title := normaliseText(link.Text())
	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if title == "" || href == "" {
		return models.Listing{}, false
	}

	rawPrice := "0.0"
	if price := frag.Find(a.PriceSelector).First(); price.Length() > 0 {
		rawPrice = price.Text()
	}

	var postedAt string
	if a.DateSelector != "" {
		if date := frag.Find(a.DateSelector).First(); date.Length() > 0 {
			if v, ok := date.Attr(a.DateAttr); ok && a.DateAttr != "" {
				postedAt = strings.TrimSpace(v)
			} else {
				postedAt = normaliseText(date.Text())
			}
		}
	}

	return models.Listing{
		Title:    title,
		Price:    parsePrice(rawPrice, a.CurrencySymbol) * a.RateToUSD,
		URL:      resolveURL(a.BaseURL, href),
		PostedAt: postedAt,
		Source:   a.Name,
	}, true
}

// detailDate fetches the listing page and reads its posted date. A failed
// fetch or a missing node yields an empty date.
func (a *Adapter) detailDate(ctx context.Context, listingURL string) (string, error) {
	doc, err := a.fetcher.Fetch(ctx, listingURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		a.logger.Warn("[%s] Detail page failed for %s, leaving date empty: %v", a.Name, listingURL, err)
		return "", nil
	}

	node := doc.Find(a.DetailDateSelector).First()
	if node.Length() == 0 {
		return "", nil
	}
	text := normaliseText(node.Text())
	return strings.TrimSpace(strings.Replace(text, strings.TrimSpace(a.DetailDatePrefix), "", 1)), nil
}

// parsePrice strips the currency symbol and thousands separators and
// parses what is left. Anything unparseable is 0.
func parsePrice(raw, symbol string) float64 {
	s := raw
	if symbol != "" {
		s = strings.ReplaceAll(s, symbol, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func resolveURL(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || ref.IsAbs() {
		return href
	}
	return b.ResolveReference(ref).String()
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
