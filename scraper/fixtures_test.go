package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"marketplace-scraper/config"
	"marketplace-scraper/fetch"
	"marketplace-scraper/utils"
)

const (
	testCraigslistURL = "https://newyork.cl.test/"
	testPrelovedURL   = "https://www.pl.test/"
)

// fakeFetcher serves canned HTML by URL. Unknown URLs answer 404.
type fakeFetcher struct {
	pages    map[string]string
	errs     map[string]error
	fallback func(url string) (string, bool)
	calls    []string
	released int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	html, ok := f.pages[url]
	if !ok && f.fallback != nil {
		html, ok = f.fallback(url)
	}
	if !ok {
		return nil, &fetch.StatusError{URL: url, StatusCode: 404}
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (f *fakeFetcher) Release() error {
	f.released++
	return nil
}

func (f *fakeFetcher) callsContaining(substr string) []string {
	var out []string
	for _, c := range f.calls {
		if strings.Contains(c, substr) {
			out = append(out, c)
		}
	}
	return out
}

func testConfig() *config.Config {
	cfg := config.FromEnv()
	cfg.Scraping.CraigslistURL = testCraigslistURL
	cfg.Scraping.PrelovedURL = testPrelovedURL
	cfg.Scraping.GBPToUSD = 1.31
	cfg.Scraping.PaginationStart = 120
	cfg.Scraping.PaginationPages = 3
	return cfg
}

func testLogger() *utils.Logger { return utils.NewLogger() }

type clItem struct {
	title, href, price, datetime string
}

// craigslistPage renders a results page. Empty price or datetime omits the node.
func craigslistPage(items ...clItem) string {
	var b strings.Builder
	b.WriteString(`<html><body><section class="page-container"><ul class="rows">`)
	for _, it := range items {
		b.WriteString(`<li class="result-row">`)
		b.WriteString(fmt.Sprintf(`<a href="%s" class="result-image gallery">`, it.href))
		if it.price != "" {
			b.WriteString(fmt.Sprintf(`<span class="result-price">%s</span>`, it.price))
		}
		b.WriteString(`</a><p class="result-info">`)
		if it.datetime != "" {
			b.WriteString(fmt.Sprintf(`<time class="result-date" datetime="%s">Jun 21</time>`, it.datetime))
		}
		if it.title != "" {
			b.WriteString(fmt.Sprintf(`<a href="%s" class="result-title hdrlnk">%s</a>`, it.href, it.title))
		}
		b.WriteString(`</p></li>`)
	}
	b.WriteString(`</ul></section></body></html>`)
	return b.String()
}

type plItem struct {
	title, href, price string
}

func prelovedPage(items ...plItem) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="search-results">`)
	for _, it := range items {
		b.WriteString(`<li class="search-result">`)
		if it.title != "" {
			b.WriteString(fmt.Sprintf(`<h2><a class="search-result__title is-title" href="%s">%s</a></h2>`, it.href, it.title))
		}
		if it.price != "" {
			b.WriteString(fmt.Sprintf(`<span class="search-result__meta"><span itemprop="price">%s</span></span>`, it.price))
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func prelovedDetail(updated string) string {
	return `<html><body><ul class="classified__additional__meta">` +
		`<li class="classified__additional__meta__item classified__timeago">This advert was updated ` + updated + `</li>` +
		`</ul></body></html>`
}

func parseDoc(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(err)
	}
	return doc
}
