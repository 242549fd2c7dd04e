package scraper

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"marketplace-scraper/fetch"
	"marketplace-scraper/models"
)

// bikeRackFixture serves two craigslist listings and one preloved listing.
// Pagination pages are absent, so the walk stops at its first fetch.
func bikeRackFixture(e *Engine) *fakeFetcher {
	f := e.fetcher.(*fakeFetcher)
	q := queryParam(Normalize("bike rack"))

	f.pages[e.craigslist.SearchURL(q, 0)] = craigslistPage(
		clItem{title: "Roof bike rack", href: "https://newyork.cl.test/bik/d/roof/1.html", price: "$50", datetime: "2018-06-21 01:58"},
		clItem{title: "Hitch bike rack", href: "https://newyork.cl.test/bik/d/hitch/2.html", price: "$20", datetime: "2018-06-20 10:00"},
	)
	f.pages[e.preloved.SearchURL(q, 0)] = prelovedPage(
		plItem{title: "Wall bike rack", href: "/adverts/show/3/wall.html", price: "£10"},
	)
	f.pages[testPrelovedURL+"adverts/show/3/wall.html"] = prelovedDetail("2 days ago")
	return f
}

func newTestEngine() *Engine {
	return New(testConfig(), newFakeFetcher(), testLogger())
}

func TestScrapeEndToEnd(t *testing.T) {
	e := newTestEngine()
	f := bikeRackFixture(e)

	result, err := e.Scrape(context.Background(), "bike rack")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if result == nil {
		t.Fatal("result should not be nil on success")
	}
	if len(result.Listings) != 3 {
		t.Fatalf("got %d listings, want 3", len(result.Listings))
	}

	wantPrices := []float64{13.1, 20, 50}
	for i, want := range wantPrices {
		if math.Abs(result.Listings[i].Price-want) > 1e-9 {
			t.Errorf("listing %d price: got %.4f, want %.4f", i, result.Listings[i].Price, want)
		}
	}
	if result.Listings[0].Source != models.SourcePreloved || result.Listings[0].PostedAt != "2 days ago" {
		t.Errorf("cheapest listing: got %+v", result.Listings[0])
	}

	if got := e.TotalResultCount(); got != 3 {
		t.Errorf("TotalResultCount: got %d, want 3", got)
	}
	if got := e.PageCount("craigslist"); got != 1 {
		t.Errorf("PageCount(craigslist): got %d, want 1", got)
	}
	if got := e.PageCount("preloved"); got != 1 {
		t.Errorf("PageCount(preloved): got %d, want 1", got)
	}
	if got := e.PageCount("ebay"); got != 0 {
		t.Errorf("PageCount(unknown): got %d, want 0", got)
	}
	if result.Results != 3 || result.Pages[models.SourceCraigslist] != 1 {
		t.Errorf("result stats: %+v", result.RunStats)
	}
	if f.released != 1 {
		t.Errorf("fetcher released %d times, want 1", f.released)
	}
}

func TestScrapePaginationBound(t *testing.T) {
	e := newTestEngine()
	f := bikeRackFixture(e)
	f.fallback = func(url string) (string, bool) {
		if strings.HasPrefix(url, testCraigslistURL+"search/sss?s=") {
			return craigslistPage(clItem{title: "More", href: "/more.html", price: "$30"}), true
		}
		return "", false
	}

	result, err := e.Scrape(context.Background(), "bike rack")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}

	if paged := f.callsContaining("search/sss?s="); len(paged) != 3 {
		t.Errorf("pagination fetches: got %d, want exactly 3: %v", len(paged), paged)
	}
	if len(result.Listings) != 6 {
		t.Errorf("listings: got %d, want 6", len(result.Listings))
	}
	if got := e.PageCount("craigslist"); got != 4 {
		t.Errorf("PageCount(craigslist): got %d, want 4", got)
	}
}

func TestScrapePaginationFaultTolerance(t *testing.T) {
	e := newTestEngine()
	f := bikeRackFixture(e)
	q := queryParam(Normalize("bike rack"))
	f.pages[e.craigslist.SearchURL(q, 120)] = craigslistPage(clItem{title: "Page two", href: "/p2.html", price: "$35"})
	f.errs[e.craigslist.SearchURL(q, 240)] = &fetch.StatusError{URL: "offset 240", StatusCode: 500}

	result, err := e.Scrape(context.Background(), "bike rack")
	if err != nil {
		t.Fatalf("pagination failure must not fail the scrape: %v", err)
	}
	if result == nil {
		t.Fatal("result should not be nil")
	}
	if len(result.Listings) != 4 {
		t.Errorf("listings: got %d, want 4 (2 page one + 1 paginated + 1 preloved)", len(result.Listings))
	}
	if len(f.callsContaining("s=720")) != 0 {
		t.Error("walk should have stopped before offset 720")
	}
	if e.TotalResultCount() != 4 {
		t.Errorf("TotalResultCount: got %d, want 4", e.TotalResultCount())
	}
}

func TestScrapeFirstPageFailure(t *testing.T) {
	e := newTestEngine()
	f := bikeRackFixture(e)
	q := queryParam(Normalize("bike rack"))
	f.errs[e.craigslist.SearchURL(q, 0)] = &fetch.TransportError{URL: "page 1", Err: errors.New("connection refused")}

	result, err := e.Scrape(context.Background(), "bike rack")
	if err == nil {
		t.Fatal("expected error")
	}
	if result != nil {
		t.Errorf("failed scrape must return nil result, got %+v", result)
	}

	var te *fetch.TransportError
	if !errors.As(err, &te) {
		t.Errorf("expected wrapped TransportError, got %v", err)
	}
	if got := e.TotalResultCount(); got != 0 {
		t.Errorf("TotalResultCount: got %d, want 0", got)
	}
	if len(f.callsContaining(testPrelovedURL)) != 0 {
		t.Error("preloved should not be fetched after a fatal error")
	}
	if f.released != 1 {
		t.Errorf("fetcher must be released on failure too, released %d", f.released)
	}
}

func TestScrapeSecondSourceFailureKeepsCounters(t *testing.T) {
	e := newTestEngine()
	f := bikeRackFixture(e)
	q := queryParam(Normalize("bike rack"))
	f.errs[e.preloved.SearchURL(q, 0)] = &fetch.StatusError{URL: "preloved", StatusCode: 403}

	result, err := e.Scrape(context.Background(), "bike rack")
	if err == nil || result != nil {
		t.Fatalf("expected failure signal, got result=%v err=%v", result, err)
	}
	if got := e.PageCount("craigslist"); got != 1 {
		t.Errorf("PageCount(craigslist): got %d, want 1", got)
	}
	if got := e.TotalResultCount(); got != 2 {
		t.Errorf("TotalResultCount should reflect completed work: got %d, want 2", got)
	}
}

func TestScrapeEmptyIsNotFailure(t *testing.T) {
	e := newTestEngine()
	f := e.fetcher.(*fakeFetcher)
	f.fallback = func(url string) (string, bool) {
		if strings.HasPrefix(url, testPrelovedURL) {
			return prelovedPage(), true
		}
		return craigslistPage(), true
	}

	result, err := e.Scrape(context.Background(), "unicorn")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if result == nil || result.Listings == nil {
		t.Fatal("empty scrape must return a non-nil result")
	}
	if len(result.Listings) != 0 {
		t.Errorf("listings: got %d, want 0", len(result.Listings))
	}
	if e.PageCount("craigslist") != 0 || e.PageCount("preloved") != 0 {
		t.Errorf("empty pages must not be counted: %+v", e.LastRun())
	}
}

func TestScrapeResetsCounters(t *testing.T) {
	e := newTestEngine()
	f := bikeRackFixture(e)

	if _, err := e.Scrape(context.Background(), "bike rack"); err != nil {
		t.Fatalf("first Scrape: %v", err)
	}
	if e.TotalResultCount() != 3 {
		t.Fatalf("first run total: %d", e.TotalResultCount())
	}

	f.errs[e.craigslist.SearchURL(queryParam(Normalize("bike rack")), 0)] = &fetch.StatusError{StatusCode: 500}
	if _, err := e.Scrape(context.Background(), "bike rack"); err == nil {
		t.Fatal("second Scrape should fail")
	}
	if e.TotalResultCount() != 0 || e.PageCount("craigslist") != 0 || e.PageCount("preloved") != 0 {
		t.Errorf("counters not reset: %+v", e.LastRun())
	}
}

func TestScrapeCancelledContext(t *testing.T) {
	e := newTestEngine()
	bikeRackFixture(e)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Scrape(ctx, "bike rack")
	if !errors.Is(err, context.Canceled) || result != nil {
		t.Errorf("expected nil result and context.Canceled, got %v, %v", result, err)
	}
}
