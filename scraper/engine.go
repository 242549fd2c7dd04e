package scraper

import (
	"context"
	"fmt"
	"sync"

	"marketplace-scraper/config"
	"marketplace-scraper/fetch"
	"marketplace-scraper/models"
	"marketplace-scraper/utils"
)

// Engine aggregates listings for a keyword across all marketplaces.
//
// Fetches are strictly sequential. An Engine must not run two scrapes at
// once: both would share the fetcher session, which is released at the end
// of every scrape.
type Engine struct {
	cfg        config.ScrapingConfig
	fetcher    fetch.Fetcher
	logger     *utils.Logger
	craigslist *Adapter
	preloved   *Adapter

	mu   sync.Mutex
	last models.RunStats
}

// New creates an Engine using fetcher for every request.
func New(cfg *config.Config, fetcher fetch.Fetcher, logger *utils.Logger) *Engine {
	sc := cfg.Scraping
	return &Engine{
		cfg:        sc,
		fetcher:    fetcher,
		logger:     logger,
		craigslist: NewAdapter(Craigslist(sc.CraigslistURL), fetcher, logger),
		preloved:   NewAdapter(Preloved(sc.PrelovedURL, sc.GBPToUSD), fetcher, logger),
		last:       models.NewRunStats(),
	}
}

// Scrape searches every marketplace for keyword and returns the merged
// listings sorted by price. A nil result with a non-nil error means the
// scrape failed; a successful scrape that found nothing returns an empty,
// non-nil result.
func (e *Engine) Scrape(ctx context.Context, keyword string) (*models.ScrapeResult, error) {
	stats := models.NewRunStats()
	e.record(stats)
	defer func() { e.record(stats) }()

	defer func() {
		if err := e.fetcher.Release(); err != nil {
			e.logger.Warn("[engine] Releasing fetcher: %v", err)
		}
	}()

	listings, err := e.collect(ctx, keyword, &stats)
	if err != nil {
		e.logger.Error("[engine] Scrape for %q failed: %v", keyword, err)
		return nil, err
	}

	models.SortListings(listings)

	e.logger.Info("[engine] Scrape for %q complete: %d listings (%s pages: %d, %s pages: %d)",
		keyword, stats.Results,
		models.SourceCraigslist, stats.Pages[models.SourceCraigslist],
		models.SourcePreloved, stats.Pages[models.SourcePreloved])

	return &models.ScrapeResult{Listings: listings, RunStats: stats.Clone()}, nil
}

func (e *Engine) collect(ctx context.Context, keyword string, stats *models.RunStats) ([]models.Listing, error) {
	query := queryParam(Normalize(keyword))
	result := make([]models.Listing, 0)

	add := func(src models.Source, listings []models.Listing, pages int) {
		result = append(result, listings...)
		stats.Results += len(listings)
		stats.Pages[src] += pages
	}

	// Source A, first page.
	cl := e.craigslist
	e.logger.Info("[engine] Searching %s for %q", cl.Name, keyword)
	listings, err := cl.FetchPage(ctx, cl.SearchURL(query, 0))
	if err != nil {
		return nil, fmt.Errorf("%s: page 1: %w", cl.Name, err)
	}
	add(cl.Name, listings, nonEmpty(listings))

	// Source A, further pages. Fetch failures end the walk but not the scrape.
	if cl.Paginated {
		listings, pages, err := cl.Paginate(ctx, query, e.cfg.PaginationStart, e.cfg.PaginationPages)
		add(cl.Name, listings, pages)
		if err != nil {
			return nil, fmt.Errorf("%s: paginate: %w", cl.Name, err)
		}
	}

	// Source B, first page only.
	pl := e.preloved
	e.logger.Info("[engine] Searching %s for %q", pl.Name, keyword)
	listings, err = pl.FetchPage(ctx, pl.SearchURL(query, 0))
	if err != nil {
		return nil, fmt.Errorf("%s: page 1: %w", pl.Name, err)
	}
	add(pl.Name, listings, nonEmpty(listings))

	return result, nil
}

func nonEmpty(listings []models.Listing) int {
	if len(listings) > 0 {
		return 1
	}
	return 0
}

func (e *Engine) record(stats models.RunStats) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = stats.Clone()
}

// LastRun returns the counters of the most recent scrape, including the
// work done before a failure.
func (e *Engine) LastRun() models.RunStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last.Clone()
}

// PageCount returns how many non-empty pages the last scrape read from the
// named source. Unknown names return 0.
func (e *Engine) PageCount(source string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last.Pages[models.Source(source)]
}

// TotalResultCount returns the number of listings the last scrape produced.
func (e *Engine) TotalResultCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last.Results
}
