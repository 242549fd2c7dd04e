package scraper

import (
	"context"

	"marketplace-scraper/fetch"
	"marketplace-scraper/models"
)

// Paginate walks further result pages of a paginated source. The source
// takes a result offset, not a page number: offsets start at start and grow
// as offset = multiplier*offset with multiplier 2, 3, 4... Exactly pages
// pages are requested unless a fetch fails, in which case the walk stops and
// the listings gathered so far are returned without error.
//
// It returns the listings and the number of non-empty pages.
func (a *Adapter) Paginate(ctx context.Context, query string, start, pages int) ([]models.Listing, int, error) {
	var all []models.Listing
	nonEmpty := 0

	offset, multiplier := start, 2
	for i := 0; i < pages; i++ {
		pageURL := a.SearchURL(query, offset)

		listings, err := a.FetchPage(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil || !fetch.IsTransport(err) {
				return all, nonEmpty, err
			}
			a.logger.Warn("[paginate] %s offset %d failed, keeping %d listings from earlier pages: %v",
				a.Name, offset, len(all), err)
			break
		}

		all = append(all, listings...)
		if len(listings) > 0 {
			nonEmpty++
		}
		a.logger.Debug("[paginate] %s offset %d: %d listings", a.Name, offset, len(listings))

		offset = multiplier * offset
		multiplier++
	}

	return all, nonEmpty, nil
}
