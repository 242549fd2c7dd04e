package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"marketplace-scraper/models"
	"marketplace-scraper/utils"
)

// InsightService summarises a scrape result.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes the report. Price figures only consider listings with
// a non-zero price, since a missing price is recorded as 0.
func (s *InsightService) Generate(listings []models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		ListingsBySource: make(map[models.Source]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var total float64
	for i := range listings {
		l := &listings[i]
		report.ListingsBySource[l.Source]++

		if l.Price <= 0 {
			report.UnpricedListings++
			continue
		}

		report.PricedListings++
		total += l.Price
		if report.Cheapest == nil || l.Price < report.Cheapest.Price {
			report.Cheapest = l
		}
		if report.MostExpensive == nil || l.Price > report.MostExpensive.Price {
			report.MostExpensive = l
		}
	}

	if report.PricedListings > 0 {
		report.AveragePrice = round2(total / float64(report.PricedListings))
		report.MinPrice = round2(report.Cheapest.Price)
		report.MaxPrice = round2(report.MostExpensive.Price)
	}

	s.logger.Debug("[insights] %d listings, %d priced", report.TotalListings, report.PricedListings)
	return report
}

func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  MARKETPLACE SEARCH INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings   : \033[1m%d\033[0m\n", r.TotalListings)

	sources := make([]models.Source, 0, len(r.ListingsBySource))
	for src := range r.ListingsBySource {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Rank() < sources[j].Rank() })
	for _, src := range sources {
		fmt.Fprintf(w, "  %-16s : %d\n", src, r.ListingsBySource[src])
	}
	fmt.Fprintf(w, "  Without a price  : %d\n\n", r.UnpricedListings)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics (USD)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m$%.2f\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m$%.2f\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m$%.2f\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.Cheapest != nil {
		fmt.Fprintf(w, "\033[1;33m  Cheapest Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.Cheapest.Title, 50))
		fmt.Fprintf(w, "  Source : %s\n", r.Cheapest.Source)
		fmt.Fprintf(w, "  Price  : \033[1;32m$%.2f\033[0m\n", r.Cheapest.Price)
		fmt.Fprintf(w, "  URL    : %s\n\n", r.Cheapest.URL)
	}

	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
