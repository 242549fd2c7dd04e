package models

import "sort"

// Source identifies the marketplace a listing was scraped from.
type Source string

const (
	SourceCraigslist Source = "craigslist"
	SourcePreloved   Source = "preloved"
)

// sourceRank orders sources when prices tie. Unknown sources sort last.
var sourceRank = map[Source]int{
	SourceCraigslist: 0,
	SourcePreloved:   1,
}

// Rank returns the tie-break position of s.
func (s Source) Rank() int {
	if r, ok := sourceRank[s]; ok {
		return r
	}
	return len(sourceRank)
}

// Listing is one normalized for-sale item. Price is always in USD.
type Listing struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	URL      string  `json:"url"`
	PostedAt string  `json:"posted_at,omitempty"`
	Source   Source  `json:"source"`
}

// Less reports whether a sorts before b: cheaper first, then by source rank.
func Less(a, b Listing) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Source.Rank() < b.Source.Rank()
}

// SortListings sorts in place by Less, keeping scrape order for full ties.
func SortListings(listings []Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		return Less(listings[i], listings[j])
	})
}

// RunStats holds the counters of one scrape.
type RunStats struct {
	Pages   map[Source]int `json:"pages"`
	Results int            `json:"total"`
}

// NewRunStats returns zeroed counters.
func NewRunStats() RunStats {
	return RunStats{Pages: make(map[Source]int)}
}

// Clone returns a copy that does not share the Pages map.
func (s RunStats) Clone() RunStats {
	c := RunStats{Pages: make(map[Source]int, len(s.Pages)), Results: s.Results}
	for k, v := range s.Pages {
		c.Pages[k] = v
	}
	return c
}

// ScrapeResult is the merged, sorted output of one scrape.
type ScrapeResult struct {
	Listings []Listing `json:"listings"`
	RunStats
}

// InsightReport holds summary figures over a result set.
type InsightReport struct {
	TotalListings    int
	ListingsBySource map[Source]int
	PricedListings   int
	UnpricedListings int
	AveragePrice     float64
	MinPrice         float64
	MaxPrice         float64
	Cheapest         *Listing
	MostExpensive    *Listing
}
