// Package fetch turns a URL into a navigable document tree.
//
// Two clients are provided: HTTPFetcher, a plain HTTP session built on colly,
// and ChromeFetcher, a headless browser with script execution disabled. Both
// report non-success statuses as *StatusError.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"marketplace-scraper/config"
	"marketplace-scraper/utils"
)

// Fetcher retrieves pages one at a time.
type Fetcher interface {
	// Fetch loads url and parses it. Non-2xx responses return *StatusError.
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
	// Release drops session state (cookies, connections, browser). The next
	// Fetch acquires a fresh session.
	Release() error
}

// StatusError is returned when the target answers with a non-success status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// TransportError wraps a failure to reach the target at all.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err came from the fetch client rather than
// from the caller's context.
func IsTransport(err error) bool {
	var se *StatusError
	var te *TransportError
	return errors.As(err, &se) || errors.As(err, &te)
}

// New builds the fetcher named by cfg.Scraping.Fetcher.
func New(cfg *config.Config, logger *utils.Logger) (Fetcher, error) {
	switch cfg.Scraping.Fetcher {
	case "", "http":
		return NewHTTPFetcher(cfg.Scraping, logger), nil
	case "chrome":
		return NewChromeFetcher(cfg.Scraping, logger), nil
	default:
		return nil, fmt.Errorf("fetch: unknown fetcher %q", cfg.Scraping.Fetcher)
	}
}
