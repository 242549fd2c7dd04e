package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"marketplace-scraper/config"
	"marketplace-scraper/utils"
)

// HTTPFetcher fetches raw HTML over a cookie-carrying HTTP session. It
// never executes scripts nor loads stylesheets.
type HTTPFetcher struct {
	userAgent string
	timeout   time.Duration
	throttle  *utils.Throttle
	logger    *utils.Logger

	mu        sync.Mutex
	transport *http.Transport
	collector *colly.Collector
}

// NewHTTPFetcher creates an HTTPFetcher. The session is opened lazily.
func NewHTTPFetcher(cfg config.ScrapingConfig, logger *utils.Logger) *HTTPFetcher {
	timeout := time.Duration(cfg.FetchTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		userAgent: cfg.UserAgent,
		timeout:   timeout,
		throttle:  utils.NewThrottle(cfg.RateLimitMs),
		logger:    logger,
	}
}

func (f *HTTPFetcher) session() *colly.Collector {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.collector != nil {
		return f.collector
	}

	jar, _ := cookiejar.New(nil)
	f.transport = http.DefaultTransport.(*http.Transport).Clone()

	c := colly.NewCollector(colly.AllowURLRevisit())
	if f.userAgent != "" {
		c.UserAgent = f.userAgent
	}
	c.SetClient(&http.Client{Transport: f.transport, Jar: jar, Timeout: f.timeout})

	f.collector = c
	return c
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if err := f.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	c := f.session().Clone()
	c.Context = ctx

	var doc *goquery.Document
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		d, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			fetchErr = fmt.Errorf("fetch %s: parse html: %w", url, err)
			return
		}
		d.Url = r.Request.URL
		doc = d
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &StatusError{URL: url, StatusCode: r.StatusCode}
			return
		}
		fetchErr = &TransportError{URL: url, Err: err}
	})

	f.logger.Debug("[fetch] GET %s", url)
	if err := c.Visit(url); err != nil && fetchErr == nil {
		fetchErr = &TransportError{URL: url, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if doc == nil {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("empty response")}
	}
	return doc, nil
}

// Release implements Fetcher.
func (f *HTTPFetcher) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.transport != nil {
		f.transport.CloseIdleConnections()
	}
	f.transport = nil
	f.collector = nil
	return nil
}
