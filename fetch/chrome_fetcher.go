package fetch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"marketplace-scraper/config"
	"marketplace-scraper/utils"
)

// ChromeFetcher loads pages in a headless browser with JavaScript disabled
// and returns the resulting DOM.
type ChromeFetcher struct {
	chromeBin string
	userAgent string
	timeout   time.Duration
	throttle  *utils.Throttle
	logger    *utils.Logger

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewChromeFetcher creates a ChromeFetcher. The browser starts on first use.
func NewChromeFetcher(cfg config.ScrapingConfig, logger *utils.Logger) *ChromeFetcher {
	timeout := time.Duration(cfg.FetchTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChromeFetcher{
		chromeBin: cfg.ChromeBin,
		userAgent: cfg.UserAgent,
		timeout:   timeout,
		throttle:  utils.NewThrottle(cfg.RateLimitMs),
		logger:    logger,
	}
}

// browser returns the shared browser context, starting Chrome on first use.
// Tabs created from it reuse the one process and its cookies.
func (f *ChromeFetcher) browser() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browserCtx != nil {
		return f.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if f.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.userAgent))
	}
	if bin := findChromeBinary(f.chromeBin); bin != "" {
		f.logger.Debug("[fetch] Using browser binary: %s", bin)
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	f.logger.Debug("[fetch] Browser started")

	f.browserCtx = browserCtx
	f.cancelBrowser = cancelBrowser
	f.cancelAlloc = cancelAlloc
	return browserCtx, nil
}

// Fetch implements Fetcher.
func (f *ChromeFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if err := f.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	browserCtx, err := f.browser()
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	f.logger.Debug("[fetch] NAVIGATE %s", url)
	if err := chromedp.Run(tabCtx, emulation.SetScriptExecutionDisabled(true)); err != nil {
		return nil, f.wrap(ctx, url, err)
	}

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, f.wrap(ctx, url, err)
	}
	if resp != nil && (resp.Status < 200 || resp.Status > 299) {
		return nil, &StatusError{URL: url, StatusCode: int(resp.Status)}
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, f.wrap(ctx, url, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: parse html: %w", url, err)
	}
	return doc, nil
}

func (f *ChromeFetcher) wrap(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &TransportError{URL: url, Err: err}
}

// Release implements Fetcher. It shuts the browser down.
func (f *ChromeFetcher) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelBrowser != nil {
		f.cancelBrowser()
	}
	if f.cancelAlloc != nil {
		f.cancelAlloc()
	}
	f.browserCtx, f.cancelBrowser, f.cancelAlloc = nil, nil, nil
	return nil
}

// findChromeBinary locates Chrome/Chromium, preferring the configured path.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
