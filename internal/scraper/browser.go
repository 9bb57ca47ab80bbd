package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"catalog-ingest/internal/util"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// Listing pages render lazily; the browser waits and scrolls before reading the DOM.
const (
	settleDelay  = 3 * time.Second
	scrollOffset = 2500
)

// BrowserFetcher renders pages in headless Chrome through chromedp
type BrowserFetcher struct {
	userAgent string
	timeout   time.Duration
	settle    time.Duration

	mu            sync.Mutex
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

// NewBrowserFetcher creates a dynamic-page fetcher
func NewBrowserFetcher(userAgent string, timeout time.Duration) *BrowserFetcher {
	return &BrowserFetcher{userAgent: userAgent, timeout: timeout, settle: settleDelay}
}

// Open launches the browser
func (f *BrowserFetcher) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(f.userAgent),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("ignore-certificate-errors", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	startCtx, cancel := context.WithTimeout(browserCtx, f.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	// the first Run on a fresh context starts the browser process
	if err := chromedp.Run(startCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	f.browserCtx = browserCtx
	f.allocCancel = allocCancel
	f.browserCancel = browserCancel
	return nil
}

// Fetch opens the page in a new tab, lets it settle and returns the rendered DOM
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	f.mu.Lock()
	browserCtx := f.browserCtx
	f.mu.Unlock()
	if browserCtx == nil {
		return nil, ErrNotOpen
	}

	start := time.Now()
	defer func() {
		util.FetchLatency.WithLabelValues(ModeDynamic).Observe(time.Since(start).Seconds())
	}()

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, f.timeout+2*f.settle)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	var scrolled bool
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(f.settle),
		chromedp.Evaluate(fmt.Sprintf("window.scrollTo(0, %d); true", scrollOffset), &scrolled),
		chromedp.Sleep(f.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// Close shuts the browser down. Safe to call more than once.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browserCancel != nil {
		f.browserCancel()
		f.browserCancel = nil
	}
	if f.allocCancel != nil {
		f.allocCancel()
		f.allocCancel = nil
	}
	f.browserCtx = nil
	return nil
}
