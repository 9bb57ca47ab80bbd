package scraper

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"catalog-ingest/internal/util"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// Fetcher modes
const (
	ModeStatic  = "static"
	ModeDynamic = "dynamic"
)

var ErrNotOpen = errors.New("fetcher session is not open")

// Fetcher loads a page and hands back its parsed DOM.
// Open acquires the session (HTTP collector or browser); a failure there is fatal to a run.
type Fetcher interface {
	Open(ctx context.Context) error
	Fetch(ctx context.Context, pageURL string) (*goquery.Document, error)
	Close() error
}

// NewFetcher builds the fetcher for the configured mode
func NewFetcher(mode, userAgent string, timeout time.Duration) (Fetcher, error) {
	switch mode {
	case "", ModeStatic:
		return NewHTTPFetcher(userAgent, timeout), nil
	case ModeDynamic:
		return NewBrowserFetcher(userAgent, timeout), nil
	default:
		return nil, fmt.Errorf("unknown fetcher mode %q", mode)
	}
}

// HTTPFetcher fetches server-rendered pages with a colly collector
type HTTPFetcher struct {
	userAgent string
	timeout   time.Duration

	mu        sync.Mutex
	collector *colly.Collector
}

// NewHTTPFetcher creates a static-page fetcher
func NewHTTPFetcher(userAgent string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{userAgent: userAgent, timeout: timeout}
}

// Open prepares the collector
func (f *HTTPFetcher) Open(ctx context.Context) error {
	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(f.timeout)
	// the source site serves an incomplete certificate chain
	c.WithTransport(&http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	})
	f.mu.Lock()
	f.collector = c
	f.mu.Unlock()
	return nil
}

// Fetch performs one GET and parses the body
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	f.mu.Lock()
	base := f.collector
	f.mu.Unlock()
	if base == nil {
		return nil, ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		util.FetchLatency.WithLabelValues(ModeStatic).Observe(time.Since(start).Seconds())
	}()

	c := base.Clone()

	var doc *goquery.Document
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	})
	c.OnResponse(func(r *colly.Response) {
		doc, fetchErr = goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch %s: status %d: %w", pageURL, r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if doc == nil {
		return nil, fmt.Errorf("fetch %s: empty response", pageURL)
	}
	return doc, nil
}

// Close releases the collector
func (f *HTTPFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collector = nil
	return nil
}
