package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"catalog-ingest/internal/models"
	"catalog-ingest/internal/scraper"

	"github.com/PuerkitoBio/goquery"
)

// memStore is an in-memory CatalogStore and RunStore
type memStore struct {
	mu         sync.Mutex
	products   []*models.Product
	attributes map[int64][]models.Attribute
	categories map[string]int64
	runs       []*models.IngestionRun
	finished   []int64
	listLimit  int
	failCreate bool
}

func newMemStore() *memStore {
	return &memStore{
		attributes: make(map[int64][]models.Attribute),
		categories: make(map[string]int64),
	}
}

func (m *memStore) GetProductBySourceURL(ctx context.Context, url string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.SourceURL != nil && *p.SourceURL == url {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return errors.New("duplicate key value violates unique constraint")
	}
	p.ID = int64(len(m.products) + 1)
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.products = append(m.products, &cp)
	return nil
}

func (m *memStore) UpdateProductPricing(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.ID == p.ID {
			existing.Price = p.Price
			existing.OldPrice = p.OldPrice
			existing.DiscountPercent = p.DiscountPercent
			existing.IsSale = p.IsSale
			existing.Description = p.Description
			return nil
		}
	}
	return fmt.Errorf("product %d not found", p.ID)
}

func (m *memStore) CreateProductAttributes(ctx context.Context, productID int64, attrs []models.Attribute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attributes[productID] = append(m.attributes[productID], attrs...)
	return nil
}

func (m *memStore) FindOrCreateCategory(ctx context.Context, name, slug string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.categories[slug]; ok {
		return id, nil
	}
	id := int64(len(m.categories) + 1)
	m.categories[slug] = id
	return id, nil
}

func (m *memStore) CreateRun(ctx context.Context) (*models.IngestionRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := &models.IngestionRun{
		ID:        int64(len(m.runs) + 1),
		StartTime: time.Now(),
		Status:    models.RunStatusRunning,
		CreatedAt: time.Now(),
	}
	m.runs = append(m.runs, run)
	cp := *run
	return &cp, nil
}

func (m *memStore) FinishRun(ctx context.Context, runID int64, status string, stats models.RunStats, errMsg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == runID {
			now := time.Now()
			r.EndTime = &now
			r.Status = status
			r.ProductsParsed = stats.Parsed
			r.ProductsAdded = stats.Added
			r.ProductsUpdated = stats.Updated
			r.ErrorsCount = stats.Errors
			r.ErrorMessage = errMsg
			m.finished = append(m.finished, runID)
			return nil
		}
	}
	return fmt.Errorf("run %d not found", runID)
}

func (m *memStore) ListRuns(ctx context.Context, limit int) ([]models.IngestionRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listLimit = limit
	out := []models.IngestionRun{}
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.runs[i])
	}
	return out, nil
}

func (m *memStore) run(id int64) models.IngestionRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.runs[id-1]
}

func (m *memStore) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// fakeImages records every image batch it receives
type fakeImages struct {
	mu    sync.Mutex
	calls map[int64][]string
}

func (f *fakeImages) Process(ctx context.Context, productID int64, urls []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[int64][]string)
	}
	f.calls[productID] = append(f.calls[productID], urls...)
	n := len(urls)
	if n > 5 {
		n = 5
	}
	return n, nil
}

func (f *fakeImages) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// pageFetcher serves canned HTML by URL
type pageFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	openErr error
	// gate, when set, blocks the first Fetch until closed
	gate   chan struct{}
	gated  bool
	closed int
}

func (f *pageFetcher) Open(ctx context.Context) error { return f.openErr }

func (f *pageFetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	f.mu.Lock()
	gate := f.gate
	if gate != nil && !f.gated {
		f.gated = true
	} else {
		gate = nil
	}
	html, ok := f.pages[pageURL]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return nil, fmt.Errorf("fetch %s: status 404", pageURL)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (f *pageFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *pageFetcher) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *pageFetcher) factory() FetcherFactory {
	return func() (scraper.Fetcher, error) { return f, nil }
}

// fakeLocker is a single-key lock
type fakeLocker struct {
	mu     sync.Mutex
	holder string
}

func (l *fakeLocker) AcquireLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" {
		return false, nil
	}
	l.holder = token
	return true, nil
}

func (l *fakeLocker) RefreshLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder == token, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, name, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == token {
		l.holder = ""
	}
	return nil
}

// recordingPublisher keeps published event types in order
type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) add(t string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, t)
}

func (p *recordingPublisher) PublishRunStarted(ctx context.Context, e *models.RunStartedEvent) error {
	p.add(e.EventType)
	return nil
}

func (p *recordingPublisher) PublishRunFinished(ctx context.Context, e *models.RunFinishedEvent) error {
	p.add(e.EventType)
	return nil
}

func (p *recordingPublisher) PublishProductIngested(ctx context.Context, e *models.ProductIngestedEvent) error {
	p.add(e.EventType)
	return nil
}

func (p *recordingPublisher) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}
