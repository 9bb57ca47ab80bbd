package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"catalog-ingest/config"
	"catalog-ingest/internal/models"
	"catalog-ingest/internal/scraper"
	"catalog-ingest/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State of the orchestrator
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

const (
	runLockName = "catalog-ingest"
	runLockTTL  = 30 * time.Minute

	DefaultLogsLimit = 20
	MaxLogsLimit     = 100
)

var (
	ErrAlreadyRunning  = errors.New("ingestion is already running")
	ErrNotRunning      = errors.New("ingestion is not running")
	ErrUnknownCategory = errors.New("unknown category")
	errStopped         = errors.New("run stopped")
)

// FetcherFactory creates a fresh fetcher for every run
type FetcherFactory func() (scraper.Fetcher, error)

// StartOptions narrows a run. Empty Categories means every configured category.
type StartOptions struct {
	Categories []string `json:"categories"`
}

// Status is the control-surface view of the orchestrator
type Status struct {
	IsRunning bool            `json:"isRunning"`
	State     State           `json:"state"`
	RunID     int64           `json:"runId,omitempty"`
	Stats     models.RunStats `json:"stats"`
}

type runContext struct {
	id        int64
	ctx       context.Context
	cancel    context.CancelFunc
	fetcher   scraper.Fetcher
	lockToken string
	sources   []config.CategorySource

	stop     chan struct{}
	stopOnce sync.Once

	parsed  atomic.Int64
	added   atomic.Int64
	updated atomic.Int64
	errs    atomic.Int64
}

func (rc *runContext) signalStop() {
	rc.stopOnce.Do(func() { close(rc.stop) })
}

func (rc *runContext) stopped() bool {
	select {
	case <-rc.stop:
		return true
	default:
		return false
	}
}

func (rc *runContext) stats() models.RunStats {
	return models.RunStats{
		Parsed:  int(rc.parsed.Load()),
		Added:   int(rc.added.Load()),
		Updated: int(rc.updated.Load()),
		Errors:  int(rc.errs.Load()),
	}
}

// Orchestrator drives ingestion runs. At most one run is active per instance,
// and per deployment when a Locker is configured.
type Orchestrator struct {
	cfg        config.ParserConfig
	store      RunStore
	writer     *CatalogWriter
	extractor  *scraper.Extractor
	newFetcher FetcherFactory
	events     EventPublisher
	locker     Locker
	logger     *zap.Logger

	mu      sync.Mutex
	state   State
	current *runContext
	last    *runContext
}

// Option configures optional collaborators of the orchestrator
type Option func(*Orchestrator)

// WithEvents publishes run events
func WithEvents(events EventPublisher) Option {
	return func(o *Orchestrator) {
		if events != nil {
			o.events = events
		}
	}
}

// WithLocker guards runs with a cross-process lock
func WithLocker(locker Locker) Option {
	return func(o *Orchestrator) { o.locker = locker }
}

// WithFetcherFactory overrides how run fetchers are created
func WithFetcherFactory(factory FetcherFactory) Option {
	return func(o *Orchestrator) { o.newFetcher = factory }
}

// NewOrchestrator creates an idle orchestrator
func NewOrchestrator(
	cfg config.ParserConfig,
	store RunStore,
	writer *CatalogWriter,
	extractor *scraper.Extractor,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		store:     store,
		writer:    writer,
		extractor: extractor,
		events:    noopPublisher{},
		state:     StateIdle,
		logger:    util.Named("orchestrator"),
	}
	o.newFetcher = func() (scraper.Fetcher, error) {
		return scraper.NewFetcher(cfg.Mode, cfg.UserAgent, cfg.Timeout)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start begins a run in the background and returns its log row. The run
// outlives ctx; use Stop to end it.
func (o *Orchestrator) Start(ctx context.Context, opts StartOptions) (*models.IngestionRun, error) {
	rc, run, err := o.begin(context.WithoutCancel(ctx), opts)
	if err != nil {
		return nil, err
	}
	go o.execute(rc)
	return run, nil
}

// Run performs a run and blocks until it ends. Cancelling ctx fails the run.
func (o *Orchestrator) Run(ctx context.Context, opts StartOptions) (models.RunStats, error) {
	rc, _, err := o.begin(ctx, opts)
	if err != nil {
		return models.RunStats{}, err
	}
	err = o.execute(rc)
	return rc.stats(), err
}

// Stop halts the active run at its next check-in. The run row keeps status running.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateRunning || o.current == nil {
		o.mu.Unlock()
		return ErrNotRunning
	}
	rc := o.current
	rc.signalStop()
	o.current = nil
	o.last = rc
	o.state = StateIdle
	o.mu.Unlock()

	if err := rc.fetcher.Close(); err != nil {
		o.logger.Warn("Failed to close fetcher", zap.Int64("run_id", rc.id), zap.Error(err))
	}
	o.releaseLock(ctx, rc)
	util.IngestionRunning.Set(0)

	o.logger.Info("Run stopped", zap.Int64("run_id", rc.id), zap.Any("stats", rc.stats()))
	return nil
}

// Status reports the current state and the counters of the active or last run
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Status{IsRunning: o.state == StateRunning, State: o.state}
	rc := o.current
	if rc == nil {
		rc = o.last
	}
	if rc != nil {
		s.RunID = rc.id
		s.Stats = rc.stats()
	}
	return s
}

// Logs returns the most recent run rows, newest first
func (o *Orchestrator) Logs(ctx context.Context, limit int) ([]models.IngestionRun, error) {
	if limit <= 0 {
		limit = DefaultLogsLimit
	}
	if limit > MaxLogsLimit {
		limit = MaxLogsLimit
	}
	runs, err := o.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func (o *Orchestrator) selectCategories(slugs []string) ([]config.CategorySource, error) {
	if len(slugs) == 0 {
		return o.cfg.Categories, nil
	}
	bySlug := make(map[string]config.CategorySource, len(o.cfg.Categories))
	for _, c := range o.cfg.Categories {
		bySlug[c.Slug] = c
	}
	selected := make([]config.CategorySource, 0, len(slugs))
	for _, s := range slugs {
		c, ok := bySlug[s]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, s)
		}
		selected = append(selected, c)
	}
	return selected, nil
}

// begin performs the idle -> running transition. The fetcher is opened after the
// state is published so Status stays responsive while a browser starts.
// An Open failure is fatal: the run row is marked failed.
func (o *Orchestrator) begin(ctx context.Context, opts StartOptions) (*runContext, *models.IngestionRun, error) {
	sources, err := o.selectCategories(opts.Categories)
	if err != nil {
		return nil, nil, err
	}
	fetcher, err := o.newFetcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		fetcher.Close()
		return nil, nil, ErrAlreadyRunning
	}

	rc := &runContext{sources: sources, fetcher: fetcher, stop: make(chan struct{})}
	if o.locker != nil {
		rc.lockToken = uuid.New().String()
		ok, err := o.locker.AcquireLock(ctx, runLockName, rc.lockToken, runLockTTL)
		if err != nil {
			o.mu.Unlock()
			fetcher.Close()
			return nil, nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !ok {
			o.mu.Unlock()
			fetcher.Close()
			return nil, nil, ErrAlreadyRunning
		}
	}

	run, err := o.store.CreateRun(ctx)
	if err != nil {
		o.mu.Unlock()
		fetcher.Close()
		o.releaseLock(ctx, rc)
		return nil, nil, fmt.Errorf("failed to create run log: %w", err)
	}
	rc.id = run.ID
	rc.ctx, rc.cancel = context.WithCancel(ctx)

	o.current = rc
	o.state = StateRunning
	o.mu.Unlock()

	util.IngestionRunning.Set(1)
	o.logger.Info("Run started", zap.Int64("run_id", rc.id), zap.Int("categories", len(sources)))

	if err := fetcher.Open(rc.ctx); err != nil {
		err = fmt.Errorf("failed to open %s fetcher: %w", o.cfg.Mode, err)
		o.finish(rc, err)
		return nil, nil, err
	}
	if rc.stopped() {
		fetcher.Close()
	}

	o.publishRunStarted(rc)
	return rc, run, nil
}

// execute runs the category loop and records the outcome
func (o *Orchestrator) execute(rc *runContext) error {
	ctx, span := util.StartSpan(rc.ctx, "Orchestrator.Run", "run_id", strconv.FormatInt(rc.id, 10))
	defer span.End()

	err := o.loop(ctx, rc)
	if errors.Is(err, errStopped) {
		err = nil
	}
	util.SpanError(span, err)
	o.finish(rc, err)
	return err
}

func (o *Orchestrator) loop(ctx context.Context, rc *runContext) error {
	for i, src := range rc.sources {
		if i > 0 {
			if err := o.pause(ctx, rc); err != nil {
				return err
			}
		}
		if rc.stopped() {
			return errStopped
		}

		if err := o.processCategory(ctx, rc, src); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			util.IngestionErrorsTotal.WithLabelValues("category").Inc()
			o.logger.Error("Category failed",
				zap.Int64("run_id", rc.id),
				zap.String("category", src.Slug),
				zap.Error(err))
		}
	}
	if rc.stopped() {
		return errStopped
	}
	return ctx.Err()
}

func (o *Orchestrator) processCategory(ctx context.Context, rc *runContext, src config.CategorySource) error {
	ctx, span := util.StartSpan(ctx, "Orchestrator.processCategory", "category", src.Slug)
	defer span.End()

	categoryID, err := o.store.FindOrCreateCategory(ctx, src.Name, src.Slug)
	if err != nil {
		util.SpanError(span, err)
		return err
	}

	pageURL := o.extractor.PageURL(src.Path)
	doc, err := rc.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		util.SpanError(span, err)
		return fmt.Errorf("failed to load category page: %w", err)
	}

	links := o.extractor.ProductLinks(doc)
	if limit := o.cfg.MaxProductsPerCategory; limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	o.logger.Info("Category listed",
		zap.Int64("run_id", rc.id),
		zap.String("category", src.Slug),
		zap.Int("products", len(links)))

	for i, link := range links {
		if i > 0 {
			if err := o.pause(ctx, rc); err != nil {
				return nil
			}
		}
		if rc.stopped() {
			return nil
		}
		o.refreshLock(ctx, rc)
		o.processProduct(ctx, rc, categoryID, link)
	}
	return nil
}

// processProduct never fails the run; every problem becomes a counted error
func (o *Orchestrator) processProduct(ctx context.Context, rc *runContext, categoryID int64, link scraper.ProductLink) {
	logger := o.logger.With(zap.Int64("run_id", rc.id), zap.String("url", link.URL))

	doc, err := rc.fetcher.Fetch(ctx, link.URL)
	if err != nil {
		o.countError(rc, "fetch")
		logger.Warn("Product fetch failed", zap.Error(err))
		return
	}

	candidate := o.extractor.Extract(doc, link)
	rc.parsed.Add(1)
	util.ProductsParsedTotal.Inc()

	if err := scraper.Validate(candidate); err != nil {
		o.countError(rc, "validate")
		logger.Info("Product rejected",
			zap.String("name", candidate.Name),
			zap.String("price", candidate.Price.String()),
			zap.Error(err))
		return
	}

	res, err := o.writer.Upsert(ctx, rc.id, &categoryID, link.URL, candidate)
	if err != nil {
		o.countError(rc, "persist")
		logger.Error("Product persist failed", zap.Error(err))
		return
	}

	if res.Created {
		rc.added.Add(1)
		util.ProductsAddedTotal.Inc()
	} else {
		rc.updated.Add(1)
		util.ProductsUpdatedTotal.Inc()
	}
}

func (o *Orchestrator) countError(rc *runContext, stage string) {
	rc.errs.Add(1)
	util.IngestionErrorsTotal.WithLabelValues(stage).Inc()
}

// pause waits the configured delay. It returns early with errStopped or the context error.
func (o *Orchestrator) pause(ctx context.Context, rc *runContext) error {
	if o.cfg.ProductDelay <= 0 {
		if rc.stopped() {
			return errStopped
		}
		return ctx.Err()
	}
	timer := time.NewTimer(o.cfg.ProductDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-rc.stop:
		return errStopped
	case <-timer.C:
		return nil
	}
}

// finish records the terminal state of rc unless it was stopped
func (o *Orchestrator) finish(rc *runContext, runErr error) {
	if err := rc.fetcher.Close(); err != nil {
		o.logger.Warn("Failed to close fetcher", zap.Int64("run_id", rc.id), zap.Error(err))
	}
	defer rc.cancel()

	status := models.RunStatusCompleted
	state := StateCompleted
	if runErr != nil {
		status = models.RunStatusFailed
		state = StateFailed
	}

	// Stop signals under the same mutex, so a stopped run never reaches its row
	o.mu.Lock()
	if rc.stopped() {
		o.mu.Unlock()
		return
	}
	o.current = nil
	o.last = rc
	o.state = state
	o.mu.Unlock()

	util.IngestionRunning.Set(0)
	util.IngestionRunsTotal.WithLabelValues(status).Inc()

	// the run context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats := rc.stats()
	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
	}
	if err := o.store.FinishRun(ctx, rc.id, status, stats, errMsg); err != nil {
		o.logger.Error("Failed to write run result", zap.Int64("run_id", rc.id), zap.Error(err))
	}
	o.releaseLock(ctx, rc)

	fields := []zap.Field{zap.Int64("run_id", rc.id), zap.String("status", status), zap.Any("stats", stats)}
	if runErr != nil {
		o.logger.Error("Run failed", append(fields, zap.Error(runErr))...)
	} else {
		o.logger.Info("Run completed", fields...)
	}

	event := &models.RunFinishedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeRunFinished,
			Timestamp: time.Now(),
		},
		RunID:  rc.id,
		Status: status,
		Stats:  stats,
	}
	if errMsg != nil {
		event.ErrorMessage = *errMsg
	}
	if err := o.events.PublishRunFinished(ctx, event); err != nil {
		o.logger.Error("Failed to publish RunFinished event", zap.Error(err))
	}
}

func (o *Orchestrator) publishRunStarted(rc *runContext) {
	event := &models.RunStartedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeRunStarted,
			Timestamp: time.Now(),
		},
		RunID: rc.id,
	}
	if err := o.events.PublishRunStarted(rc.ctx, event); err != nil {
		o.logger.Error("Failed to publish RunStarted event", zap.Error(err))
	}
}

func (o *Orchestrator) refreshLock(ctx context.Context, rc *runContext) {
	if o.locker == nil || rc.lockToken == "" {
		return
	}
	ok, err := o.locker.RefreshLock(ctx, runLockName, rc.lockToken, runLockTTL)
	if err != nil {
		o.logger.Warn("Failed to refresh run lock", zap.Error(err))
		return
	}
	if !ok {
		o.logger.Warn("Run lock lost", zap.Int64("run_id", rc.id))
	}
}

func (o *Orchestrator) releaseLock(ctx context.Context, rc *runContext) {
	if o.locker == nil || rc.lockToken == "" {
		return
	}
	if err := o.locker.ReleaseLock(ctx, runLockName, rc.lockToken); err != nil {
		o.logger.Warn("Failed to release run lock", zap.Error(err))
	}
}
