package service

import (
	"context"
	"time"

	"catalog-ingest/internal/models"
)

// CatalogStore is the part of the store the catalog writer needs
type CatalogStore interface {
	GetProductBySourceURL(ctx context.Context, url string) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProductPricing(ctx context.Context, p *models.Product) error
	CreateProductAttributes(ctx context.Context, productID int64, attrs []models.Attribute) error
}

// RunStore persists run-log rows and categories for the orchestrator
type RunStore interface {
	FindOrCreateCategory(ctx context.Context, name, slug string) (int64, error)
	CreateRun(ctx context.Context) (*models.IngestionRun, error)
	FinishRun(ctx context.Context, runID int64, status string, stats models.RunStats, errMsg *string) error
	ListRuns(ctx context.Context, limit int) ([]models.IngestionRun, error)
}

// ImageSaver stores product images and reports how many were kept
type ImageSaver interface {
	Process(ctx context.Context, productID int64, urls []string) (int, error)
}

// EventPublisher is implemented by broker.EventPublisher
type EventPublisher interface {
	PublishRunStarted(ctx context.Context, event *models.RunStartedEvent) error
	PublishRunFinished(ctx context.Context, event *models.RunFinishedEvent) error
	PublishProductIngested(ctx context.Context, event *models.ProductIngestedEvent) error
}

// Locker is implemented by redisclient.Client
type Locker interface {
	AcquireLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	RefreshLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, token string) error
}

type noopPublisher struct{}

func (noopPublisher) PublishRunStarted(context.Context, *models.RunStartedEvent) error   { return nil }
func (noopPublisher) PublishRunFinished(context.Context, *models.RunFinishedEvent) error { return nil }
func (noopPublisher) PublishProductIngested(context.Context, *models.ProductIngestedEvent) error {
	return nil
}
