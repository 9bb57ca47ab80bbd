package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"catalog-ingest/internal/models"
	"catalog-ingest/internal/util"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultStockQuantity = 10
	metaDescriptionRunes = 160
)

var hundred = decimal.NewFromInt(100)

// CatalogWriter upserts extracted candidates keyed by their source URL
type CatalogWriter struct {
	store  CatalogStore
	images ImageSaver
	events EventPublisher
	now    func() time.Time
	logger *zap.Logger
}

// NewCatalogWriter creates a catalog writer. events may be nil.
func NewCatalogWriter(store CatalogStore, images ImageSaver, events EventPublisher) *CatalogWriter {
	if events == nil {
		events = noopPublisher{}
	}
	return &CatalogWriter{
		store:  store,
		images: images,
		events: events,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

// UpsertResult describes what one Upsert did
type UpsertResult struct {
	ProductID       int64 `json:"product_id"`
	Created         bool  `json:"created"`
	ImagesSaved     int   `json:"images_saved"`
	AttributesSaved int   `json:"attributes_saved"`
}

// DiscountPercent returns round((old-price)/old*100), or 0 without a usable old price
func DiscountPercent(price decimal.Decimal, oldPrice decimal.NullDecimal) int {
	if !oldPrice.Valid || !oldPrice.Decimal.IsPositive() {
		return 0
	}
	pct := oldPrice.Decimal.Sub(price).Div(oldPrice.Decimal).Mul(hundred).Round(0)
	if pct.IsNegative() {
		return 0
	}
	return int(pct.IntPart())
}

// MakeSlug builds a URL slug from name with a millisecond suffix for uniqueness
func MakeSlug(name string, now time.Time) string {
	base := slug.Make(name)
	if base == "" {
		base = "product"
	}
	return base + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// Upsert creates the entry for sourceURL or refreshes its pricing. Images and
// attributes are only written for new entries.
func (w *CatalogWriter) Upsert(ctx context.Context, runID int64, categoryID *int64, sourceURL string, c *models.ProductCandidate) (*UpsertResult, error) {
	ctx, span := util.StartSpan(ctx, "CatalogWriter.Upsert", "source_url", sourceURL)
	defer span.End()

	existing, err := w.store.GetProductBySourceURL(ctx, sourceURL)
	if err != nil {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}

	if existing != nil {
		return w.update(ctx, runID, existing, c)
	}
	return w.create(ctx, runID, categoryID, sourceURL, c)
}

func (w *CatalogWriter) update(ctx context.Context, runID int64, p *models.Product, c *models.ProductCandidate) (*UpsertResult, error) {
	p.Price = c.Price
	p.OldPrice = c.OldPrice
	p.DiscountPercent = DiscountPercent(c.Price, c.OldPrice)
	p.IsSale = c.OldPrice.Valid
	if c.DescriptionFound {
		p.Description = c.Description
	}

	if err := w.store.UpdateProductPricing(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}

	w.logger.Info("Product updated",
		zap.Int64("product_id", p.ID),
		zap.String("price", p.Price.String()))
	w.publish(ctx, runID, models.EventTypeProductUpdated, p)

	return &UpsertResult{ProductID: p.ID}, nil
}

func (w *CatalogWriter) create(ctx context.Context, runID int64, categoryID *int64, sourceURL string, c *models.ProductCandidate) (*UpsertResult, error) {
	now := w.now()
	src := sourceURL
	name := c.Name
	meta := truncate(c.Description, metaDescriptionRunes)

	p := &models.Product{
		CategoryID:      categoryID,
		Name:            c.Name,
		Slug:            MakeSlug(c.Name, now),
		Description:     c.Description,
		Price:           c.Price,
		OldPrice:        c.OldPrice,
		DiscountPercent: DiscountPercent(c.Price, c.OldPrice),
		InStock:         true,
		StockQuantity:   defaultStockQuantity,
		IsNew:           true,
		IsSale:          c.OldPrice.Valid,
		MetaTitle:       &name,
		MetaDescription: &meta,
		SourceURL:       &src,
	}
	if c.SKU != "" {
		sku := c.SKU
		p.SKU = &sku
	}

	if err := w.store.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	w.logger.Info("Product created",
		zap.Int64("product_id", p.ID),
		zap.String("slug", p.Slug),
		zap.String("price", p.Price.String()))

	result := &UpsertResult{ProductID: p.ID, Created: true}

	saved, err := w.images.Process(ctx, p.ID, c.Images)
	result.ImagesSaved = saved
	if err != nil {
		w.logger.Warn("Image processing interrupted", zap.Int64("product_id", p.ID), zap.Error(err))
	}

	if err := w.store.CreateProductAttributes(ctx, p.ID, c.Attributes); err != nil {
		w.logger.Error("Failed to save attributes", zap.Int64("product_id", p.ID), zap.Error(err))
	} else {
		result.AttributesSaved = len(c.Attributes)
	}

	w.publish(ctx, runID, models.EventTypeProductAdded, p)
	return result, nil
}

func (w *CatalogWriter) publish(ctx context.Context, runID int64, eventType string, p *models.Product) {
	event := &models.ProductIngestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		RunID:     runID,
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price.StringFixed(2),
	}
	if p.SourceURL != nil {
		event.SourceURL = *p.SourceURL
	}
	if p.OldPrice.Valid {
		event.OldPrice = p.OldPrice.Decimal.StringFixed(2)
	}

	if err := w.events.PublishProductIngested(ctx, event); err != nil {
		w.logger.Error("Failed to publish product event", zap.String("type", eventType), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
