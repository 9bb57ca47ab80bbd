package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. SourceURL is the dedup key for ingested rows.
type Product struct {
	ID              int64               `db:"id" json:"id"`
	CategoryID      *int64              `db:"category_id" json:"category_id,omitempty"`
	Name            string              `db:"name" json:"name"`
	Slug            string              `db:"slug" json:"slug"`
	SKU             *string             `db:"sku" json:"sku,omitempty"`
	Description     string              `db:"description" json:"description"`
	Price           decimal.Decimal     `db:"price" json:"price"`
	OldPrice        decimal.NullDecimal `db:"old_price" json:"old_price"`
	DiscountPercent int                 `db:"discount_percent" json:"discount_percent"`
	InStock         bool                `db:"in_stock" json:"in_stock"`
	StockQuantity   int                 `db:"stock_quantity" json:"stock_quantity"`
	MainImage       *string             `db:"main_image" json:"main_image,omitempty"`
	ViewsCount      int                 `db:"views_count" json:"views_count"`
	Rating          decimal.Decimal     `db:"rating" json:"rating"`
	ReviewsCount    int                 `db:"reviews_count" json:"reviews_count"`
	IsFeatured      bool                `db:"is_featured" json:"is_featured"`
	IsNew           bool                `db:"is_new" json:"is_new"`
	IsSale          bool                `db:"is_sale" json:"is_sale"`
	MetaTitle       *string             `db:"meta_title" json:"meta_title,omitempty"`
	MetaDescription *string             `db:"meta_description" json:"meta_description,omitempty"`
	SourceURL       *string             `db:"source_url" json:"source_url,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// ProductImage is a stored image file belonging to one product.
type ProductImage struct {
	ID        int64     `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	ImageURL  string    `db:"image_url" json:"image_url"`
	IsMain    bool      `db:"is_main" json:"is_main"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IngestionRun is the audit row written once per orchestrator invocation.
type IngestionRun struct {
	ID              int64      `db:"id" json:"id"`
	StartTime       time.Time  `db:"start_time" json:"start_time"`
	EndTime         *time.Time `db:"end_time" json:"end_time"`
	Status          string     `db:"status" json:"status"`
	ProductsParsed  int        `db:"products_parsed" json:"products_parsed"`
	ProductsAdded   int        `db:"products_added" json:"products_added"`
	ProductsUpdated int        `db:"products_updated" json:"products_updated"`
	ErrorsCount     int        `db:"errors_count" json:"errors_count"`
	ErrorMessage    *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunStats are the in-memory counters of one ingestion run.
type RunStats struct {
	Parsed  int `json:"parsed"`
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// Attribute is a scraped name/value pair before it is persisted.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProductCandidate is what the extractor produces from one product page.
type ProductCandidate struct {
	Name        string              `json:"name"`
	Price       decimal.Decimal     `json:"price"`
	OldPrice    decimal.NullDecimal `json:"old_price"`
	Description string              `json:"description"`
	// DescriptionFound is false when Description was synthesized from the name.
	DescriptionFound bool        `json:"description_found"`
	SKU              string      `json:"sku"`
	Images           []string    `json:"images"`
	Attributes       []Attribute `json:"attributes"`
}
