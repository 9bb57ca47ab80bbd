package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"catalog-ingest/internal/models"
)

// GetProductBySourceURL returns nil, nil when no entry was ingested from url
func (s *Store) GetProductBySourceURL(ctx context.Context, url string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE source_url = $1", url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a catalog entry and fills in its generated columns
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (
			category_id, name, slug, sku, description, price, old_price, discount_percent,
			in_stock, stock_quantity, is_featured, is_new, is_sale,
			meta_title, meta_description, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		p.CategoryID, p.Name, p.Slug, p.SKU, p.Description, p.Price, p.OldPrice, p.DiscountPercent,
		p.InStock, p.StockQuantity, p.IsFeatured, p.IsNew, p.IsSale,
		p.MetaTitle, p.MetaDescription, p.SourceURL)

	return row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// UpdateProductPricing rewrites the fields re-ingestion is allowed to touch
func (s *Store) UpdateProductPricing(ctx context.Context, p *models.Product) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET price = $1, old_price = $2, discount_percent = $3, is_sale = $4,
		    description = $5, updated_at = NOW()
		WHERE id = $6`,
		p.Price, p.OldPrice, p.DiscountPercent, p.IsSale, p.Description, p.ID)
	return err
}

// SetProductMainImage points the listing thumbnail at an image path
func (s *Store) SetProductMainImage(ctx context.Context, productID int64, imageURL string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET main_image = $1, updated_at = NOW() WHERE id = $2",
		imageURL, productID)
	return err
}

// CreateProductImage inserts an image row
func (s *Store) CreateProductImage(ctx context.Context, img *models.ProductImage) error {
	query := `
		INSERT INTO product_images (product_id, image_url, is_main, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		img.ProductID, img.ImageURL, img.IsMain, img.SortOrder).Scan(&img.ID, &img.CreatedAt)
}

// CreateProductAttributes inserts all attributes of a product in one transaction
func (s *Store) CreateProductAttributes(ctx context.Context, productID int64, attrs []models.Attribute) error {
	if len(attrs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		"INSERT INTO product_attributes (product_id, attribute_name, attribute_value) VALUES ($1, $2, $3)")
	if err != nil {
		return fmt.Errorf("failed to prepare attribute insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range attrs {
		if _, err := stmt.ExecContext(ctx, productID, a.Name, a.Value); err != nil {
			return fmt.Errorf("failed to insert attribute %q: %w", a.Name, err)
		}
	}

	return tx.Commit()
}

// FindOrCreateCategory returns the id of the category with slug, creating it when missing
func (s *Store) FindOrCreateCategory(ctx context.Context, name, slug string) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, `
		INSERT INTO categories (name, slug, description, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		RETURNING id`,
		name, slug, name+" - широкий выбор")
	if err != nil {
		return 0, fmt.Errorf("failed to resolve category %s: %w", slug, err)
	}
	return id, nil
}
