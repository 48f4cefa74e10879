package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/catalog/domain"
	"gorm.io/gorm"
)

const (
	productColumns = `id, slug, name, description, stripe_price_id, price, currency, active, created_at, updated_at`
	assetColumns   = `id, product_id, name, description, storage_key, file_size, content_type, active, created_at, updated_at`
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) findProduct(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE `+where, arg,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindProductByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	return r.findProduct(ctx, db, "id = ?", id)
}

func (r *repo) FindProductBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Product, error) {
	return r.findProduct(ctx, db, "slug = ?", slug)
}

func (r *repo) FindProductByPriceID(ctx context.Context, db *gorm.DB, priceID string) (*domain.Product, error) {
	return r.findProduct(ctx, db, "stripe_price_id = ?", priceID)
}

func (r *repo) ListActiveProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT ` + productColumns + ` FROM products WHERE active = TRUE ORDER BY price ASC, name ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListProductsByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE id IN ? ORDER BY name ASC`, ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindAssetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Asset, error) {
	var a domain.Asset
	err := db.WithContext(ctx).Raw(
		`SELECT `+assetColumns+` FROM assets WHERE id = ?`, id,
	).Scan(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, nil
	}
	return &a, nil
}

func (r *repo) ListActiveAssets(ctx context.Context, db *gorm.DB, productIDs []snowflake.ID) ([]domain.Asset, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var items []domain.Asset
	err := db.WithContext(ctx).Raw(
		`SELECT `+assetColumns+` FROM assets WHERE active = TRUE AND product_id IN ? ORDER BY name ASC`, productIDs,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertProduct(ctx context.Context, db *gorm.DB, product *domain.Product) (*domain.Product, error) {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO products (`+productColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (slug) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   stripe_price_id = excluded.stripe_price_id,
		   price = excluded.price,
		   currency = excluded.currency,
		   active = excluded.active,
		   updated_at = excluded.updated_at`,
		product.ID,
		product.Slug,
		product.Name,
		product.Description,
		product.StripePriceID,
		product.Price,
		product.Currency,
		product.Active,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
	if err != nil {
		return nil, err
	}
	return r.FindProductBySlug(ctx, db, product.Slug)
}

func (r *repo) UpsertAsset(ctx context.Context, db *gorm.DB, asset *domain.Asset) (*domain.Asset, error) {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO assets (`+assetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (product_id, storage_key) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   file_size = excluded.file_size,
		   content_type = excluded.content_type,
		   active = excluded.active,
		   updated_at = excluded.updated_at`,
		asset.ID,
		asset.ProductID,
		asset.Name,
		asset.Description,
		asset.StorageKey,
		asset.FileSize,
		asset.ContentType,
		asset.Active,
		asset.CreatedAt,
		asset.UpdatedAt,
	).Error
	if err != nil {
		return nil, err
	}

	var stored domain.Asset
	err = db.WithContext(ctx).Raw(
		`SELECT `+assetColumns+` FROM assets WHERE product_id = ? AND storage_key = ?`,
		asset.ProductID, asset.StorageKey,
	).Scan(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}
