package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindProductByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	FindProductBySlug(ctx context.Context, db *gorm.DB, slug string) (*Product, error)
	FindProductByPriceID(ctx context.Context, db *gorm.DB, priceID string) (*Product, error)
	ListActiveProducts(ctx context.Context, db *gorm.DB) ([]Product, error)
	ListProductsByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Product, error)

	FindAssetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Asset, error)
	ListActiveAssets(ctx context.Context, db *gorm.DB, productIDs []snowflake.ID) ([]Asset, error)

	// UpsertProduct matches on slug and returns the stored row.
	UpsertProduct(ctx context.Context, db *gorm.DB, product *Product) (*Product, error)
	// UpsertAsset matches on (product_id, storage_key) and returns the stored row.
	UpsertAsset(ctx context.Context, db *gorm.DB, asset *Asset) (*Asset, error)
}
