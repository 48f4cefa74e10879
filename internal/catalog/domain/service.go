package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	ListProducts(ctx context.Context) ([]ProductView, error)
	GetProduct(ctx context.Context, id snowflake.ID) (*Product, error)
	GetProductByPriceID(ctx context.Context, priceID string) (*Product, error)
	GetAsset(ctx context.Context, id snowflake.ID) (*Asset, error)
}

var (
	ErrProductNotFound = errors.New("product_not_found")
	ErrAssetNotFound   = errors.New("asset_not_found")
)
