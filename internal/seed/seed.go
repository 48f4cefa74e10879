// Package seed loads the product catalog from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/pkg/money"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultContentType = "application/octet-stream"

type Catalog struct {
	Products []ProductEntry `mapstructure:"products"`
}

type ProductEntry struct {
	Name          string       `mapstructure:"name"`
	Slug          string       `mapstructure:"slug"`
	Description   string       `mapstructure:"description"`
	StripePriceID string       `mapstructure:"stripe_price_id"`
	Price         string       `mapstructure:"price"`
	Currency      string       `mapstructure:"currency"`
	Active        *bool        `mapstructure:"active"`
	Assets        []AssetEntry `mapstructure:"assets"`
}

type AssetEntry struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	StorageKey  string `mapstructure:"storage_key"`
	FileSize    int64  `mapstructure:"file_size"`
	ContentType string `mapstructure:"content_type"`
	Active      *bool  `mapstructure:"active"`
}

type Result struct {
	Products int
	Assets   int
}

// LoadCatalog reads a catalog file in any format viper understands.
func LoadCatalog(path string) (Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	var catalog Catalog
	if err := v.Unmarshal(&catalog); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	return catalog, nil
}

// Apply upserts every product and asset in one transaction. Products are
// keyed by slug and assets by (product, storage key), so reruns converge.
func Apply(ctx context.Context, db *gorm.DB, repo catalogdomain.Repository, node *snowflake.Node, catalog Catalog, log *zap.Logger) (*Result, error) {
	if db == nil {
		return nil, errors.New("seed database handle is required")
	}
	if len(catalog.Products) == 0 {
		return nil, errors.New("catalog has no products")
	}

	result := &Result{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for i, entry := range catalog.Products {
			product, err := productFromEntry(entry, node.Generate(), now)
			if err != nil {
				return fmt.Errorf("products[%d]: %w", i, err)
			}
			stored, err := repo.UpsertProduct(ctx, tx, product)
			if err != nil {
				return fmt.Errorf("upsert product %s: %w", product.Slug, err)
			}
			result.Products++

			for j, a := range entry.Assets {
				asset, err := assetFromEntry(a, stored.ID, node.Generate(), now)
				if err != nil {
					return fmt.Errorf("products[%d].assets[%d]: %w", i, j, err)
				}
				if _, err := repo.UpsertAsset(ctx, tx, asset); err != nil {
					return fmt.Errorf("upsert asset for %s: %w", product.Slug, err)
				}
				result.Assets++
			}
			log.Info("product seeded",
				zap.String("slug", stored.Slug),
				zap.Int("assets", len(entry.Assets)),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func productFromEntry(entry ProductEntry, id snowflake.ID, now time.Time) (*catalogdomain.Product, error) {
	name := strings.TrimSpace(entry.Name)
	if name == "" {
		return nil, errors.New("name is required")
	}
	priceID := strings.TrimSpace(entry.StripePriceID)
	if priceID == "" {
		return nil, errors.New("stripe_price_id is required")
	}
	currency := strings.ToLower(strings.TrimSpace(entry.Currency))
	if currency == "" {
		currency = "usd"
	}
	amount, err := money.ToMinor(entry.Price, currency)
	if err != nil {
		return nil, err
	}

	productSlug := strings.TrimSpace(entry.Slug)
	if productSlug == "" {
		productSlug = slug.Make(name)
	}
	if !slug.IsSlug(productSlug) {
		return nil, fmt.Errorf("invalid slug %q", productSlug)
	}

	return &catalogdomain.Product{
		ID:            id,
		Slug:          productSlug,
		Name:          name,
		Description:   optional(entry.Description),
		StripePriceID: priceID,
		Price:         amount,
		Currency:      currency,
		Active:        entry.Active == nil || *entry.Active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func assetFromEntry(entry AssetEntry, productID, id snowflake.ID, now time.Time) (*catalogdomain.Asset, error) {
	key := strings.TrimSpace(entry.StorageKey)
	if key == "" {
		return nil, errors.New("storage_key is required")
	}
	name := strings.TrimSpace(entry.Name)
	if name == "" {
		name = key[strings.LastIndex(key, "/")+1:]
	}
	contentType := strings.TrimSpace(entry.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	var size *int64
	if entry.FileSize > 0 {
		size = &entry.FileSize
	}
	return &catalogdomain.Asset{
		ID:          id,
		ProductID:   productID,
		Name:        name,
		Description: optional(entry.Description),
		StorageKey:  key,
		FileSize:    size,
		ContentType: contentType,
		Active:      entry.Active == nil || *entry.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
