package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/cache"
	"github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/catalog/repository"
	"github.com/smallbiznis/storefront/internal/catalog/service"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListProductsHidesProductsWithoutActiveAssets(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.InsertProduct(t, db, 1, "diy-kit", "price_diy", true)
	testutil.InsertProduct(t, db, 2, "empty", "price_empty", true)
	testutil.InsertProduct(t, db, 3, "retired", "price_retired", false)
	testutil.InsertAsset(t, db, 10, 1, "kits/diy.zip", true)
	testutil.InsertAsset(t, db, 11, 2, "kits/old.zip", false)
	testutil.InsertAsset(t, db, 12, 3, "kits/retired.zip", true)

	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})
	views, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "diy-kit", views[0].Slug)
	assert.Equal(t, "49.00 USD", views[0].DisplayPrice)
	require.Len(t, views[0].Assets, 1)

	body, err := json.Marshal(views)
	require.NoError(t, err)
	if strings.Contains(string(body), "kits/diy.zip") {
		t.Fatalf("storage key leaked in catalog payload: %s", body)
	}
}

func TestLookupsReturnNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})
	ctx := context.Background()

	_, err := svc.GetProduct(ctx, snowflake.ID(99))
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	_, err = svc.GetProductByPriceID(ctx, "price_missing")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	_, err = svc.GetAsset(ctx, snowflake.ID(99))
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)

	testutil.InsertProduct(t, db, 5, "full", "price_full", true)
	p, err := svc.GetProductByPriceID(ctx, "price_full")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(5), p.ID)
}

func TestUpsertProductMatchesOnSlug(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.Provide()
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := repo.UpsertProduct(ctx, db, &domain.Product{
		ID: 1, Slug: "diy-kit", Name: "DIY Kit", StripePriceID: "price_a",
		Price: 4900, Currency: "usd", Active: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	second, err := repo.UpsertProduct(ctx, db, &domain.Product{
		ID: 2, Slug: "diy-kit", Name: "DIY Kit v2", StripePriceID: "price_b",
		Price: 5900, Currency: "usd", Active: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "DIY Kit v2", second.Name)
	assert.Equal(t, "price_b", second.StripePriceID)
	assert.Equal(t, int64(1), testutil.Count(t, db, "products"))

	asset, err := repo.UpsertAsset(ctx, db, &domain.Asset{
		ID: 10, ProductID: first.ID, Name: "Guide", StorageKey: "kits/guide.pdf",
		ContentType: "application/pdf", Active: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	again, err := repo.UpsertAsset(ctx, db, &domain.Asset{
		ID: 11, ProductID: first.ID, Name: "Guide (2nd ed.)", StorageKey: "kits/guide.pdf",
		ContentType: "application/pdf", Active: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, asset.ID, again.ID)
	assert.Equal(t, "Guide (2nd ed.)", again.Name)
}

func TestListProductsServesFromCache(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.InsertProduct(t, db, 1, "diy-kit", "price_diy", true)
	testutil.InsertAsset(t, db, 10, 1, "kits/diy.zip", true)

	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Repo:  repository.Provide(),
		Cache: cache.NewCatalogCache(fake),
	})
	ctx := context.Background()

	views, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)

	require.NoError(t, db.Exec(`UPDATE products SET active = ? WHERE id = ?`, false, 1).Error)

	cached, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	fake.Advance(time.Minute)
	fresh, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh)
}
