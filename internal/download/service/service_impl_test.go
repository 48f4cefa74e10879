package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountrepo "github.com/smallbiznis/storefront/internal/account/repository"
	catalogrepo "github.com/smallbiznis/storefront/internal/catalog/repository"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/download/domain"
	"github.com/smallbiznis/storefront/internal/download/service"
	entitlementrepo "github.com/smallbiznis/storefront/internal/entitlement/repository"
	historyrepo "github.com/smallbiznis/storefront/internal/history/repository"
	"github.com/smallbiznis/storefront/internal/payment/adapters/stripe"
	paymentrepo "github.com/smallbiznis/storefront/internal/payment/repository"
	"github.com/smallbiznis/storefront/internal/payment/webhook"
	"github.com/smallbiznis/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	accountID = int64(7)
	productID = int64(100)
	assetID   = int64(500)
)

type fakePresigner struct {
	configured bool
	err        error
	keys       []string
	ttl        time.Duration
}

func (f *fakePresigner) Configured() bool { return f.configured }

func (f *fakePresigner) Missing() []string {
	if f.configured {
		return nil
	}
	return []string{"S3_BUCKET"}
}

func (f *fakePresigner) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	f.ttl = ttl
	return "https://bucket.test/signed?sig=abc", nil
}

var now = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newGate(t *testing.T, presigner *fakePresigner) (domain.Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.InsertAccount(t, db, accountID, "ada@example.com")
	testutil.InsertProduct(t, db, productID, "diy-kit", "price_diy_kit", true)
	testutil.InsertAsset(t, db, assetID, productID, "products/diy/bundle.zip", true)
	testutil.InsertAsset(t, db, 501, productID, "products/diy/old.zip", false)

	svc := service.New(service.Params{
		DB:           db,
		Log:          zap.NewNop(),
		Cfg:          config.Config{},
		Clock:        clock.NewFakeClock(now),
		Catalog:      catalogrepo.Provide(),
		Entitlements: entitlementrepo.Provide(),
		Presigner:    presigner,
	})
	return svc, db
}

func TestAuthorizeCheckOrder(t *testing.T) {
	expired := now.Add(-time.Minute)
	cases := []struct {
		name    string
		setup   func(t *testing.T, db *gorm.DB)
		assetID int64
		want    error
	}{
		{name: "unknown asset", assetID: 999, want: domain.ErrAssetNotFound},
		{
			name:    "inactive asset wins over missing entitlement",
			assetID: 501,
			want:    domain.ErrAssetGone,
		},
		{name: "no entitlement", assetID: assetID, want: domain.ErrNotEntitled},
		{
			name: "revoked entitlement",
			setup: func(t *testing.T, db *gorm.DB) {
				testutil.InsertEntitlement(t, db, 1, accountID, productID, false, nil)
			},
			assetID: assetID,
			want:    domain.ErrNotEntitled,
		},
		{
			name: "expired entitlement",
			setup: func(t *testing.T, db *gorm.DB) {
				testutil.InsertEntitlement(t, db, 1, accountID, productID, true, &expired)
			},
			assetID: assetID,
			want:    domain.ErrEntitlementExpired,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			presigner := &fakePresigner{configured: true}
			svc, db := newGate(t, presigner)
			if tc.setup != nil {
				tc.setup(t, db)
			}
			_, err := svc.Authorize(context.Background(), snowflake.ID(accountID), snowflake.ID(tc.assetID))
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, presigner.keys)
		})
	}
}

func TestAuthorizeSignsShortLivedLink(t *testing.T) {
	presigner := &fakePresigner{configured: true}
	svc, db := newGate(t, presigner)
	expiresAt := now
	testutil.InsertEntitlement(t, db, 1, accountID, productID, true, &expiresAt)

	link, err := svc.Authorize(context.Background(), snowflake.ID(accountID), snowflake.ID(assetID))
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.test/signed?sig=abc", link.URL)
	assert.Equal(t, now.Add(5*time.Minute), link.ExpiresAt)
	assert.Equal(t, 5*time.Minute, presigner.ttl)
	assert.Equal(t, []string{"products/diy/bundle.zip"}, presigner.keys)

	body, err := json.Marshal(link)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "bundle.zip")
}

func TestAuthorizeStorageNotConfigured(t *testing.T) {
	svc, db := newGate(t, &fakePresigner{})
	testutil.InsertEntitlement(t, db, 1, accountID, productID, true, nil)

	_, err := svc.Authorize(context.Background(), snowflake.ID(accountID), snowflake.ID(assetID))
	require.ErrorIs(t, err, domain.ErrStorageNotConfigured)

	var unavailable *domain.StorageUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, snowflake.ID(assetID), unavailable.AssetID)
	assert.Equal(t, []string{"S3_BUCKET"}, unavailable.Missing)
	assert.NotContains(t, err.Error(), "bundle.zip")
}

func TestAuthorizePresignFailure(t *testing.T) {
	svc, db := newGate(t, &fakePresigner{configured: true, err: errors.New("signer exploded: products/diy/bundle.zip")})
	testutil.InsertEntitlement(t, db, 1, accountID, productID, true, nil)

	_, err := svc.Authorize(context.Background(), snowflake.ID(accountID), snowflake.ID(assetID))
	require.ErrorIs(t, err, domain.ErrPresignFailed)
	assert.False(t, strings.Contains(err.Error(), "bundle.zip"))
}

func TestListDownloadsSkipsUnusable(t *testing.T) {
	svc, db := newGate(t, &fakePresigner{configured: true})
	testutil.InsertProduct(t, db, 101, "full-kit", "price_full_kit", true)
	testutil.InsertAsset(t, db, 510, 101, "products/full/bundle.zip", true)
	testutil.InsertProduct(t, db, 102, "addon-kit", "price_addon_kit", true)
	testutil.InsertAsset(t, db, 520, 102, "products/addon/bundle.zip", true)

	expired := now.Add(-time.Hour)
	testutil.InsertEntitlement(t, db, 1, accountID, productID, true, nil)
	testutil.InsertEntitlement(t, db, 2, accountID, 101, true, &expired)
	testutil.InsertEntitlement(t, db, 3, accountID, 102, false, nil)

	owned, err := svc.ListDownloads(context.Background(), snowflake.ID(accountID))
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, snowflake.ID(productID), owned[0].Product.ID)
	require.Len(t, owned[0].Assets, 1)
	assert.Equal(t, snowflake.ID(assetID), owned[0].Assets[0].ID)

	empty, err := svc.ListDownloads(context.Background(), snowflake.ID(999))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestDownloadUnlockedByCompletedCheckout(t *testing.T) {
	presigner := &fakePresigner{configured: true}
	svc, db := newGate(t, presigner)
	ctx := context.Background()

	_, err := svc.Authorize(ctx, snowflake.ID(accountID), snowflake.ID(assetID))
	require.ErrorIs(t, err, domain.ErrNotEntitled)

	reconciler := webhook.NewService(webhook.Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        testutil.NewNode(t),
		Clock:        clock.NewFakeClock(now),
		Adapter:      stripe.NewAdapter("whsec_test", 0, nil),
		Repo:         paymentrepo.Provide(),
		Accounts:     accountrepo.Provide(),
		Catalog:      catalogrepo.Provide(),
		Entitlements: entitlementrepo.Provide(),
		History:      historyrepo.Provide(),
		Pricing:      config.NewStaticPricing(nil),
	})
	payload, err := json.Marshal(map[string]any{
		"id":   "evt_unlock",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": map[string]any{
			"id":             "cs_unlock",
			"mode":           "payment",
			"payment_status": "paid",
			"customer_email": "ada@example.com",
			"metadata":       map[string]any{"userId": "7", "productId": "100"},
		}},
	})
	require.NoError(t, err)
	headers := http.Header{}
	headers.Set("Stripe-Signature", stripe.SignatureHeader("whsec_test", payload, time.Now().Unix()))
	_, err = reconciler.IngestWebhook(ctx, payload, headers)
	require.NoError(t, err)

	link, err := svc.Authorize(ctx, snowflake.ID(accountID), snowflake.ID(assetID))
	require.NoError(t, err)
	assert.NotEmpty(t, link.URL)
	assert.True(t, link.ExpiresAt.After(now))
}
