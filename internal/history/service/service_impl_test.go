package service_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountrepo "github.com/smallbiznis/storefront/internal/account/repository"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/history/domain"
	"github.com/smallbiznis/storefront/internal/history/repository"
	"github.com/smallbiznis/storefront/internal/history/service"
	"github.com/smallbiznis/storefront/internal/providers/pdf"
	"github.com/smallbiznis/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type capturePDF struct {
	last pdf.ReceiptData
}

func (c *capturePDF) GenerateReceipt(ctx context.Context, data pdf.ReceiptData) (io.Reader, error) {
	c.last = data
	return bytes.NewReader([]byte("%PDF-fake")), nil
}

func newService(t *testing.T, renderer pdf.Provider) (domain.Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return service.New(service.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Cfg:      config.Config{AppName: "Storefront"},
		Repo:     repository.Provide(),
		Accounts: accountrepo.Provide(),
		PDF:      renderer,
	}), db
}

func TestListsOnlyCallerRowsNewestFirst(t *testing.T) {
	svc, db := newService(t, &capturePDF{})
	testutil.InsertAccount(t, db, 1, "ada@example.com")
	testutil.InsertAccount(t, db, 2, "bob@example.com")

	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	testutil.InsertPurchase(t, db, 10, 1, "cs_old", "DIY", "completed", base)
	testutil.InsertPurchase(t, db, 11, 1, "cs_new", "FULL", "completed", base.Add(48*time.Hour))
	testutil.InsertPurchase(t, db, 12, 2, "cs_other", "DIY", "completed", base)
	testutil.InsertSubscription(t, db, 20, 1, "sub_1", "ADDON", "active", base.Add(30*24*time.Hour))
	testutil.InsertSubscription(t, db, 21, 2, "sub_2", "ADDON", "active", base.Add(30*24*time.Hour))

	ctx := context.Background()
	purchases, err := svc.ListPurchases(ctx, 1)
	require.NoError(t, err)
	require.Len(t, purchases, 2)
	assert.Equal(t, "cs_new", purchases[0].StripeSessionID)
	assert.Equal(t, "cs_old", purchases[1].StripeSessionID)

	subs, err := svc.ListSubscriptions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "sub_1", subs[0].StripeSubscriptionID)

	empty, err := svc.ListPurchases(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestReceiptIsScopedToOwner(t *testing.T) {
	renderer := &capturePDF{}
	svc, db := newService(t, renderer)
	testutil.InsertAccount(t, db, 1, "ada@example.com")
	testutil.InsertAccount(t, db, 2, "bob@example.com")
	testutil.InsertPurchase(t, db, 10, 1, "cs_1", "DIY", "completed", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))

	ctx := context.Background()
	_, err := svc.Receipt(ctx, 2, 10)
	assert.ErrorIs(t, err, domain.ErrPurchaseNotFound)

	receipt, err := svc.Receipt(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "receipt-10.pdf", receipt.Filename)
	assert.True(t, strings.HasPrefix(string(receipt.Content), "%PDF"))
	assert.Equal(t, "49.00 USD", renderer.last.Amount)
	assert.Equal(t, "ada@example.com", renderer.last.CustomerEmail)
	assert.Equal(t, "cs_1", renderer.last.Reference)
	assert.Equal(t, "September 1, 2026", renderer.last.DatePaid)
}

func TestRepositoryIdempotency(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.Provide()
	ctx := context.Background()
	testutil.InsertAccount(t, db, 1, "ada@example.com")
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	purchase := &domain.Purchase{
		ID: 10, AccountID: 1, StripeSessionID: "cs_1", ProductType: "DIY",
		Amount: 4900, Currency: "usd", Status: domain.PurchaseStatusCompleted,
		PurchasedAt: now, CreatedAt: now,
	}
	created, err := repo.InsertPurchase(ctx, db, purchase)
	require.NoError(t, err)
	assert.True(t, created)

	purchase.ID = 11
	created, err = repo.InsertPurchase(ctx, db, purchase)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(1), testutil.Count(t, db, "purchases"))

	sub := &domain.Subscription{
		ID: 20, AccountID: 1, StripeSubscriptionID: "sub_1", StripePriceID: "price_addon",
		ProductType: "ADDON", Status: "past_due", CurrentPeriodStart: now,
		CurrentPeriodEnd: now.Add(30 * 24 * time.Hour), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.UpsertSubscription(ctx, db, sub))
	sub.ID = snowflake.ID(21)
	sub.Status = domain.SubscriptionStatusActive
	require.NoError(t, repo.UpsertSubscription(ctx, db, sub))

	stored, err := repo.FindSubscription(ctx, db, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(20), stored.ID)
	assert.Equal(t, domain.SubscriptionStatusActive, stored.Status)

	active, err := repo.ListActiveSubscriptions(ctx, db, 1, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, active, 1)
	active, err = repo.ListActiveSubscriptions(ctx, db, 1, now.Add(31*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, active)

	ok, err := repo.MarkSubscriptionCanceled(ctx, db, "sub_1", now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkSubscriptionCanceled(ctx, db, "sub_missing", now)
	require.NoError(t, err)
	assert.False(t, ok)
}
