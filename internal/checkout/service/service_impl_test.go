package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/storefront/internal/account/domain"
	accountrepo "github.com/smallbiznis/storefront/internal/account/repository"
	catalogrepo "github.com/smallbiznis/storefront/internal/catalog/repository"
	"github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/smallbiznis/storefront/internal/checkout/service"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	entitlementrepo "github.com/smallbiznis/storefront/internal/entitlement/repository"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/smallbiznis/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	accountID = int64(7)
	productID = int64(100)
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, params paymentdomain.CheckoutSessionParams) (*paymentdomain.CheckoutSessionResult, error) {
	args := m.Called(ctx, params)
	result, _ := args.Get(0).(*paymentdomain.CheckoutSessionResult)
	return result, args.Error(1)
}

func (m *mockGateway) RetrieveCustomer(ctx context.Context, customerID string) (*paymentdomain.Customer, error) {
	args := m.Called(ctx, customerID)
	customer, _ := args.Get(0).(*paymentdomain.Customer)
	return customer, args.Error(1)
}

var now = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, enabled bool) (domain.Service, *mockGateway, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.InsertAccount(t, db, accountID, "ada@example.com")
	testutil.InsertProduct(t, db, productID, "diy-kit", "price_diy_kit", true)
	testutil.InsertProduct(t, db, 101, "retired-kit", "price_retired", false)

	gateway := &mockGateway{}
	svc := service.New(service.Params{
		DB:  db,
		Log: zap.NewNop(),
		Cfg: config.Config{
			SiteURL: "https://shop.test",
			Stripe:  config.StripeConfig{CheckoutEnabled: enabled},
		},
		Clock:        clock.NewFakeClock(now),
		Gateway:      gateway,
		Accounts:     accountrepo.Provide(),
		Catalog:      catalogrepo.Provide(),
		Entitlements: entitlementrepo.Provide(),
		Pricing: config.NewStaticPricing(map[string]string{
			config.TierDIY:   "price_diy",
			config.TierADDON: "price_addon",
		}),
	})
	return svc, gateway, db
}

func TestCreateSessionDisabled(t *testing.T) {
	svc, gateway, _ := newService(t, false)

	_, err := svc.CreateSession(context.Background(), domain.SessionRequest{AccountID: snowflake.ID(accountID), PriceID: "price_diy_kit"})
	assert.ErrorIs(t, err, domain.ErrCheckoutDisabled)

	_, err = svc.CreateLegacySession(context.Background(), domain.LegacySessionRequest{AccountID: snowflake.ID(accountID)})
	assert.ErrorIs(t, err, domain.ErrCheckoutDisabled)

	gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestCreateSessionRejectsUnknownInput(t *testing.T) {
	svc, gateway, _ := newService(t, true)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.SessionRequest
		want error
	}{
		{"missing price", domain.SessionRequest{AccountID: snowflake.ID(accountID)}, domain.ErrPriceRequired},
		{"unknown price", domain.SessionRequest{AccountID: snowflake.ID(accountID), PriceID: "price_nope"}, domain.ErrProductNotFound},
		{"inactive product", domain.SessionRequest{AccountID: snowflake.ID(accountID), PriceID: "price_retired"}, domain.ErrProductInactive},
		{"unknown account", domain.SessionRequest{AccountID: snowflake.ID(999), PriceID: "price_diy_kit"}, accountdomain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSession(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestCreateSessionAlreadyOwned(t *testing.T) {
	svc, gateway, db := newService(t, true)
	testutil.InsertEntitlement(t, db, 1, accountID, productID, true, nil)

	_, err := svc.CreateSession(context.Background(), domain.SessionRequest{AccountID: snowflake.ID(accountID), PriceID: "price_diy_kit"})
	require.ErrorIs(t, err, domain.ErrAlreadyOwned)

	var owned *domain.AlreadyOwnedError
	require.True(t, errors.As(err, &owned))
	assert.Equal(t, "/account/downloads", owned.RedirectURL)
	gateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestCreateSessionAllowsRepurchaseAfterExpiry(t *testing.T) {
	svc, gateway, db := newService(t, true)
	expired := now.Add(-time.Hour)
	testutil.InsertEntitlement(t, db, 1, accountID, productID, true, &expired)

	gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(&paymentdomain.CheckoutSessionResult{ID: "cs_2", URL: "https://checkout.test/cs_2"}, nil).Once()

	session, err := svc.CreateSession(context.Background(), domain.SessionRequest{AccountID: snowflake.ID(accountID), PriceID: "price_diy_kit"})
	require.NoError(t, err)
	assert.Equal(t, "cs_2", session.ID)
	gateway.AssertExpectations(t)
}

func TestCreateSessionSendsCatalogParams(t *testing.T) {
	svc, gateway, _ := newService(t, true)

	gateway.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p paymentdomain.CheckoutSessionParams) bool {
		return p.Mode == paymentdomain.CheckoutModePayment &&
			p.PriceID == "price_diy_kit" &&
			p.Quantity == 1 &&
			p.CustomerEmail == "ada@example.com" &&
			p.SuccessURL == "https://shop.test/account/downloads?success=1" &&
			p.CancelURL == "https://shop.test/account/downloads?canceled=1" &&
			p.Metadata["userId"] == "7" &&
			p.Metadata["productId"] == "100" &&
			p.Metadata["productSlug"] == "diy-kit"
	})).Return(&paymentdomain.CheckoutSessionResult{ID: "cs_1", URL: "https://checkout.test/cs_1"}, nil).Once()

	session, err := svc.CreateSession(context.Background(), domain.SessionRequest{AccountID: snowflake.ID(accountID), PriceID: " price_diy_kit "})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/cs_1", session.URL)
	gateway.AssertExpectations(t)
}

func TestCreateSessionPassesUpstreamFailure(t *testing.T) {
	svc, gateway, _ := newService(t, true)
	gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(nil, &paymentdomain.UpstreamError{Status: 500, Message: "down"}).Once()

	_, err := svc.CreateSession(context.Background(), domain.SessionRequest{AccountID: snowflake.ID(accountID), PriceID: "price_diy_kit"})
	assert.ErrorIs(t, err, paymentdomain.ErrUpstream)
}

func TestCreateLegacySession(t *testing.T) {
	svc, gateway, _ := newService(t, true)
	ctx := context.Background()

	_, err := svc.CreateLegacySession(ctx, domain.LegacySessionRequest{AccountID: snowflake.ID(accountID), Product: "FULL"})
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)

	_, err = svc.CreateLegacySession(ctx, domain.LegacySessionRequest{AccountID: snowflake.ID(accountID), Mode: "setup"})
	assert.ErrorIs(t, err, domain.ErrInvalidMode)

	gateway.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p paymentdomain.CheckoutSessionParams) bool {
		return p.Mode == paymentdomain.CheckoutModePayment &&
			p.PriceID == "price_diy" &&
			p.CustomerEmail == "ada@example.com" &&
			p.AllowPromotionCodes &&
			p.SuccessURL == "https://shop.test/success?session_id={CHECKOUT_SESSION_ID}" &&
			p.CancelURL == "https://shop.test/cancel" &&
			p.Metadata["product"] == "DIY" &&
			p.Metadata["userId"] == "7"
	})).Return(&paymentdomain.CheckoutSessionResult{ID: "cs_l1", URL: "https://checkout.test/cs_l1"}, nil).Once()

	session, err := svc.CreateLegacySession(ctx, domain.LegacySessionRequest{AccountID: snowflake.ID(accountID)})
	require.NoError(t, err)
	assert.Equal(t, "cs_l1", session.ID)

	gateway.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p paymentdomain.CheckoutSessionParams) bool {
		return p.Mode == paymentdomain.CheckoutModeSubscription &&
			p.PriceID == "price_addon" &&
			p.CustomerEmail == "other@example.com"
	})).Return(&paymentdomain.CheckoutSessionResult{ID: "cs_l2", URL: "https://checkout.test/cs_l2"}, nil).Once()

	session, err = svc.CreateLegacySession(ctx, domain.LegacySessionRequest{
		AccountID: snowflake.ID(accountID),
		Email:     "Other@Example.com",
		Product:   "addon",
		Mode:      "SUBSCRIPTION",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_l2", session.ID)
	gateway.AssertExpectations(t)
}
