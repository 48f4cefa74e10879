package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	accountrepo "github.com/smallbiznis/storefront/internal/account/repository"
	catalogrepo "github.com/smallbiznis/storefront/internal/catalog/repository"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	entitlementrepo "github.com/smallbiznis/storefront/internal/entitlement/repository"
	historyrepo "github.com/smallbiznis/storefront/internal/history/repository"
	"github.com/smallbiznis/storefront/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/storefront/internal/payment/repository"
	"github.com/smallbiznis/storefront/internal/payment/webhook"
	"github.com/smallbiznis/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

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

type harness struct {
	db      *gorm.DB
	svc     paymentdomain.Service
	gateway *mockGateway
	clock   *clock.FakeClock
}

func newHarness(t *testing.T) harness {
	t.Helper()
	db := testutil.NewDB(t)
	fake := clock.NewFakeClock(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	gateway := &mockGateway{}
	svc := webhook.NewService(webhook.Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        testutil.NewNode(t),
		Clock:        fake,
		Adapter:      stripe.NewAdapter(webhookSecret, 0, nil),
		Gateway:      gateway,
		Repo:         paymentrepo.Provide(),
		Accounts:     accountrepo.Provide(),
		Catalog:      catalogrepo.Provide(),
		Entitlements: entitlementrepo.Provide(),
		History:      historyrepo.Provide(),
		Pricing: config.NewStaticPricing(map[string]string{
			config.TierDIY:   "price_diy",
			config.TierFULL:  "price_full",
			config.TierADDON: "price_addon",
		}),
	})
	return harness{db: db, svc: svc, gateway: gateway, clock: fake}
}

func (h harness) deliver(t *testing.T, event map[string]any) (*paymentdomain.IngestResult, error) {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	headers := http.Header{}
	headers.Set("Stripe-Signature", stripe.SignatureHeader(webhookSecret, payload, time.Now().Unix()))
	return h.svc.IngestWebhook(context.Background(), payload, headers)
}

func checkoutEvent(id string, session map[string]any) map[string]any {
	object := map[string]any{
		"id":             "cs_" + id,
		"mode":           "payment",
		"payment_status": "paid",
		"amount_total":   4900,
		"currency":       "usd",
		"customer_details": map[string]any{
			"email": "Buyer@Example.com",
			"name":  "Buyer",
		},
	}
	for k, v := range session {
		object[k] = v
	}
	return map[string]any{
		"id":      "evt_" + id,
		"type":    "checkout.session.completed",
		"created": time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC).Unix(),
		"data":    map[string]any{"object": object},
	}
}

func subscriptionEvent(id, eventType string, object map[string]any) map[string]any {
	base := map[string]any{
		"id":                   "sub_1",
		"customer":             map[string]any{"id": "cus_1", "email": "sub@example.com"},
		"status":               "active",
		"current_period_start": time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC).Unix(),
		"current_period_end":   time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC).Unix(),
		"items": map[string]any{"data": []any{
			map[string]any{"price": map[string]any{"id": "price_addon"}},
		}},
	}
	for k, v := range object {
		base[k] = v
	}
	return map[string]any{
		"id":   "evt_" + id,
		"type": eventType,
		"data": map[string]any{"object": base},
	}
}

func TestCheckoutCompletedGrantsAccessIdempotently(t *testing.T) {
	h := newHarness(t)
	testutil.InsertProduct(t, h.db, 100, "diy-kit", "price_diy", true)

	event := checkoutEvent("1", map[string]any{
		"metadata": map[string]any{"product": "diy", "productId": "100"},
	})

	result, err := h.deliver(t, event)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeProcessed, result.Outcome)

	for i := 0; i < 2; i++ {
		again, err := h.deliver(t, event)
		require.NoError(t, err)
		assert.Equal(t, paymentdomain.OutcomeDuplicate, again.Outcome)
	}

	assert.Equal(t, int64(1), testutil.Count(t, h.db, "accounts"))
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "purchases"))
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "entitlements"))
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "payment_events"))

	var row struct {
		Email       string
		Name        string
		ProductType string
		Active      bool
	}
	require.NoError(t, h.db.Raw(
		`SELECT a.email, a.name, p.product_type, e.active
		 FROM accounts a JOIN purchases p ON p.account_id = a.id JOIN entitlements e ON e.account_id = a.id`,
	).Scan(&row).Error)
	assert.Equal(t, "buyer@example.com", row.Email)
	assert.Equal(t, "Buyer", row.Name)
	assert.Equal(t, "DIY", row.ProductType)
	assert.True(t, row.Active)

	var processed int64
	require.NoError(t, h.db.Raw(`SELECT COUNT(*) FROM payment_events WHERE processed_at IS NOT NULL AND outcome = ?`, paymentdomain.OutcomeProcessed).Scan(&processed).Error)
	assert.Equal(t, int64(1), processed)
}

func TestCheckoutPrefersMetadataAccount(t *testing.T) {
	h := newHarness(t)
	testutil.InsertAccount(t, h.db, 7, "owner@example.com")
	testutil.InsertProduct(t, h.db, 100, "diy-kit", "price_diy", true)

	_, err := h.deliver(t, checkoutEvent("2", map[string]any{
		"metadata": map[string]any{"userId": "7", "productId": "100"},
	}))
	require.NoError(t, err)

	assert.Equal(t, int64(1), testutil.Count(t, h.db, "accounts"))
	var accountID int64
	require.NoError(t, h.db.Raw(`SELECT account_id FROM entitlements`).Scan(&accountID).Error)
	assert.Equal(t, int64(7), accountID)
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "purchases"))
}

func TestInvalidSignatureWritesNothing(t *testing.T) {
	h := newHarness(t)
	payload, err := json.Marshal(checkoutEvent("3", nil))
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("Stripe-Signature", stripe.SignatureHeader("whsec_other", payload, time.Now().Unix()))
	_, err = h.svc.IngestWebhook(context.Background(), payload, headers)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	_, err = h.svc.IngestWebhook(context.Background(), payload, http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	for _, table := range []string{"payment_events", "accounts", "purchases", "entitlements", "subscriptions"} {
		assert.Equal(t, int64(0), testutil.Count(t, h.db, table), table)
	}
}

func TestUnknownProductIsAcknowledged(t *testing.T) {
	h := newHarness(t)

	result, err := h.deliver(t, checkoutEvent("4", map[string]any{
		"metadata": map[string]any{"product": "FULL", "productId": "999"},
	}))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeSkipped, result.Outcome)

	assert.Equal(t, int64(1), testutil.Count(t, h.db, "purchases"))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "entitlements"))

	again, err := h.deliver(t, checkoutEvent("4", nil))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeDuplicate, again.Outcome)

	bad, err := h.deliver(t, checkoutEvent("5", map[string]any{
		"metadata": map[string]any{"productId": "not-a-number"},
	}))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeSkipped, bad.Outcome)
}

func TestUnpaidCheckoutIsDeferred(t *testing.T) {
	h := newHarness(t)
	testutil.InsertProduct(t, h.db, 100, "diy-kit", "price_diy", true)

	result, err := h.deliver(t, checkoutEvent("6", map[string]any{
		"payment_status": "unpaid",
		"metadata":       map[string]any{"product": "DIY", "productId": "100"},
	}))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeSkipped, result.Outcome)
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "entitlements"))

	async := checkoutEvent("7", map[string]any{
		"id":       "cs_6",
		"metadata": map[string]any{"product": "DIY", "productId": "100"},
	})
	async["type"] = "checkout.session.async_payment_succeeded"
	result, err = h.deliver(t, async)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeProcessed, result.Outcome)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "entitlements"))
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "purchases"))
}

func TestSubscriptionCheckoutSkipsPurchaseRow(t *testing.T) {
	h := newHarness(t)

	_, err := h.deliver(t, checkoutEvent("8", map[string]any{
		"mode":     "subscription",
		"metadata": map[string]any{"product": "ADDON"},
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "accounts"))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "purchases"))
}

func TestSubscriptionUpdateBeforeCreate(t *testing.T) {
	h := newHarness(t)

	_, err := h.deliver(t, subscriptionEvent("s1", "customer.subscription.updated", map[string]any{
		"status": "past_due",
	}))
	require.NoError(t, err)

	_, err = h.deliver(t, subscriptionEvent("s2", "customer.subscription.created", nil))
	require.NoError(t, err)

	assert.Equal(t, int64(1), testutil.Count(t, h.db, "subscriptions"))
	var row struct {
		Status      string
		ProductType string
	}
	require.NoError(t, h.db.Raw(`SELECT status, product_type FROM subscriptions`).Scan(&row).Error)
	assert.Equal(t, "active", row.Status)
	assert.Equal(t, "ADDON", row.ProductType)
	h.gateway.AssertNotCalled(t, "RetrieveCustomer", mock.Anything, mock.Anything)
}

func TestSubscriptionUnmappedPriceIsTaggedUnknown(t *testing.T) {
	h := newHarness(t)

	_, err := h.deliver(t, subscriptionEvent("s3", "customer.subscription.created", map[string]any{
		"items": map[string]any{"data": []any{
			map[string]any{"price": map[string]any{"id": "price_legacy"}},
		}},
	}))
	require.NoError(t, err)

	var tag string
	require.NoError(t, h.db.Raw(`SELECT product_type FROM subscriptions`).Scan(&tag).Error)
	assert.Equal(t, "UNKNOWN", tag)
}

func TestSubscriptionFetchesCustomerEmail(t *testing.T) {
	h := newHarness(t)
	h.gateway.On("RetrieveCustomer", mock.Anything, "cus_9").
		Return(&paymentdomain.Customer{ID: "cus_9", Email: "fetched@example.com", Name: "Fetched"}, nil).Once()

	_, err := h.deliver(t, subscriptionEvent("s4", "customer.subscription.created", map[string]any{
		"customer": "cus_9",
	}))
	require.NoError(t, err)
	h.gateway.AssertExpectations(t)

	var email string
	require.NoError(t, h.db.Raw(`SELECT email FROM accounts`).Scan(&email).Error)
	assert.Equal(t, "fetched@example.com", email)
}

func TestSubscriptionLookupFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	h.gateway.On("RetrieveCustomer", mock.Anything, "cus_9").
		Return(nil, &paymentdomain.UpstreamError{Status: 500, Message: "boom"})

	_, err := h.deliver(t, subscriptionEvent("s5", "customer.subscription.created", map[string]any{
		"customer": "cus_9",
	}))
	assert.ErrorIs(t, err, paymentdomain.ErrUpstream)
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "payment_events"))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "subscriptions"))
}

func TestSubscriptionDeletedToleratesMissingRow(t *testing.T) {
	h := newHarness(t)

	result, err := h.deliver(t, subscriptionEvent("s6", "customer.subscription.deleted", map[string]any{
		"id": "sub_missing",
	}))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeProcessed, result.Outcome)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, "payment_events"))

	_, err = h.deliver(t, subscriptionEvent("s7", "customer.subscription.created", nil))
	require.NoError(t, err)
	_, err = h.deliver(t, subscriptionEvent("s8", "customer.subscription.deleted", nil))
	require.NoError(t, err)

	var status string
	require.NoError(t, h.db.Raw(`SELECT status FROM subscriptions WHERE stripe_subscription_id = 'sub_1'`).Scan(&status).Error)
	assert.Equal(t, "canceled", status)
}

func TestUnhandledEventIsAcknowledged(t *testing.T) {
	h := newHarness(t)
	result, err := h.deliver(t, map[string]any{
		"id":   "evt_inv",
		"type": "invoice.paid",
		"data": map[string]any{"object": map[string]any{}},
	})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.OutcomeIgnored, result.Outcome)
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "payment_events"))
}

func TestStorageFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	testutil.InsertProduct(t, h.db, 100, "diy-kit", "price_diy", true)
	require.NoError(t, h.db.Exec(`DROP TABLE entitlements`).Error)

	_, err := h.deliver(t, checkoutEvent("9", map[string]any{
		"metadata": map[string]any{"product": "DIY", "productId": "100"},
	}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, paymentdomain.ErrInvalidSignature))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "payment_events"))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "purchases"))
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "accounts"))
}
