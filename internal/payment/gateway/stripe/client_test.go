package stripe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckoutSessionEncodesForm(t *testing.T) {
	var form url.Values
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"cs_test","url":"https://checkout.stripe.com/c/cs_test"}`))
	}))
	defer srv.Close()

	client := NewClient("sk_test", srv.URL, srv.Client(), nil)
	result, err := client.CreateCheckoutSession(context.Background(), paymentdomain.CheckoutSessionParams{
		Mode:          paymentdomain.CheckoutModeSubscription,
		PriceID:       "price_full",
		CustomerEmail: "ada@example.com",
		SuccessURL:    "https://shop.example/success",
		CancelURL:     "https://shop.example/cancel",
		Metadata:      map[string]string{"userId": "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_test", result.URL)

	assert.Equal(t, "Bearer sk_test", headers.Get("Authorization"))
	assert.Len(t, headers.Get("Idempotency-Key"), 26)
	assert.Equal(t, "subscription", form.Get("mode"))
	assert.Equal(t, "price_full", form.Get("line_items[0][price]"))
	assert.Equal(t, "1", form.Get("line_items[0][quantity]"))
	assert.Equal(t, "ada@example.com", form.Get("customer_email"))
	assert.Equal(t, "42", form.Get("metadata[userId]"))
	assert.Equal(t, "42", form.Get("subscription_data[metadata][userId]"))
	assert.Empty(t, form.Get("allow_promotion_codes"))
}

func TestErrorsMapToUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"resource_missing","message":"No such price"}}`))
	}))
	defer srv.Close()

	client := NewClient("sk_test", srv.URL, srv.Client(), nil)
	_, err := client.CreateCheckoutSession(context.Background(), paymentdomain.CheckoutSessionParams{
		Mode:    paymentdomain.CheckoutModePayment,
		PriceID: "price_missing",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, paymentdomain.ErrUpstream))

	var upstream *paymentdomain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "No such price", upstream.Message)
	assert.Equal(t, "resource_missing", upstream.Code)
	assert.Equal(t, http.StatusBadRequest, upstream.Status)

	_, err = NewClient("", srv.URL, srv.Client(), nil).RetrieveCustomer(context.Background(), "cus_1")
	assert.ErrorIs(t, err, paymentdomain.ErrUpstream)
}

func TestRetrieveCustomer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/customers/cus_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"cus_1","email":" sub@example.com ","name":"Sub"}`))
	}))
	defer srv.Close()

	c, err := NewClient("sk_test", srv.URL, srv.Client(), nil).RetrieveCustomer(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "sub@example.com", c.Email)
	assert.Equal(t, "Sub", c.Name)
}
