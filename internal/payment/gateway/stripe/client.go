// Package stripe calls the Stripe REST API for hosted checkout sessions and
// customer lookups.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/storefront/internal/config"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.stripe.com"

type checkoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type customer struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

type stripeErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewClient(apiKey, baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 12 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: baseURL,
		client:  httpClient,
		log:     log.Named("payment.gateway.stripe"),
	}
}

func Provide(cfg config.Config, log *zap.Logger) paymentdomain.Gateway {
	return NewClient(cfg.Stripe.SecretKey, cfg.Stripe.APIBaseURL, nil, log)
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params paymentdomain.CheckoutSessionParams) (*paymentdomain.CheckoutSessionResult, error) {
	quantity := params.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	values := url.Values{}
	values.Set("mode", string(params.Mode))
	values.Set("line_items[0][price]", params.PriceID)
	values.Set("line_items[0][quantity]", strconv.FormatInt(quantity, 10))
	values.Set("success_url", params.SuccessURL)
	values.Set("cancel_url", params.CancelURL)
	if params.CustomerEmail != "" {
		values.Set("customer_email", params.CustomerEmail)
	}
	if params.AllowPromotionCodes {
		values.Set("allow_promotion_codes", "true")
	}
	for key, value := range params.Metadata {
		values.Set("metadata["+key+"]", value)
		if params.Mode == paymentdomain.CheckoutModeSubscription {
			values.Set("subscription_data[metadata]["+key+"]", value)
		}
	}

	var session checkoutSession
	if err := c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values, ulid.Make().String(), &session); err != nil {
		return nil, err
	}
	if session.ID == "" || session.URL == "" {
		return nil, &paymentdomain.UpstreamError{Message: "stripe_response_invalid"}
	}
	return &paymentdomain.CheckoutSessionResult{ID: session.ID, URL: session.URL}, nil
}

func (c *Client) RetrieveCustomer(ctx context.Context, customerID string) (*paymentdomain.Customer, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, &paymentdomain.UpstreamError{Message: "customer id is required"}
	}

	var out customer
	if err := c.doRequest(ctx, http.MethodGet, "/v1/customers/"+url.PathEscape(customerID), nil, "", &out); err != nil {
		return nil, err
	}
	if out.Deleted {
		return &paymentdomain.Customer{ID: out.ID}, nil
	}
	return &paymentdomain.Customer{
		ID:    out.ID,
		Email: strings.TrimSpace(out.Email),
		Name:  strings.TrimSpace(out.Name),
	}, nil
}

func (c *Client) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
	out any,
) error {
	if c.apiKey == "" {
		return &paymentdomain.UpstreamError{Message: "stripe secret key is not configured"}
	}

	var body io.Reader
	if values != nil {
		body = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("stripe request failed", zap.String("path", path), zap.Error(err))
		return &paymentdomain.UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		upstream := &paymentdomain.UpstreamError{Status: resp.StatusCode, Message: "stripe_request_failed"}
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err == nil {
			upstream.Code = strings.TrimSpace(stripeErr.Error.Code)
			if message := strings.TrimSpace(stripeErr.Error.Message); message != "" {
				upstream.Message = message
			}
		}
		c.log.Warn("stripe request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", upstream.Code),
		)
		return upstream
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &paymentdomain.UpstreamError{Message: errors.Join(errors.New("stripe_response_invalid"), err).Error()}
	}
	return nil
}
