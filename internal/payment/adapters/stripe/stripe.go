package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/storefront/internal/config"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
)

const DefaultTolerance = 5 * time.Minute

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

func NewAdapter(secret string, tolerance time.Duration, now func() time.Time) *Adapter {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if now == nil {
		now = time.Now
	}
	return &Adapter{
		webhookSecret: strings.TrimSpace(secret),
		tolerance:     tolerance,
		now:           now,
	}
}

// Provide builds the adapter from the webhook signing secret.
func Provide(cfg config.Config) paymentdomain.Adapter {
	return NewAdapter(cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance, nil)
}

func (a *Adapter) Provider() string {
	return paymentdomain.ProviderStripe
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if a.webhookSecret == "" {
		return paymentdomain.ErrInvalidSignature
	}
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	signedAt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	age := a.now().Sub(time.Unix(signedAt, 0))
	if age > a.tolerance || age < -a.tolerance {
		return paymentdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	eventType := strings.TrimSpace(event.Type)
	out := &paymentdomain.Event{
		Provider:        paymentdomain.ProviderStripe,
		ProviderEventID: event.ID,
		Type:            eventType,
		OccurredAt:      timestamp(event.Created, 0),
		RawPayload:      payload,
	}

	switch eventType {
	case paymentdomain.EventCheckoutCompleted, paymentdomain.EventCheckoutAsyncPaymentSucceed:
		session, err := parseCheckoutSession(event.Data.Object)
		if err != nil {
			return nil, err
		}
		out.Checkout = session
	case paymentdomain.EventSubscriptionCreated, paymentdomain.EventSubscriptionUpdated, paymentdomain.EventSubscriptionDeleted:
		sub, err := parseSubscription(event.Data.Object)
		if err != nil {
			return nil, err
		}
		out.Subscription = sub
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
	return out, nil
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID              string          `json:"id"`
	Mode            string          `json:"mode"`
	PaymentStatus   string          `json:"payment_status"`
	Customer        json.RawMessage `json:"customer"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerDetails *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
	AmountTotal int64          `json:"amount_total"`
	Currency    string         `json:"currency"`
	Metadata    map[string]any `json:"metadata"`
}

type stripeSubscription struct {
	ID                 string          `json:"id"`
	Customer           json.RawMessage `json:"customer"`
	Status             string          `json:"status"`
	CurrentPeriodStart int64           `json:"current_period_start"`
	CurrentPeriodEnd   int64           `json:"current_period_end"`
	CancelAtPeriodEnd  bool            `json:"cancel_at_period_end"`
	Metadata           map[string]any  `json:"metadata"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type stripeCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func parseCheckoutSession(raw json.RawMessage) (*paymentdomain.CheckoutSession, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	customer := parseCustomer(session.Customer)
	out := &paymentdomain.CheckoutSession{
		ID:            session.ID,
		Mode:          strings.TrimSpace(session.Mode),
		PaymentStatus: strings.TrimSpace(session.PaymentStatus),
		CustomerID:    customer.ID,
		CustomerEmail: strings.TrimSpace(session.CustomerEmail),
		AmountTotal:   session.AmountTotal,
		Currency:      strings.ToLower(strings.TrimSpace(session.Currency)),
		Metadata:      readMetadata(session.Metadata),
	}
	if details := session.CustomerDetails; details != nil {
		if email := strings.TrimSpace(details.Email); email != "" {
			out.CustomerEmail = email
		}
		out.CustomerName = strings.TrimSpace(details.Name)
	}
	if out.CustomerEmail == "" {
		out.CustomerEmail = customer.Email
	}
	if out.CustomerName == "" {
		out.CustomerName = customer.Name
	}
	return out, nil
}

func parseSubscription(raw json.RawMessage) (*paymentdomain.SubscriptionChange, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	start, end := sub.CurrentPeriodStart, sub.CurrentPeriodEnd
	var priceID string
	if len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		priceID = strings.TrimSpace(item.Price.ID)
		// Newer API versions report the period on the item only.
		if start == 0 {
			start = item.CurrentPeriodStart
		}
		if end == 0 {
			end = item.CurrentPeriodEnd
		}
	}

	customer := parseCustomer(sub.Customer)
	return &paymentdomain.SubscriptionChange{
		ID:                 sub.ID,
		CustomerID:         customer.ID,
		CustomerEmail:      customer.Email,
		CustomerName:       customer.Name,
		PriceID:            priceID,
		Status:             strings.TrimSpace(sub.Status),
		CurrentPeriodStart: timestamp(start, 0),
		CurrentPeriodEnd:   timestamp(end, 0),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		Metadata:           readMetadata(sub.Metadata),
	}, nil
}

// parseCustomer accepts either a bare customer id or an expanded object.
func parseCustomer(raw json.RawMessage) stripeCustomer {
	if len(raw) == 0 || string(raw) == "null" {
		return stripeCustomer{}
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return stripeCustomer{ID: strings.TrimSpace(id)}
	}
	var customer stripeCustomer
	if err := json.Unmarshal(raw, &customer); err != nil {
		return stripeCustomer{}
	}
	customer.ID = strings.TrimSpace(customer.ID)
	customer.Email = strings.TrimSpace(customer.Email)
	customer.Name = strings.TrimSpace(customer.Name)
	return customer
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

func readMetadata(metadata map[string]any) map[string]string {
	out := make(map[string]string, len(metadata))
	for key := range metadata {
		if value := readMetadataValue(metadata, key); value != "" {
			out[key] = value
		}
	}
	return out
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	case int64:
		return strconv.FormatInt(cast, 10)
	case int:
		return strconv.Itoa(cast)
	}
	return ""
}

// SignatureHeader builds a Stripe-Signature value for payload signed at ts.
// It is used to replay captured events against a local endpoint.
func SignatureHeader(secret string, payload []byte, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", ts, string(payload))))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
