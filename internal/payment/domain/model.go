package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const ProviderStripe = "stripe"

// Provider event kinds handled by the reconciler.
const (
	EventCheckoutCompleted           = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceed = "checkout.session.async_payment_succeeded"
	EventSubscriptionCreated         = "customer.subscription.created"
	EventSubscriptionUpdated         = "customer.subscription.updated"
	EventSubscriptionDeleted         = "customer.subscription.deleted"
)

// Checkout metadata keys written when a session is created.
const (
	MetadataUserID      = "userId"
	MetadataProductID   = "productId"
	MetadataProductSlug = "productSlug"
	MetadataProduct     = "product"
)

// EventRecord is the durable receipt of a provider event, unique on
// (provider, provider_event_id).
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider"`
	ProviderEventID string         `json:"provider_event_id"`
	EventType       string         `json:"event_type"`
	Payload         datatypes.JSON `json:"payload"`
	ReceivedAt      time.Time      `json:"received_at"`
	ProcessedAt     *time.Time     `json:"processed_at"`
	// Outcome records how the reconciler disposed of the event.
	Outcome *string `json:"outcome"`
}

func (EventRecord) TableName() string { return "payment_events" }

// Event is the canonical provider event parsed by adapters. Exactly one of
// Checkout or Subscription is set.
type Event struct {
	Provider        string
	ProviderEventID string
	Type            string
	OccurredAt      time.Time
	Checkout        *CheckoutSession
	Subscription    *SubscriptionChange
	RawPayload      []byte
}

type CheckoutSession struct {
	ID            string
	Mode          string
	PaymentStatus string
	CustomerID    string
	CustomerEmail string
	CustomerName  string
	AmountTotal   int64
	Currency      string
	Metadata      map[string]string
}

// Paid is false only for sessions still waiting on an asynchronous payment.
func (c CheckoutSession) Paid() bool {
	return c.PaymentStatus != "unpaid"
}

type SubscriptionChange struct {
	ID                 string
	CustomerID         string
	CustomerEmail      string
	CustomerName       string
	PriceID            string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	Metadata           map[string]string
}
