package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	PurchaseStatusCompleted = "completed"

	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"

	// ProductTypeUnknown tags subscriptions whose price is not in the pricing table.
	ProductTypeUnknown = "UNKNOWN"
)

// Purchase is a one-off payment, unique on the provider's checkout session.
type Purchase struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	AccountID       snowflake.ID `json:"account_id"`
	StripeSessionID string       `json:"stripe_session_id"`
	ProductType     string       `json:"product_type"`
	Amount          int64        `json:"amount"`
	Currency        string       `json:"currency"`
	Status          string       `json:"status"`
	PurchasedAt     time.Time    `json:"purchased_at"`
	CreatedAt       time.Time    `json:"created_at"`
}

func (Purchase) TableName() string { return "purchases" }

func (p Purchase) Completed() bool {
	return p.Status == PurchaseStatusCompleted
}

// Subscription mirrors the provider's subscription state, keyed by its id.
type Subscription struct {
	ID                   snowflake.ID `json:"id" gorm:"primaryKey"`
	AccountID            snowflake.ID `json:"account_id"`
	StripeSubscriptionID string       `json:"stripe_subscription_id"`
	StripePriceID        string       `json:"stripe_price_id"`
	ProductType          string       `json:"product_type"`
	Status               string       `json:"status"`
	CurrentPeriodStart   time.Time    `json:"current_period_start"`
	CurrentPeriodEnd     time.Time    `json:"current_period_end"`
	CancelAtPeriodEnd    bool         `json:"cancel_at_period_end"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

// ActiveAt reports whether the subscription grants access at now.
func (s Subscription) ActiveAt(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && !s.CurrentPeriodEnd.Before(now)
}
