package domain

import "context"

type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

type CheckoutSessionParams struct {
	Mode                CheckoutMode
	PriceID             string
	Quantity            int64
	CustomerEmail       string
	SuccessURL          string
	CancelURL           string
	AllowPromotionCodes bool
	Metadata            map[string]string
}

type CheckoutSessionResult struct {
	ID  string
	URL string
}

type Customer struct {
	ID    string
	Email string
	Name  string
}

// Gateway is the outbound side of the payment provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSessionResult, error)
	RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error)
}
