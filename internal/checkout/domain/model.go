package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// DownloadsPath is where buyers land after checkout and where an
// already-owned product redirects.
const DownloadsPath = "/account/downloads"

const (
	DefaultLegacyProduct = "DIY"
	DefaultLegacyMode    = "payment"
)

type SessionRequest struct {
	AccountID snowflake.ID
	PriceID   string
}

// LegacySessionRequest creates a session from a tier tag rather than a
// catalog price.
type LegacySessionRequest struct {
	AccountID snowflake.ID
	Email     string
	Product   string
	Mode      string
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Service interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	CreateLegacySession(ctx context.Context, req LegacySessionRequest) (*Session, error)
}

var (
	ErrCheckoutDisabled = errors.New("checkout_disabled")
	ErrPriceRequired    = errors.New("price_required")
	ErrProductNotFound  = errors.New("product_not_found")
	ErrProductInactive  = errors.New("product_inactive")
	ErrInvalidProduct   = errors.New("invalid_product")
	ErrInvalidMode      = errors.New("invalid_checkout_mode")
	ErrAlreadyOwned     = errors.New("product_already_owned")
)

// AlreadyOwnedError carries the redirect hint for a product the caller can
// already download.
type AlreadyOwnedError struct {
	ProductID   snowflake.ID
	RedirectURL string
}

func (e *AlreadyOwnedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAlreadyOwned, e.ProductID)
}

func (e *AlreadyOwnedError) Is(target error) bool {
	return target == ErrAlreadyOwned
}
