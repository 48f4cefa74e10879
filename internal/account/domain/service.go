package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	MinPasswordLength = 8
	VerificationTTL   = 24 * time.Hour
)

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

type VerificationResult struct {
	AlreadyVerified bool
	Throttled       bool
}

// Cooldown suppresses repeated actions for the same key within ttl.
type Cooldown interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Account, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	RequestVerification(ctx context.Context, email string) (*VerificationResult, error)
	ConfirmVerification(ctx context.Context, email, token string) error
	List(ctx context.Context) ([]Account, error)
	DeleteByEmail(ctx context.Context, email string) error
	DeleteUnverified(ctx context.Context) (int, error)
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidPassword     = errors.New("invalid_password")
	ErrAccountExists       = errors.New("account_exists")
	ErrNotFound            = errors.New("account_not_found")
	ErrInvalidVerification = errors.New("invalid_verification")
	ErrVerificationExpired = errors.New("verification_expired")
	ErrDeliveryFailed      = errors.New("verification_delivery_failed")
)
