package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type GrantRequest struct {
	AccountID snowflake.ID
	ProductID snowflake.ID
	ExpiresAt *time.Time
}

type Service interface {
	Grant(ctx context.Context, req GrantRequest) (*Entitlement, error)
	Revoke(ctx context.Context, accountID, productID snowflake.ID) error
	Get(ctx context.Context, accountID, productID snowflake.ID) (*Entitlement, error)
	ListByAccount(ctx context.Context, accountID snowflake.ID) ([]Entitlement, error)
}

var (
	ErrNotFound       = errors.New("entitlement_not_found")
	ErrInvalidRequest = errors.New("invalid_entitlement_request")
)
