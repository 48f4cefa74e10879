package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Receipt struct {
	Filename string
	Content  []byte
}

type Service interface {
	ListPurchases(ctx context.Context, accountID snowflake.ID) ([]Purchase, error)
	ListSubscriptions(ctx context.Context, accountID snowflake.ID) ([]Subscription, error)
	Receipt(ctx context.Context, accountID, purchaseID snowflake.ID) (*Receipt, error)
}

var ErrPurchaseNotFound = errors.New("purchase_not_found")
