package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertPurchase reports false when the session was already recorded.
	InsertPurchase(ctx context.Context, db *gorm.DB, purchase *Purchase) (bool, error)
	FindPurchase(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*Purchase, error)
	ListPurchases(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Purchase, error)
	ListCompletedPurchases(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Purchase, error)

	// UpsertSubscription overwrites the row for the provider subscription id.
	UpsertSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindSubscription(ctx context.Context, db *gorm.DB, stripeSubscriptionID string) (*Subscription, error)
	MarkSubscriptionCanceled(ctx context.Context, db *gorm.DB, stripeSubscriptionID string, at time.Time) (bool, error)
	ListSubscriptions(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Subscription, error)
	ListActiveSubscriptions(ctx context.Context, db *gorm.DB, accountID snowflake.ID, now time.Time) ([]Subscription, error)
}
