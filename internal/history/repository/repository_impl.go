package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/history/domain"
	"gorm.io/gorm"
)

const (
	purchaseColumns     = `id, account_id, stripe_session_id, product_type, amount, currency, status, purchased_at, created_at`
	subscriptionColumns = `id, account_id, stripe_subscription_id, stripe_price_id, product_type, status,
		current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at`
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPurchase(ctx context.Context, db *gorm.DB, p *domain.Purchase) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO purchases (`+purchaseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (stripe_session_id) DO NOTHING`,
		p.ID,
		p.AccountID,
		p.StripeSessionID,
		p.ProductType,
		p.Amount,
		p.Currency,
		p.Status,
		p.PurchasedAt,
		p.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindPurchase(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*domain.Purchase, error) {
	var p domain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+purchaseColumns+` FROM purchases WHERE account_id = ? AND id = ?`,
		accountID,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) ListPurchases(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]domain.Purchase, error) {
	var items []domain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+purchaseColumns+` FROM purchases WHERE account_id = ? ORDER BY purchased_at DESC, id DESC`,
		accountID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListCompletedPurchases(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]domain.Purchase, error) {
	var items []domain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+purchaseColumns+` FROM purchases WHERE account_id = ? AND status = ? ORDER BY purchased_at DESC, id DESC`,
		accountID,
		domain.PurchaseStatusCompleted,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertSubscription(ctx context.Context, db *gorm.DB, s *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (stripe_subscription_id) DO UPDATE SET
		   account_id = excluded.account_id,
		   stripe_price_id = excluded.stripe_price_id,
		   product_type = excluded.product_type,
		   status = excluded.status,
		   current_period_start = excluded.current_period_start,
		   current_period_end = excluded.current_period_end,
		   cancel_at_period_end = excluded.cancel_at_period_end,
		   updated_at = excluded.updated_at`,
		s.ID,
		s.AccountID,
		s.StripeSubscriptionID,
		s.StripePriceID,
		s.ProductType,
		s.Status,
		s.CurrentPeriodStart,
		s.CurrentPeriodEnd,
		s.CancelAtPeriodEnd,
		s.CreatedAt,
		s.UpdatedAt,
	).Error
}

func (r *repo) FindSubscription(ctx context.Context, db *gorm.DB, stripeSubscriptionID string) (*domain.Subscription, error) {
	var s domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = ?`,
		stripeSubscriptionID,
	).Scan(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *repo) MarkSubscriptionCanceled(ctx context.Context, db *gorm.DB, stripeSubscriptionID string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, updated_at = ? WHERE stripe_subscription_id = ?`,
		domain.SubscriptionStatusCanceled,
		at,
		stripeSubscriptionID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListSubscriptions(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]domain.Subscription, error) {
	var items []domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE account_id = ? ORDER BY created_at DESC, id DESC`,
		accountID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListActiveSubscriptions filters the period end in Go so the comparison does
// not depend on how the driver serializes timestamps.
func (r *repo) ListActiveSubscriptions(ctx context.Context, db *gorm.DB, accountID snowflake.ID, now time.Time) ([]domain.Subscription, error) {
	var items []domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE account_id = ? AND status = ?
		 ORDER BY current_period_end DESC`,
		accountID,
		domain.SubscriptionStatusActive,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	active := items[:0]
	for _, item := range items {
		if item.ActiveAt(now) {
			active = append(active, item)
		}
	}
	return active, nil
}
