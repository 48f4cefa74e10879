package testutil

import (
	"testing"
	"time"

	"gorm.io/gorm"
)

// InsertAccount writes an account row directly.
func InsertAccount(t *testing.T, db *gorm.DB, id int64, email string) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO accounts (id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, "", email, now, now,
	).Error; err != nil {
		t.Fatalf("insert account: %v", err)
	}
}

// InsertProduct writes a catalog product.
func InsertProduct(t *testing.T, db *gorm.DB, id int64, slug, priceID string, active bool) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO products (id, slug, name, stripe_price_id, price, currency, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, slug, slug, priceID, 4900, "usd", active, now, now,
	).Error; err != nil {
		t.Fatalf("insert product: %v", err)
	}
}

// InsertAsset writes a downloadable asset for a product.
func InsertAsset(t *testing.T, db *gorm.DB, id, productID int64, storageKey string, active bool) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO assets (id, product_id, name, storage_key, content_type, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, productID, "asset-"+storageKey, storageKey, "application/zip", active, now, now,
	).Error; err != nil {
		t.Fatalf("insert asset: %v", err)
	}
}

// InsertEntitlement writes a ledger row with the given state.
func InsertEntitlement(t *testing.T, db *gorm.DB, id, accountID, productID int64, active bool, expiresAt *time.Time) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO entitlements (id, account_id, product_id, active, granted_at, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, accountID, productID, active, now, expiresAt, now, now,
	).Error; err != nil {
		t.Fatalf("insert entitlement: %v", err)
	}
}

// InsertPurchase writes a purchase history row.
func InsertPurchase(t *testing.T, db *gorm.DB, id, accountID int64, sessionID, productType, status string, purchasedAt time.Time) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO purchases (id, account_id, stripe_session_id, product_type, amount, currency, status, purchased_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, accountID, sessionID, productType, 4900, "usd", status, purchasedAt.UTC(), purchasedAt.UTC(),
	).Error; err != nil {
		t.Fatalf("insert purchase: %v", err)
	}
}

// InsertSubscription writes a subscription history row.
func InsertSubscription(t *testing.T, db *gorm.DB, id, accountID int64, subscriptionID, productType, status string, periodEnd time.Time) {
	t.Helper()
	start := periodEnd.Add(-30 * 24 * time.Hour).UTC()
	if err := db.Exec(
		`INSERT INTO subscriptions (id, account_id, stripe_subscription_id, stripe_price_id, product_type, status,
		 current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, accountID, subscriptionID, "price_"+productType, productType, status, start, periodEnd.UTC(), false, start, start,
	).Error; err != nil {
		t.Fatalf("insert subscription: %v", err)
	}
}
