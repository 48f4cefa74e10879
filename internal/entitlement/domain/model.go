package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Entitlement records that an account may use a product. There is at most
// one row per (account, product).
type Entitlement struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	AccountID snowflake.ID `json:"account_id"`
	ProductID snowflake.ID `json:"product_id"`
	Active    bool         `json:"active"`
	GrantedAt time.Time    `json:"granted_at"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (Entitlement) TableName() string { return "entitlements" }

// Usable reports whether the entitlement grants access at now. A row
// expiring exactly at now is still usable.
func (e Entitlement) Usable(now time.Time) bool {
	if !e.Active {
		return false
	}
	return e.ExpiresAt == nil || !e.ExpiresAt.Before(now)
}
