package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert activates the (account, product) row, creating it when absent.
	// Concurrent grants converge on a single row.
	Upsert(ctx context.Context, db *gorm.DB, ent *Entitlement) (*Entitlement, error)
	Find(ctx context.Context, db *gorm.DB, accountID, productID snowflake.ID) (*Entitlement, error)
	ListActiveByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Entitlement, error)
	Deactivate(ctx context.Context, db *gorm.DB, accountID, productID snowflake.ID, at time.Time) (bool, error)
}
