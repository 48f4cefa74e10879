package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/entitlement/domain"
	"gorm.io/gorm"
)

const columns = `id, account_id, product_id, active, granted_at, expires_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, ent *domain.Entitlement) (*domain.Entitlement, error) {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO entitlements (`+columns+`)
		 VALUES (?, ?, ?, TRUE, ?, ?, ?, ?)
		 ON CONFLICT (account_id, product_id) DO UPDATE SET
		   active = TRUE,
		   granted_at = excluded.granted_at,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`,
		ent.ID,
		ent.AccountID,
		ent.ProductID,
		ent.GrantedAt,
		ent.ExpiresAt,
		ent.CreatedAt,
		ent.UpdatedAt,
	).Error
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, db, ent.AccountID, ent.ProductID)
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, accountID, productID snowflake.ID) (*domain.Entitlement, error) {
	var e domain.Entitlement
	err := db.WithContext(ctx).Raw(
		`SELECT `+columns+` FROM entitlements WHERE account_id = ? AND product_id = ?`,
		accountID,
		productID,
	).Scan(&e).Error
	if err != nil {
		return nil, err
	}
	if e.ID == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *repo) ListActiveByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]domain.Entitlement, error) {
	var items []domain.Entitlement
	err := db.WithContext(ctx).Raw(
		`SELECT `+columns+` FROM entitlements WHERE account_id = ? AND active = TRUE ORDER BY granted_at DESC`,
		accountID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, accountID, productID snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE entitlements SET active = FALSE, updated_at = ? WHERE account_id = ? AND product_id = ?`,
		at,
		accountID,
		productID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
