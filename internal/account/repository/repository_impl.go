package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, name, email, email_verified_at, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Name,
		account.Email,
		account.EmailVerifiedAt,
		account.PasswordHash,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, account *domain.Account) (*domain.Account, error) {
	if err := db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, name, email, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (email) DO NOTHING`,
		account.ID,
		account.Name,
		account.Email,
		account.CreatedAt,
		account.UpdatedAt,
	).Error; err != nil {
		return nil, err
	}
	stored, err := r.FindByEmail(ctx, db, account.Email)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, errors.New("account vanished after upsert")
	}
	return stored, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	return r.findOne(ctx, db, `SELECT * FROM accounts WHERE id = ?`, id)
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Account, error) {
	return r.findOne(ctx, db, `SELECT * FROM accounts WHERE email = ?`, email)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Account, error) {
	var item domain.Account
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Account, error) {
	var items []domain.Account
	err := db.WithContext(ctx).Raw(`SELECT * FROM accounts ORDER BY created_at DESC, id DESC`).Scan(&items).Error
	return items, err
}

func (r *repo) ListUnverified(ctx context.Context, db *gorm.DB) ([]domain.Account, error) {
	var items []domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM accounts WHERE email_verified_at IS NULL ORDER BY created_at, id`,
	).Scan(&items).Error
	return items, err
}

func (r *repo) MarkVerified(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts SET email_verified_at = ?, updated_at = ? WHERE id = ?`,
		at, at, id,
	).Error
}

func (r *repo) UpdatePasswordHash(ctx context.Context, db *gorm.DB, id snowflake.ID, hash string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, at, id,
	).Error
}

func (r *repo) FillName(ctx context.Context, db *gorm.DB, id snowflake.ID, name string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts SET name = ?, updated_at = ? WHERE id = ? AND name = ''`,
		name, at, id,
	).Error
}

// Delete removes the account together with its history and ledger rows.
// Callers run it inside a transaction.
func (r *repo) Delete(ctx context.Context, db *gorm.DB, account domain.Account) error {
	statements := []struct {
		query string
		arg   any
	}{
		{`DELETE FROM verification_tokens WHERE identifier = ?`, account.Email},
		{`DELETE FROM entitlements WHERE account_id = ?`, account.ID},
		{`DELETE FROM purchases WHERE account_id = ?`, account.ID},
		{`DELETE FROM subscriptions WHERE account_id = ?`, account.ID},
		{`DELETE FROM accounts WHERE id = ?`, account.ID},
	}
	for _, stmt := range statements {
		if err := db.WithContext(ctx).Exec(stmt.query, stmt.arg).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) InsertToken(ctx context.Context, db *gorm.DB, token *domain.VerificationToken) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO verification_tokens (identifier, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		token.Identifier,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	).Error
}

func (r *repo) FindToken(ctx context.Context, db *gorm.DB, identifier, tokenHash string) (*domain.VerificationToken, error) {
	var item domain.VerificationToken
	if err := db.WithContext(ctx).Raw(
		`SELECT * FROM verification_tokens WHERE identifier = ? AND token_hash = ?`,
		identifier, tokenHash,
	).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.Identifier == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) DeleteTokens(ctx context.Context, db *gorm.DB, identifier string) error {
	return db.WithContext(ctx).Exec(`DELETE FROM verification_tokens WHERE identifier = ?`, identifier).Error
}

func (r *repo) DeleteExpiredTokens(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM verification_tokens WHERE expires_at < ?`, before)
	return res.RowsAffected, res.Error
}
