package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	// InsertIfAbsent creates the account unless the email already exists and
	// returns the stored row either way.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, account *Account) (*Account, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Account, error)
	List(ctx context.Context, db *gorm.DB) ([]Account, error)
	ListUnverified(ctx context.Context, db *gorm.DB) ([]Account, error)
	MarkVerified(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, db *gorm.DB, id snowflake.ID, hash string, at time.Time) error
	FillName(ctx context.Context, db *gorm.DB, id snowflake.ID, name string, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, account Account) error

	InsertToken(ctx context.Context, db *gorm.DB, token *VerificationToken) error
	FindToken(ctx context.Context, db *gorm.DB, identifier, tokenHash string) (*VerificationToken, error)
	DeleteTokens(ctx context.Context, db *gorm.DB, identifier string) error
	DeleteExpiredTokens(ctx context.Context, db *gorm.DB, before time.Time) (int64, error)
}
