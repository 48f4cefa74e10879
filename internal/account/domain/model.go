package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Account is a customer identity, keyed by a case-insensitive email.
type Account struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	Name            string       `gorm:"not null" json:"name"`
	Email           string       `gorm:"not null;uniqueIndex" json:"email"`
	EmailVerifiedAt *time.Time   `json:"email_verified_at,omitempty"`
	PasswordHash    *string      `json:"-"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

func (a Account) Verified() bool {
	return a.EmailVerifiedAt != nil
}

// VerificationToken stores the hash of an emailed verification secret.
type VerificationToken struct {
	Identifier string    `gorm:"primaryKey"`
	TokenHash  string    `gorm:"primaryKey"`
	ExpiresAt  time.Time `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (VerificationToken) TableName() string { return "verification_tokens" }

// NormalizeEmail is applied on every write and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
