package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Product is a sellable item tied to exactly one Stripe price.
type Product struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	Slug          string       `json:"slug"`
	Name          string       `json:"name"`
	Description   *string      `json:"description,omitempty"`
	StripePriceID string       `json:"stripe_price_id"`
	Price         int64        `json:"price"`
	Currency      string       `json:"currency"`
	Active        bool         `json:"active"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (Product) TableName() string { return "products" }

// Asset is a downloadable file. StorageKey never leaves the server.
type Asset struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	ProductID   snowflake.ID `json:"product_id"`
	Name        string       `json:"name"`
	Description *string      `json:"description,omitempty"`
	StorageKey  string       `json:"-"`
	FileSize    *int64       `json:"file_size,omitempty"`
	ContentType string       `json:"content_type"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (Asset) TableName() string { return "assets" }

// ProductView is the public catalog shape.
type ProductView struct {
	Product
	DisplayPrice string  `json:"display_price"`
	Assets       []Asset `json:"assets"`
}
