package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
)

const DefaultLinkTTL = 5 * time.Minute

// Presigner issues time-boxed retrieval URLs for stored objects.
type Presigner interface {
	Configured() bool
	Missing() []string
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Link is a signed retrieval URL. It never carries the storage key.
type Link struct {
	AssetID   snowflake.ID `json:"asset_id"`
	AssetName string       `json:"asset_name"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// OwnedProduct is one row of the downloads view.
type OwnedProduct struct {
	Product   catalogdomain.Product `json:"product"`
	Assets    []catalogdomain.Asset `json:"assets"`
	GrantedAt time.Time             `json:"granted_at"`
	ExpiresAt *time.Time            `json:"expires_at,omitempty"`
}

type Service interface {
	// Authorize runs the gate checks for (account, asset) and signs a link.
	Authorize(ctx context.Context, accountID, assetID snowflake.ID) (*Link, error)
	ListDownloads(ctx context.Context, accountID snowflake.ID) ([]OwnedProduct, error)
}

var (
	ErrAssetNotFound        = errors.New("asset_not_found")
	ErrAssetGone            = errors.New("asset_unavailable")
	ErrNotEntitled          = errors.New("not_entitled")
	ErrEntitlementExpired   = errors.New("entitlement_expired")
	ErrStorageNotConfigured = errors.New("storage_not_configured")
	ErrPresignFailed        = errors.New("presign_failed")
)

// StorageUnavailableError reports which settings are missing for an asset
// that would otherwise be downloadable.
type StorageUnavailableError struct {
	AssetID   snowflake.ID
	AssetName string
	Missing   []string
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrStorageNotConfigured, strings.Join(e.Missing, ", "))
}

func (e *StorageUnavailableError) Is(target error) bool {
	return target == ErrStorageNotConfigured
}
