package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/download/domain"
	entitlementdomain "github.com/smallbiznis/storefront/internal/entitlement/domain"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Cfg          config.Config
	Clock        clock.Clock
	Catalog      catalogdomain.Repository
	Entitlements entitlementdomain.Repository
	Presigner    domain.Presigner
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	ttl          time.Duration
	clock        clock.Clock
	catalog      catalogdomain.Repository
	entitlements entitlementdomain.Repository
	presigner    domain.Presigner
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	ttl := p.Cfg.Storage.DownloadURLTTL
	if ttl <= 0 {
		ttl = domain.DefaultLinkTTL
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("download.service"),
		ttl:          ttl,
		clock:        p.Clock,
		catalog:      p.Catalog,
		entitlements: p.Entitlements,
		presigner:    p.Presigner,
		metrics:      p.Metrics,
	}
}

// Authorize checks, in order, that the asset exists, is active, is covered by
// an active entitlement, and that the entitlement has not expired.
func (s *Service) Authorize(ctx context.Context, accountID, assetID snowflake.ID) (*domain.Link, error) {
	link, err := s.authorize(ctx, accountID, assetID)
	s.metrics.RecordDownload(ctx, outcome(err))
	return link, err
}

func (s *Service) authorize(ctx context.Context, accountID, assetID snowflake.ID) (*domain.Link, error) {
	asset, err := s.catalog.FindAssetByID(ctx, s.db, assetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, domain.ErrAssetNotFound
	}
	if !asset.Active {
		return nil, domain.ErrAssetGone
	}

	ent, err := s.entitlements.Find(ctx, s.db, accountID, asset.ProductID)
	if err != nil {
		return nil, err
	}
	if ent == nil || !ent.Active {
		return nil, domain.ErrNotEntitled
	}
	now := s.clock.Now()
	if !ent.Usable(now) {
		return nil, domain.ErrEntitlementExpired
	}

	if s.presigner == nil || !s.presigner.Configured() {
		var missing []string
		if s.presigner != nil {
			missing = s.presigner.Missing()
		}
		return nil, &domain.StorageUnavailableError{
			AssetID:   asset.ID,
			AssetName: asset.Name,
			Missing:   missing,
		}
	}

	url, err := s.presigner.PresignGet(ctx, asset.StorageKey, s.ttl)
	if err != nil {
		logger.WithContext(ctx, s.log).Error("presign failed",
			zap.String("asset_id", asset.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: asset %s", domain.ErrPresignFailed, asset.ID)
	}

	s.log.Info("download authorized",
		zap.String("account_id", accountID.String()),
		zap.String("asset_id", asset.ID.String()),
	)
	return &domain.Link{
		AssetID:   asset.ID,
		AssetName: asset.Name,
		URL:       url,
		ExpiresAt: now.Add(s.ttl),
	}, nil
}

// ListDownloads returns the products the account can currently download,
// each with its active assets.
func (s *Service) ListDownloads(ctx context.Context, accountID snowflake.ID) ([]domain.OwnedProduct, error) {
	ents, err := s.entitlements.ListActiveByAccount(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	usable := make(map[snowflake.ID]entitlementdomain.Entitlement, len(ents))
	ids := make([]snowflake.ID, 0, len(ents))
	for _, ent := range ents {
		if !ent.Usable(now) {
			continue
		}
		usable[ent.ProductID] = ent
		ids = append(ids, ent.ProductID)
	}
	if len(ids) == 0 {
		return []domain.OwnedProduct{}, nil
	}

	products, err := s.catalog.ListProductsByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	assets, err := s.catalog.ListActiveAssets(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	byProduct := make(map[snowflake.ID][]catalogdomain.Asset, len(ids))
	for _, a := range assets {
		byProduct[a.ProductID] = append(byProduct[a.ProductID], a)
	}

	out := make([]domain.OwnedProduct, 0, len(products))
	for _, p := range products {
		if len(byProduct[p.ID]) == 0 {
			continue
		}
		ent := usable[p.ID]
		out = append(out, domain.OwnedProduct{
			Product:   p,
			Assets:    byProduct[p.ID],
			GrantedAt: ent.GrantedAt,
			ExpiresAt: ent.ExpiresAt,
		})
	}
	return out, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "granted"
	case errors.Is(err, domain.ErrAssetNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAssetGone):
		return "gone"
	case errors.Is(err, domain.ErrNotEntitled):
		return "forbidden"
	case errors.Is(err, domain.ErrEntitlementExpired):
		return "expired"
	case errors.Is(err, domain.ErrStorageNotConfigured):
		return "unconfigured"
	default:
		return "error"
	}
}
