package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/entitlement/domain"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("entitlement.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) Grant(ctx context.Context, req domain.GrantRequest) (*domain.Entitlement, error) {
	if req.AccountID == 0 || req.ProductID == 0 {
		return nil, domain.ErrInvalidRequest
	}

	now := s.clock.Now()
	ent, err := s.repo.Upsert(ctx, s.db, &domain.Entitlement{
		ID:        s.genID.Generate(),
		AccountID: req.AccountID,
		ProductID: req.ProductID,
		Active:    true,
		GrantedAt: now,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordEntitlementGrant(ctx, "manual")

	s.log.Info("entitlement granted",
		zap.String("account_id", req.AccountID.String()),
		zap.String("product_id", req.ProductID.String()),
	)
	return ent, nil
}

func (s *Service) Revoke(ctx context.Context, accountID, productID snowflake.ID) error {
	ok, err := s.repo.Deactivate(ctx, s.db, accountID, productID, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.log.Info("entitlement revoked",
		zap.String("account_id", accountID.String()),
		zap.String("product_id", productID.String()),
	)
	return nil
}

func (s *Service) Get(ctx context.Context, accountID, productID snowflake.ID) (*domain.Entitlement, error) {
	ent, err := s.repo.Find(ctx, s.db, accountID, productID)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return nil, domain.ErrNotFound
	}
	return ent, nil
}

func (s *Service) ListByAccount(ctx context.Context, accountID snowflake.ID) ([]domain.Entitlement, error) {
	return s.repo.ListActiveByAccount(ctx, s.db, accountID)
}
