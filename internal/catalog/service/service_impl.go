package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/cache"
	"github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Cache cache.CatalogCache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	cache cache.CatalogCache
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		repo:  p.Repo,
		cache: p.Cache,
	}
}

// ListProducts returns active products that have at least one active asset.
// The listing may be served from cache for a short while.
func (s *Service) ListProducts(ctx context.Context) ([]domain.ProductView, error) {
	if s.cache != nil {
		if views, ok := s.cache.GetProducts(); ok {
			return views, nil
		}
	}

	views, err := s.listProducts(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetProducts(views)
	}
	return views, nil
}

func (s *Service) listProducts(ctx context.Context) ([]domain.ProductView, error) {
	products, err := s.repo.ListActiveProducts(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return []domain.ProductView{}, nil
	}

	ids := make([]snowflake.ID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	assets, err := s.repo.ListActiveAssets(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	byProduct := make(map[snowflake.ID][]domain.Asset, len(products))
	for _, a := range assets {
		byProduct[a.ProductID] = append(byProduct[a.ProductID], a)
	}

	views := make([]domain.ProductView, 0, len(products))
	for _, p := range products {
		if len(byProduct[p.ID]) == 0 {
			continue
		}
		views = append(views, domain.ProductView{
			Product:      p,
			DisplayPrice: money.Format(p.Price, p.Currency),
			Assets:       byProduct[p.ID],
		})
	}
	return views, nil
}

func (s *Service) GetProduct(ctx context.Context, id snowflake.ID) (*domain.Product, error) {
	p, err := s.repo.FindProductByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (s *Service) GetProductByPriceID(ctx context.Context, priceID string) (*domain.Product, error) {
	p, err := s.repo.FindProductByPriceID(ctx, s.db, priceID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (s *Service) GetAsset(ctx context.Context, id snowflake.ID) (*domain.Asset, error) {
	a, err := s.repo.FindAssetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrAssetNotFound
	}
	return a, nil
}
