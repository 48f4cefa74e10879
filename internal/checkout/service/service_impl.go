package service

import (
	"context"
	"errors"
	"strings"

	accountdomain "github.com/smallbiznis/storefront/internal/account/domain"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	entitlementdomain "github.com/smallbiznis/storefront/internal/entitlement/domain"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	kindCatalog = "catalog"
	kindLegacy  = "legacy"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Cfg          config.Config
	Clock        clock.Clock
	Gateway      paymentdomain.Gateway
	Accounts     accountdomain.Repository
	Catalog      catalogdomain.Repository
	Entitlements entitlementdomain.Repository
	Pricing      *config.PricingHolder
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	enabled      bool
	siteURL      string
	clock        clock.Clock
	gateway      paymentdomain.Gateway
	accounts     accountdomain.Repository
	catalog      catalogdomain.Repository
	entitlements entitlementdomain.Repository
	pricing      *config.PricingHolder
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("checkout.service"),
		enabled:      p.Cfg.Stripe.CheckoutEnabled,
		siteURL:      strings.TrimRight(p.Cfg.SiteURL, "/"),
		clock:        p.Clock,
		gateway:      p.Gateway,
		accounts:     p.Accounts,
		catalog:      p.Catalog,
		entitlements: p.Entitlements,
		pricing:      p.Pricing,
		metrics:      p.Metrics,
	}
}

// CreateSession opens a hosted checkout for one catalog product. Buyers who
// can already download the product are sent back to their downloads.
func (s *Service) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	session, err := s.createSession(ctx, req)
	s.metrics.RecordCheckoutSession(ctx, kindCatalog, outcome(err))
	return session, err
}

func (s *Service) createSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	if !s.enabled {
		return nil, domain.ErrCheckoutDisabled
	}
	priceID := strings.TrimSpace(req.PriceID)
	if priceID == "" {
		return nil, domain.ErrPriceRequired
	}

	account, err := s.accounts.FindByID(ctx, s.db, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrNotFound
	}

	product, err := s.catalog.FindProductByPriceID(ctx, s.db, priceID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	if !product.Active {
		return nil, domain.ErrProductInactive
	}

	ent, err := s.entitlements.Find(ctx, s.db, account.ID, product.ID)
	if err != nil {
		return nil, err
	}
	if ent != nil && ent.Usable(s.clock.Now()) {
		return nil, &domain.AlreadyOwnedError{
			ProductID:   product.ID,
			RedirectURL: domain.DownloadsPath,
		}
	}

	result, err := s.gateway.CreateCheckoutSession(ctx, paymentdomain.CheckoutSessionParams{
		Mode:          paymentdomain.CheckoutModePayment,
		PriceID:       product.StripePriceID,
		Quantity:      1,
		CustomerEmail: account.Email,
		SuccessURL:    s.siteURL + domain.DownloadsPath + "?success=1",
		CancelURL:     s.siteURL + domain.DownloadsPath + "?canceled=1",
		Metadata: map[string]string{
			paymentdomain.MetadataUserID:      account.ID.String(),
			paymentdomain.MetadataProductID:   product.ID.String(),
			paymentdomain.MetadataProductSlug: product.Slug,
		},
	})
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("checkout session failed",
			zap.String("product_id", product.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("checkout session created",
		zap.String("account_id", account.ID.String()),
		zap.String("product_id", product.ID.String()),
		zap.String("session_id", result.ID),
	)
	return &domain.Session{ID: result.ID, URL: result.URL}, nil
}

// CreateLegacySession opens a hosted checkout for a tier tag mapped through
// the configured price table.
func (s *Service) CreateLegacySession(ctx context.Context, req domain.LegacySessionRequest) (*domain.Session, error) {
	session, err := s.createLegacySession(ctx, req)
	s.metrics.RecordCheckoutSession(ctx, kindLegacy, outcome(err))
	return session, err
}

func (s *Service) createLegacySession(ctx context.Context, req domain.LegacySessionRequest) (*domain.Session, error) {
	if !s.enabled {
		return nil, domain.ErrCheckoutDisabled
	}

	tier := strings.ToUpper(strings.TrimSpace(req.Product))
	if tier == "" {
		tier = domain.DefaultLegacyProduct
	}
	priceID, ok := s.pricing.PriceFor(tier)
	if !ok || priceID == "" {
		return nil, domain.ErrInvalidProduct
	}

	mode := paymentdomain.CheckoutMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	if mode == "" {
		mode = domain.DefaultLegacyMode
	}
	if mode != paymentdomain.CheckoutModePayment && mode != paymentdomain.CheckoutModeSubscription {
		return nil, domain.ErrInvalidMode
	}

	email := accountdomain.NormalizeEmail(req.Email)
	if email == "" {
		account, err := s.accounts.FindByID(ctx, s.db, req.AccountID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, accountdomain.ErrNotFound
		}
		email = account.Email
	}

	result, err := s.gateway.CreateCheckoutSession(ctx, paymentdomain.CheckoutSessionParams{
		Mode:                mode,
		PriceID:             priceID,
		Quantity:            1,
		CustomerEmail:       email,
		SuccessURL:          s.siteURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:           s.siteURL + "/cancel",
		AllowPromotionCodes: true,
		Metadata: map[string]string{
			paymentdomain.MetadataProduct: tier,
			paymentdomain.MetadataUserID:  req.AccountID.String(),
		},
	})
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("legacy checkout session failed",
			zap.String("product", tier),
			zap.Error(err),
		)
		return nil, err
	}
	return &domain.Session{ID: result.ID, URL: result.URL}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, domain.ErrAlreadyOwned):
		return "owned"
	case errors.Is(err, domain.ErrCheckoutDisabled):
		return "disabled"
	case errors.Is(err, paymentdomain.ErrUpstream):
		return "upstream_error"
	default:
		return "rejected"
	}
}
