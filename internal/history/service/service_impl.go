package service

import (
	"context"
	"fmt"
	"io"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/storefront/internal/account/domain"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/history/domain"
	"github.com/smallbiznis/storefront/internal/providers/pdf"
	"github.com/smallbiznis/storefront/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Repo     domain.Repository
	Accounts accountdomain.Repository
	PDF      pdf.Provider
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	storeName string
	repo      domain.Repository
	accounts  accountdomain.Repository
	pdf       pdf.Provider
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("history.service"),
		storeName: p.Cfg.AppName,
		repo:      p.Repo,
		accounts:  p.Accounts,
		pdf:       p.PDF,
	}
}

func (s *Service) ListPurchases(ctx context.Context, accountID snowflake.ID) ([]domain.Purchase, error) {
	items, err := s.repo.ListPurchases(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Purchase{}
	}
	return items, nil
}

func (s *Service) ListSubscriptions(ctx context.Context, accountID snowflake.ID) ([]domain.Subscription, error) {
	items, err := s.repo.ListSubscriptions(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Subscription{}
	}
	return items, nil
}

// Receipt renders a PDF for one of the caller's purchases. Another account's
// purchase is reported as not found.
func (s *Service) Receipt(ctx context.Context, accountID, purchaseID snowflake.ID) (*domain.Receipt, error) {
	purchase, err := s.repo.FindPurchase(ctx, s.db, accountID, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, domain.ErrPurchaseNotFound
	}

	account, err := s.accounts.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrPurchaseNotFound
	}

	number := purchase.ID.String()
	reader, err := s.pdf.GenerateReceipt(ctx, pdf.ReceiptData{
		StoreName:     s.storeName,
		ReceiptNumber: number,
		DatePaid:      purchase.PurchasedAt.Format("January 2, 2006"),
		CustomerName:  account.Name,
		CustomerEmail: account.Email,
		Description:   purchase.ProductType + " access",
		Amount:        money.Format(purchase.Amount, purchase.Currency),
		Status:        purchase.Status,
		Reference:     purchase.StripeSessionID,
	})
	if err != nil {
		s.log.Error("render receipt failed", zap.String("purchase_id", number), zap.Error(err))
		return nil, fmt.Errorf("render receipt: %w", err)
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	return &domain.Receipt{
		Filename: "receipt-" + number + ".pdf",
		Content:  content,
	}, nil
}
