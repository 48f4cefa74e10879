package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/storefront/internal/account/domain"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	entitlementdomain "github.com/smallbiznis/storefront/internal/entitlement/domain"
	historydomain "github.com/smallbiznis/storefront/internal/history/domain"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	"github.com/smallbiznis/storefront/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Adapter      paymentdomain.Adapter
	Gateway      paymentdomain.Gateway
	Repo         paymentdomain.Repository
	Accounts     accountdomain.Repository
	Catalog      catalogdomain.Repository
	Entitlements entitlementdomain.Repository
	History      historydomain.Repository
	Pricing      *config.PricingHolder
	Metrics      *obsmetrics.Metrics          `optional:"true"`
	Reconcile    *obsmetrics.ReconcileMetrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	adapter      paymentdomain.Adapter
	gateway      paymentdomain.Gateway
	repo         paymentdomain.Repository
	accounts     accountdomain.Repository
	catalog      catalogdomain.Repository
	entitlements entitlementdomain.Repository
	history      historydomain.Repository
	pricing      *config.PricingHolder
	metrics      *obsmetrics.Metrics
	reconcile    *obsmetrics.ReconcileMetrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("payment.webhook"),
		genID:        p.GenID,
		clock:        p.Clock,
		adapter:      p.Adapter,
		gateway:      p.Gateway,
		repo:         p.Repo,
		accounts:     p.Accounts,
		catalog:      p.Catalog,
		entitlements: p.Entitlements,
		history:      p.History,
		pricing:      p.Pricing,
		metrics:      p.Metrics,
		reconcile:    p.Reconcile,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.IngestResult, error) {
	ctx, span := otel.Tracer("storefront/payment").Start(ctx, "payment.webhook.ingest")
	defer span.End()

	started := time.Now()
	provider := s.adapter.Provider()
	log := logger.WithContext(ctx, s.log).With(zap.String("provider", provider))

	if err := s.adapter.Verify(ctx, payload, headers); err != nil {
		log.Warn("webhook signature rejected")
		s.observe(ctx, provider, "", obsmetrics.ReconcileOutcomeRejected, started)
		span.SetStatus(codes.Error, "signature rejected")
		return nil, paymentdomain.ErrInvalidSignature
	}

	event, err := s.adapter.Parse(ctx, payload)
	if errors.Is(err, paymentdomain.ErrEventIgnored) {
		s.observe(ctx, provider, "", paymentdomain.OutcomeIgnored, started)
		return &paymentdomain.IngestResult{Outcome: paymentdomain.OutcomeIgnored}, nil
	}
	if err != nil {
		log.Warn("webhook payload rejected", zap.Error(err))
		s.observe(ctx, provider, "", obsmetrics.ReconcileOutcomeRejected, started)
		return nil, err
	}

	span.SetAttributes(tracing.SafeAttributes(attribute.String("webhook.event_type", event.Type))...)
	log = log.With(zap.String("event_id", event.ProviderEventID), zap.String("event_type", event.Type))

	if err := s.enrichSubscription(ctx, event); err != nil {
		log.Warn("customer lookup failed", zap.Error(err))
		s.observe(ctx, provider, event.Type, obsmetrics.ReconcileOutcomeFailed, started)
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "upstream failure")
		return nil, err
	}

	outcome := paymentdomain.OutcomeProcessed
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		record := paymentdomain.EventRecord{
			ID:              s.genID.Generate(),
			Provider:        provider,
			ProviderEventID: event.ProviderEventID,
			EventType:       event.Type,
			Payload:         datatypes.JSON(payload),
			ReceivedAt:      now,
		}
		inserted, err := s.repo.InsertEvent(ctx, tx, &record)
		if err != nil {
			return err
		}
		stored := &record
		if !inserted {
			stored, err = s.repo.FindEvent(ctx, tx, provider, event.ProviderEventID)
			if err != nil {
				return err
			}
			if stored == nil {
				return paymentdomain.ErrInvalidEvent
			}
			if stored.ProcessedAt != nil {
				outcome = paymentdomain.OutcomeDuplicate
				return nil
			}
		}

		applied, err := s.apply(ctx, tx, event, now, log)
		switch {
		case err == nil:
			outcome = applied
		case paymentdomain.IsBusinessError(err):
			log.Warn("webhook event not applied", zap.Error(err))
			outcome = paymentdomain.OutcomeSkipped
		default:
			return err
		}
		return s.repo.MarkProcessed(ctx, tx, stored.ID, outcome, now)
	})
	if err != nil {
		log.Error("webhook reconciliation failed", zap.Error(err))
		s.reconcile.Failure(event.Type, err)
		s.observe(ctx, provider, event.Type, obsmetrics.ReconcileOutcomeFailed, started)
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "reconciliation failed")
		return nil, fmt.Errorf("reconcile %s: %w", event.ProviderEventID, err)
	}

	log.Info("webhook reconciled", zap.String("outcome", outcome))
	s.observe(ctx, provider, event.Type, outcome, started)
	return &paymentdomain.IngestResult{
		EventID:   event.ProviderEventID,
		EventType: event.Type,
		Outcome:   outcome,
	}, nil
}

func (s *Service) observe(ctx context.Context, provider, eventType, outcome string, started time.Time) {
	s.metrics.RecordWebhookEvent(ctx, provider, eventType, outcome)
	s.reconcile.Observe(eventType, outcome, time.Since(started))
}

// enrichSubscription fills the customer email from the provider when the
// event carries neither an account id nor an email. It runs outside the
// transaction so a slow lookup never holds locks.
func (s *Service) enrichSubscription(ctx context.Context, event *paymentdomain.Event) error {
	sub := event.Subscription
	if sub == nil || event.Type == paymentdomain.EventSubscriptionDeleted {
		return nil
	}
	if sub.Metadata[paymentdomain.MetadataUserID] != "" || sub.CustomerEmail != "" || sub.CustomerID == "" {
		return nil
	}

	customer, err := s.gateway.RetrieveCustomer(ctx, sub.CustomerID)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrUpstream) {
			return err
		}
		return fmt.Errorf("%w: %v", paymentdomain.ErrUpstream, err)
	}
	sub.CustomerEmail = customer.Email
	if sub.CustomerName == "" {
		sub.CustomerName = customer.Name
	}
	return nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, event *paymentdomain.Event, now time.Time, log *zap.Logger) (string, error) {
	switch event.Type {
	case paymentdomain.EventCheckoutCompleted, paymentdomain.EventCheckoutAsyncPaymentSucceed:
		return s.applyCheckout(ctx, tx, event, now, log)
	case paymentdomain.EventSubscriptionCreated, paymentdomain.EventSubscriptionUpdated:
		return s.applySubscription(ctx, tx, event, now)
	case paymentdomain.EventSubscriptionDeleted:
		return s.applySubscriptionDeleted(ctx, tx, event, now, log)
	default:
		return paymentdomain.OutcomeIgnored, nil
	}
}

func (s *Service) applyCheckout(ctx context.Context, tx *gorm.DB, event *paymentdomain.Event, now time.Time, log *zap.Logger) (string, error) {
	session := event.Checkout
	if session == nil {
		return "", paymentdomain.ErrInvalidEvent
	}
	// Delayed payment methods complete later through async_payment_succeeded.
	if !session.Paid() {
		log.Info("checkout awaiting payment", zap.String("session_id", session.ID))
		return paymentdomain.OutcomeSkipped, nil
	}

	account, err := s.resolveAccount(ctx, tx, session.Metadata[paymentdomain.MetadataUserID], session.CustomerEmail, session.CustomerName, now)
	if err != nil {
		return "", err
	}

	if tag := strings.ToUpper(strings.TrimSpace(session.Metadata[paymentdomain.MetadataProduct])); tag != "" && session.Mode != string(paymentdomain.CheckoutModeSubscription) {
		created, err := s.history.InsertPurchase(ctx, tx, &historydomain.Purchase{
			ID:              s.genID.Generate(),
			AccountID:       account.ID,
			StripeSessionID: session.ID,
			ProductType:     tag,
			Amount:          session.AmountTotal,
			Currency:        session.Currency,
			Status:          historydomain.PurchaseStatusCompleted,
			PurchasedAt:     event.OccurredAt,
			CreatedAt:       now,
		})
		if err != nil {
			return "", err
		}
		if !created {
			log.Info("purchase already recorded", zap.String("session_id", session.ID))
		}
	}

	rawProductID := session.Metadata[paymentdomain.MetadataProductID]
	if rawProductID == "" {
		return paymentdomain.OutcomeProcessed, nil
	}
	productID, err := snowflake.ParseString(rawProductID)
	if err != nil || productID <= 0 {
		return "", fmt.Errorf("%w: %q", paymentdomain.ErrInvalidProductID, rawProductID)
	}
	product, err := s.catalog.FindProductByID(ctx, tx, productID)
	if err != nil {
		return "", err
	}
	if product == nil {
		return "", fmt.Errorf("%w: %s", paymentdomain.ErrUnknownProduct, productID)
	}

	if _, err := s.entitlements.Upsert(ctx, tx, &entitlementdomain.Entitlement{
		ID:        s.genID.Generate(),
		AccountID: account.ID,
		ProductID: product.ID,
		Active:    true,
		GrantedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return "", err
	}
	s.metrics.RecordEntitlementGrant(ctx, "webhook")
	log.Info("entitlement granted",
		zap.String("account_id", account.ID.String()),
		zap.String("product_id", product.ID.String()),
	)
	return paymentdomain.OutcomeProcessed, nil
}

// applySubscription upserts by provider subscription id, so an update seen
// before its create still lands.
func (s *Service) applySubscription(ctx context.Context, tx *gorm.DB, event *paymentdomain.Event, now time.Time) (string, error) {
	sub := event.Subscription
	if sub == nil {
		return "", paymentdomain.ErrInvalidEvent
	}

	account, err := s.resolveAccount(ctx, tx, sub.Metadata[paymentdomain.MetadataUserID], sub.CustomerEmail, sub.CustomerName, now)
	if err != nil {
		return "", err
	}

	tier, ok := s.pricing.TierForPrice(sub.PriceID)
	if !ok {
		tier = historydomain.ProductTypeUnknown
	}

	if err := s.history.UpsertSubscription(ctx, tx, &historydomain.Subscription{
		ID:                   s.genID.Generate(),
		AccountID:            account.ID,
		StripeSubscriptionID: sub.ID,
		StripePriceID:        sub.PriceID,
		ProductType:          tier,
		Status:               sub.Status,
		CurrentPeriodStart:   sub.CurrentPeriodStart,
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		CreatedAt:            now,
		UpdatedAt:            now,
	}); err != nil {
		return "", err
	}
	return paymentdomain.OutcomeProcessed, nil
}

func (s *Service) applySubscriptionDeleted(ctx context.Context, tx *gorm.DB, event *paymentdomain.Event, now time.Time, log *zap.Logger) (string, error) {
	sub := event.Subscription
	if sub == nil {
		return "", paymentdomain.ErrInvalidEvent
	}
	found, err := s.history.MarkSubscriptionCanceled(ctx, tx, sub.ID, now)
	if err != nil {
		return "", err
	}
	if !found {
		log.Warn("canceled subscription not on record", zap.String("subscription_id", sub.ID))
	}
	return paymentdomain.OutcomeProcessed, nil
}

// resolveAccount prefers the account id stamped at checkout and falls back to
// the customer email, creating a password-less account for unseen buyers.
func (s *Service) resolveAccount(ctx context.Context, tx *gorm.DB, rawUserID, email, name string, now time.Time) (*accountdomain.Account, error) {
	if rawUserID != "" {
		if id, err := snowflake.ParseString(rawUserID); err == nil && id > 0 {
			account, err := s.accounts.FindByID(ctx, tx, id)
			if err != nil {
				return nil, err
			}
			if account != nil {
				return account, nil
			}
		}
	}

	email = accountdomain.NormalizeEmail(email)
	if email == "" {
		return nil, paymentdomain.ErrMissingEmail
	}
	name = strings.TrimSpace(name)

	account, err := s.accounts.InsertIfAbsent(ctx, tx, &accountdomain.Account{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if account.Name == "" && name != "" {
		if err := s.accounts.FillName(ctx, tx, account.ID, name, now); err != nil {
			return nil, err
		}
		account.Name = name
	}
	return account, nil
}
