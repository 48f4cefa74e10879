package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/account/domain"
	"github.com/smallbiznis/storefront/internal/auth/password"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/providers/email"
	"github.com/smallbiznis/storefront/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Clock    clock.Clock
	Cfg      config.Config
	Email    email.Provider
	Cooldown domain.Cooldown `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	siteURL  string
	cooldown domain.Cooldown
	coolFor  time.Duration
	email    email.Provider
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("account.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		siteURL:  p.Cfg.SiteURL,
		cooldown: p.Cooldown,
		coolFor:  p.Cfg.RateLimit.Cooldown,
		email:    p.Email,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	emailAddr := domain.NormalizeEmail(req.Email)
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		return nil, domain.ErrInvalidEmail
	}
	if len(req.Password) < domain.MinPasswordLength {
		return nil, domain.ErrInvalidPassword
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, emailAddr)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAccountExists
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	account := domain.Account{
		ID:           s.genID.Generate(),
		Name:         name,
		Email:        emailAddr,
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAccountExists
		}
		return nil, err
	}

	s.log.Info("account registered", zap.String("account_id", account.ID.String()))
	return &account, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Account, error) {
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

func (s *Service) GetByEmail(ctx context.Context, emailAddr string) (*domain.Account, error) {
	emailAddr = domain.NormalizeEmail(emailAddr)
	if emailAddr == "" {
		return nil, domain.ErrInvalidEmail
	}
	account, err := s.repo.FindByEmail(ctx, s.db, emailAddr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

// RequestVerification replaces any outstanding token and mails a fresh link.
func (s *Service) RequestVerification(ctx context.Context, emailAddr string) (*domain.VerificationResult, error) {
	account, err := s.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if account.Verified() {
		return &domain.VerificationResult{AlreadyVerified: true}, nil
	}

	if s.cooldown != nil {
		ok, err := s.cooldown.Acquire(ctx, "verify-email:"+account.Email, s.coolFor)
		if err != nil {
			s.log.Warn("verification cooldown unavailable", zap.Error(err))
		} else if !ok {
			return &domain.VerificationResult{Throttled: true}, nil
		}
	}

	raw, err := newToken()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	token := domain.VerificationToken{
		Identifier: account.Email,
		TokenHash:  hashToken(raw),
		ExpiresAt:  now.Add(domain.VerificationTTL),
		CreatedAt:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteTokens(ctx, tx, account.Email); err != nil {
			return err
		}
		return s.repo.InsertToken(ctx, tx, &token)
	})
	if err != nil {
		return nil, err
	}

	link := fmt.Sprintf("%s/api/auth/verify-email/confirm?token=%s&email=%s",
		s.siteURL, url.QueryEscape(raw), url.QueryEscape(account.Email))
	if err := s.email.SendTemplate(ctx, []string{account.Email}, email.TemplateVerifyEmail, map[string]any{
		"Name":      account.Name,
		"VerifyURL": link,
	}); err != nil {
		s.log.Error("send verification email failed", zap.String("account_id", account.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	return &domain.VerificationResult{}, nil
}

func (s *Service) ConfirmVerification(ctx context.Context, emailAddr, rawToken string) error {
	emailAddr = domain.NormalizeEmail(emailAddr)
	rawToken = strings.TrimSpace(rawToken)
	if emailAddr == "" || rawToken == "" {
		return domain.ErrInvalidVerification
	}

	token, err := s.repo.FindToken(ctx, s.db, emailAddr, hashToken(rawToken))
	if err != nil {
		return err
	}
	if token == nil {
		return domain.ErrInvalidVerification
	}

	now := s.clock.Now()
	if now.After(token.ExpiresAt) {
		if err := s.repo.DeleteTokens(ctx, s.db, emailAddr); err != nil {
			return err
		}
		return domain.ErrVerificationExpired
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.FindByEmail(ctx, tx, emailAddr)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrInvalidVerification
		}
		if err := s.repo.MarkVerified(ctx, tx, account.ID, now); err != nil {
			return err
		}
		return s.repo.DeleteTokens(ctx, tx, emailAddr)
	})
}

func (s *Service) List(ctx context.Context) ([]domain.Account, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) DeleteByEmail(ctx context.Context, emailAddr string) error {
	account, err := s.GetByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Delete(ctx, tx, *account)
	})
	if err != nil {
		return err
	}
	s.log.Info("account deleted", zap.String("account_id", account.ID.String()))
	return nil
}

func (s *Service) DeleteUnverified(ctx context.Context) (int, error) {
	deleted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts, err := s.repo.ListUnverified(ctx, tx)
		if err != nil {
			return err
		}
		for _, account := range accounts {
			if err := s.repo.Delete(ctx, tx, account); err != nil {
				return err
			}
		}
		deleted = len(accounts)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("unverified accounts deleted", zap.Int("count", deleted))
	return deleted, nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
