package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/storefront/internal/account/domain"
	"github.com/smallbiznis/storefront/internal/auth/domain"
	"github.com/smallbiznis/storefront/internal/auth/password"
	"github.com/smallbiznis/storefront/internal/auth/token"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Clock    clock.Clock
	Accounts accountdomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	accounts accountdomain.Repository
	clock    clock.Clock
	issuer   *token.Issuer
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("auth.service"),
		accounts: p.Accounts,
		clock:    p.Clock,
		issuer:   token.NewIssuer(p.Cfg.AuthJWTSecret, p.Cfg.AuthSessionTTL, p.Clock.Now),
	}
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email := accountdomain.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.accounts.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	// Accounts created by checkout have no password until the owner registers.
	if account == nil || account.PasswordHash == nil {
		return nil, domain.ErrInvalidCredentials
	}
	ok, rehash := password.Check(req.Password, *account.PasswordHash)
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	if rehash {
		s.upgradeHash(ctx, account.ID, req.Password)
	}

	identity := domain.Identity{AccountID: account.ID, Email: account.Email}
	raw, expiresAt, err := s.issuer.Issue(identity)
	if err != nil {
		return nil, err
	}

	s.log.Info("login succeeded", zap.String("account_id", account.ID.String()))
	return &domain.LoginResult{Identity: identity, Token: raw, ExpiresAt: expiresAt}, nil
}

// upgradeHash replaces a legacy hash after a successful login. Failure only
// means the upgrade is retried on the next login.
func (s *Service) upgradeHash(ctx context.Context, accountID snowflake.ID, plain string) {
	hash, err := password.Hash(plain)
	if err == nil {
		err = s.accounts.UpdatePasswordHash(ctx, s.db, accountID, hash, s.clock.Now())
	}
	if err != nil {
		s.log.Warn("password rehash failed", zap.String("account_id", accountID.String()), zap.Error(err))
		return
	}
	s.log.Info("password rehashed", zap.String("account_id", accountID.String()))
}

// Authenticate rejects tokens whose account has since been deleted.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, domain.ErrInvalidToken
	}

	identity, err := s.issuer.Parse(rawToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, s.db, identity.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrInvalidToken
	}
	identity.Email = account.Email
	return identity, nil
}
