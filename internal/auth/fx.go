package auth

import (
	"github.com/smallbiznis/storefront/internal/auth/domain"
	"github.com/smallbiznis/storefront/internal/auth/service"
	"github.com/smallbiznis/storefront/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) domain.Authenticator { return svc }),
	session.Module,
)
