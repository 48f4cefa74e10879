package ratelimit

import (
	accountdomain "github.com/smallbiznis/storefront/internal/account/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewClient),
	fx.Provide(NewAuthLimiter),
	fx.Provide(NewCooldown),
	fx.Provide(func(c *Cooldown) accountdomain.Cooldown {
		if c == nil {
			return nil
		}
		return c
	}),
)
