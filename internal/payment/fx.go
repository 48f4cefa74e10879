package payment

import (
	"github.com/smallbiznis/storefront/internal/payment/adapters/stripe"
	stripegateway "github.com/smallbiznis/storefront/internal/payment/gateway/stripe"
	"github.com/smallbiznis/storefront/internal/payment/repository"
	"github.com/smallbiznis/storefront/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(stripe.Provide),
	fx.Provide(stripegateway.Provide),
	fx.Provide(webhook.NewService),
)
