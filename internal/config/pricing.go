package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Pricing maps a product tier tag (DIY, FULL, ADDON) to a provider price id.
type Pricing struct {
	Prices map[string]string `mapstructure:"prices"`
}

// PricingHolder serves the current price/tier mapping and swaps it on file changes.
type PricingHolder struct {
	current atomic.Value // holds Pricing
}

// NewStaticPricing builds a holder that never reloads.
func NewStaticPricing(prices map[string]string) *PricingHolder {
	holder := &PricingHolder{}
	holder.current.Store(normalizePricing(Pricing{Prices: prices}))
	return holder
}

// NewPricingHolder seeds the mapping from STRIPE_PRICE_ID_* and overlays the
// optional pricing file, which is watched for changes.
func NewPricingHolder(cfg Config, log *zap.Logger) (*PricingHolder, error) {
	base := Pricing{Prices: map[string]string{}}
	for tier, price := range cfg.Stripe.PriceIDs {
		base.Prices[tier] = price
	}

	holder := &PricingHolder{}
	holder.current.Store(normalizePricing(base))

	path := strings.TrimSpace(cfg.Stripe.PricingPath)
	if path == "" {
		return holder, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read pricing config: %w", err)
	}

	loaded, err := readPricing(v, base)
	if err != nil {
		return nil, err
	}
	holder.current.Store(loaded)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := readPricing(v, base)
		if err != nil {
			log.Warn("pricing config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("pricing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func readPricing(v *viper.Viper, base Pricing) (Pricing, error) {
	var file Pricing
	if err := v.UnmarshalKey("pricing", &file); err != nil {
		return Pricing{}, err
	}

	merged := Pricing{Prices: map[string]string{}}
	for tier, price := range base.Prices {
		merged.Prices[tier] = price
	}
	for tier, price := range file.Prices {
		merged.Prices[tier] = price
	}
	merged = normalizePricing(merged)
	if err := validatePricing(merged); err != nil {
		return Pricing{}, err
	}
	return merged, nil
}

func normalizePricing(p Pricing) Pricing {
	out := Pricing{Prices: make(map[string]string, len(p.Prices))}
	for tier, price := range p.Prices {
		tier = strings.ToUpper(strings.TrimSpace(tier))
		price = strings.TrimSpace(price)
		if tier == "" || price == "" {
			continue
		}
		out.Prices[tier] = price
	}
	return out
}

func validatePricing(p Pricing) error {
	seen := make(map[string]string, len(p.Prices))
	for tier, price := range p.Prices {
		switch tier {
		case TierDIY, TierFULL, TierADDON:
		default:
			return fmt.Errorf("pricing.prices: unknown tier %q", tier)
		}
		if other, ok := seen[price]; ok {
			return fmt.Errorf("pricing.prices: price %s mapped to both %s and %s", price, other, tier)
		}
		seen[price] = tier
	}
	if len(p.Prices) == 0 {
		return errors.New("pricing.prices cannot be empty")
	}
	return nil
}

func (h *PricingHolder) Get() Pricing {
	return h.current.Load().(Pricing)
}

// PriceFor returns the price id configured for a tier tag.
func (h *PricingHolder) PriceFor(tier string) (string, bool) {
	price, ok := h.Get().Prices[strings.ToUpper(strings.TrimSpace(tier))]
	return price, ok
}

// TierForPrice is the reverse lookup used when reconciling subscriptions.
func (h *PricingHolder) TierForPrice(priceID string) (string, bool) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return "", false
	}
	for tier, price := range h.Get().Prices {
		if price == priceID {
			return tier, true
		}
	}
	return "", false
}
