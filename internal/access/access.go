// Package access derives the tier view of what an account may use from
// completed purchases and live subscriptions. Every call reads current state.
package access

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	historydomain "github.com/smallbiznis/storefront/internal/history/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserAccess holds the raw tier flags. HasDIY is set only by a DIY purchase
// or subscription, never implied by FULL.
type UserAccess struct {
	HasDIY              bool     `json:"hasDIY"`
	HasFULL             bool     `json:"hasFULL"`
	HasADDON            bool     `json:"hasADDON"`
	ActivePurchases     []string `json:"activePurchases"`
	ActiveSubscriptions []string `json:"activeSubscriptions"`
}

// Satisfies reports whether the held tiers cover tier's feature set.
// FULL satisfies a DIY check.
func (a UserAccess) Satisfies(tier string) bool {
	switch tier {
	case config.TierDIY:
		return a.HasDIY || a.HasFULL
	case config.TierFULL:
		return a.HasFULL
	case config.TierADDON:
		return a.HasADDON
	default:
		return false
	}
}

// HighestTier returns FULL, ADDON or DIY in that precedence, or "".
func (a UserAccess) HighestTier() string {
	switch {
	case a.HasFULL:
		return config.TierFULL
	case a.HasADDON:
		return config.TierADDON
	case a.HasDIY:
		return config.TierDIY
	default:
		return ""
	}
}

func (a UserAccess) HasPaidAccess() bool {
	return a.HasDIY || a.HasFULL || a.HasADDON
}

type Evaluator interface {
	Evaluate(ctx context.Context, accountID snowflake.ID) (*UserAccess, error)
	HasTier(ctx context.Context, accountID snowflake.ID, tier string) (bool, error)
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	History historydomain.Repository
	Clock   clock.Clock
}

type TierEvaluator struct {
	db      *gorm.DB
	log     *zap.Logger
	history historydomain.Repository
	clock   clock.Clock
}

func New(p Params) Evaluator {
	return &TierEvaluator{
		db:      p.DB,
		log:     p.Log.Named("access.evaluator"),
		history: p.History,
		clock:   p.Clock,
	}
}

func (e *TierEvaluator) Evaluate(ctx context.Context, accountID snowflake.ID) (*UserAccess, error) {
	purchases, err := e.history.ListCompletedPurchases(ctx, e.db, accountID)
	if err != nil {
		return nil, err
	}
	subs, err := e.history.ListActiveSubscriptions(ctx, e.db, accountID, e.clock.Now())
	if err != nil {
		return nil, err
	}

	result := &UserAccess{
		ActivePurchases:     make([]string, 0, len(purchases)),
		ActiveSubscriptions: make([]string, 0, len(subs)),
	}
	tiers := make(map[string]struct{})
	for _, p := range purchases {
		tiers[p.ProductType] = struct{}{}
		result.ActivePurchases = append(result.ActivePurchases, p.ID.String())
	}
	for _, s := range subs {
		tiers[s.ProductType] = struct{}{}
		result.ActiveSubscriptions = append(result.ActiveSubscriptions, s.ID.String())
	}

	_, result.HasDIY = tiers[config.TierDIY]
	_, result.HasFULL = tiers[config.TierFULL]
	_, result.HasADDON = tiers[config.TierADDON]
	return result, nil
}

func (e *TierEvaluator) HasTier(ctx context.Context, accountID snowflake.ID, tier string) (bool, error) {
	result, err := e.Evaluate(ctx, accountID)
	if err != nil {
		return false, err
	}
	return result.Satisfies(tier), nil
}

var Module = fx.Module("access.evaluator",
	fx.Provide(New),
)
