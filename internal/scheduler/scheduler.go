// Package scheduler runs periodic housekeeping for the storefront database.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/storefront/internal/account/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const JobVerificationTokenSweep = "verification_token_sweep"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Accounts accountdomain.Repository
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   Config `optional:"true"`
}

type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	accounts accountdomain.Repository
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Accounts == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		accounts: p.Accounts,
	}, nil
}

// runJob bounds fn by timeout. A deadline is logged and swallowed so one slow
// job does not fail the whole pass.
func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name)
	err := fn(ctx)
	if err != nil {
		run.IncError()
	}
	s.logJobFinish(run, err)

	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return nil
	}
	return err
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, JobVerificationTokenSweep, s.cfg.JobTimeout, s.SweepVerificationTokensJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepVerificationTokensJob removes verification tokens past their expiry.
// Confirmation already rejects them; this only keeps the table small.
func (s *Scheduler) SweepVerificationTokensJob(ctx context.Context) error {
	deleted, err := s.accounts.DeleteExpiredTokens(ctx, s.db, s.clock.Now())
	if err != nil {
		return err
	}
	jobRunFromContext(ctx).AddProcessed(deleted)
	return nil
}
