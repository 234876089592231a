package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/catalog/internal/clock"
	idemdomain "github.com/smallbiznis/catalog/internal/idempotency/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing required dependency")

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Ledger idemdomain.Ledger
	Config Config `optional:"true"`
}

// Scheduler runs the periodic maintenance jobs, currently the expired
// idempotency-record purge. Redis-backed ledgers expire keys natively, so its
// purge is a no-op there.
type Scheduler struct {
	log    *zap.Logger
	cfg    Config
	clock  clock.Clock
	ledger idemdomain.Ledger
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Ledger == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:    p.Log.Named("scheduler"),
		cfg:    p.Config.withDefaults(),
		clock:  p.Clock,
		ledger: p.Ledger,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.log.Warn("job timed out",
				zap.String("job", name),
				zap.Duration("timeout", s.cfg.JobTimeout),
				zap.Error(err),
			)
			return nil
		}
		return fmt.Errorf("%s: %w", name, err)
	}

	s.log.Debug("job finished",
		zap.String("job", name),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, "purge_idempotency", s.PurgeIdempotencyJob)
}

// PurgeIdempotencyJob deletes ledger records whose TTL has elapsed.
func (s *Scheduler) PurgeIdempotencyJob(ctx context.Context) error {
	purged, err := s.ledger.DeleteExpired(ctx)
	if err != nil {
		return err
	}
	if purged > 0 {
		s.log.Info("purged expired idempotency records", zap.Int64("purged", purged))
	}
	return nil
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
