package idempotency

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/idempotency/domain"
	"github.com/smallbiznis/catalog/internal/idempotency/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProvideLedger selects the ledger backend from configuration.
func ProvideLedger(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, clk clock.Clock, log *zap.Logger) (domain.Ledger, error) {
	switch cfg.LedgerBackend {
	case config.LedgerBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				_ = ctx
				return client.Close()
			},
		})
		log.Info("idempotency ledger backend", zap.String("backend", config.LedgerBackendRedis))
		return repository.ProvideRedis(client, clk), nil
	default:
		if err := repository.Migrate(db); err != nil {
			return nil, err
		}
		log.Info("idempotency ledger backend", zap.String("backend", config.LedgerBackendGorm))
		return repository.ProvideGorm(db, clk), nil
	}
}

var Module = fx.Module("idempotency",
	fx.Provide(ProvideLedger),
)
