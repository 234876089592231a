package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/idempotency/domain"
)

const redisKeyPrefix = "catalog:idem:"

type redisLedger struct {
	client *redis.Client
	clock  clock.Clock
}

// ProvideRedis builds the redis-backed ledger. Expiry is delegated to redis
// key TTLs, so DeleteExpired is a no-op.
func ProvideRedis(client *redis.Client, clk clock.Clock) domain.Ledger {
	return &redisLedger{client: client, clock: clk}
}

func (l *redisLedger) Lookup(ctx context.Context, key string) (*domain.Record, error) {
	raw, err := l.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var rec domain.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *redisLedger) Record(ctx context.Context, rec *domain.Record) error {
	ttl := rec.ExpiresAt.Sub(l.clock.Now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// SetNX keeps the first writer's record; a racing write is dropped.
	return l.client.SetNX(ctx, redisKeyPrefix+rec.Key, raw, ttl).Err()
}

func (l *redisLedger) DeleteExpired(ctx context.Context) (int64, error) {
	_ = ctx
	return 0, nil
}
