package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/idempotency/domain"
	pkgdb "github.com/smallbiznis/catalog/pkg/db"
	"gorm.io/gorm"
)

type gormLedger struct {
	db    *gorm.DB
	clock clock.Clock
}

// ProvideGorm builds the database-backed ledger.
func ProvideGorm(db *gorm.DB, clk clock.Clock) domain.Ledger {
	return &gormLedger{db: db, clock: clk}
}

// Migrate creates the ledger table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Record{})
}

func (l *gormLedger) Lookup(ctx context.Context, key string) (*domain.Record, error) {
	var rec domain.Record
	err := l.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !rec.ExpiresAt.After(l.clock.Now()) {
		return nil, nil
	}
	return &rec, nil
}

func (l *gormLedger) Record(ctx context.Context, rec *domain.Record) error {
	err := l.db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return nil
	}
	if !pkgdb.IsDuplicateKeyErr(err) {
		return err
	}

	// First writer wins while the existing record is live. An expired row
	// may be reclaimed for a new logical request.
	res := l.db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("key = ? AND expires_at <= ?", rec.Key, l.clock.Now()).
		Updates(map[string]any{
			"command_type": rec.CommandType,
			"product_id":   rec.ProductID,
			"result":       rec.Result,
			"expires_at":   rec.ExpiresAt,
			"created_at":   rec.CreatedAt,
		})
	return res.Error
}

func (l *gormLedger) DeleteExpired(ctx context.Context) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("expires_at <= ?", l.clock.Now()).
		Delete(&domain.Record{})
	return res.RowsAffected, res.Error
}
