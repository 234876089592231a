package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalog/internal/product/domain"
	pkgdb "github.com/smallbiznis/catalog/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Migrate creates the snapshot and event tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Product{}, &domain.Event{})
}

func (r *repo) Load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Where("id = ?", id.Int64()).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Snapshot missing. Rebuild from the event stream so a half-written
	// snapshot never hides a live aggregate.
	events, err := r.History(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	rebuilt, err := domain.Reconstitute(events)
	if err != nil {
		return nil, err
	}
	return &rebuilt, nil
}

func (r *repo) FindBySKU(ctx context.Context, db *gorm.DB, sku string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Where("sku = ?", sku).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *repo) History(ctx context.Context, db *gorm.DB, id snowflake.ID) ([]domain.Event, error) {
	var events []domain.Event
	err := db.WithContext(ctx).
		Where("product_id = ?", id.Int64()).
		Order("version ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) Append(ctx context.Context, db *gorm.DB, product *domain.Product, events []domain.Event, expectedVersion int64) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range events {
			if err := tx.Create(&events[i]).Error; err != nil {
				// The unique (product_id, version) index is the
				// optimistic-concurrency check: a concurrent writer
				// already claimed this version.
				if pkgdb.IsDuplicateKeyErr(err) {
					return domain.ErrVersionConflict
				}
				return err
			}
		}

		if expectedVersion == 0 {
			if err := tx.Create(product).Error; err != nil {
				if pkgdb.IsDuplicateKeyErr(err) {
					return domain.ErrDuplicateSKU
				}
				return err
			}
			return nil
		}

		res := tx.Exec(
			`UPDATE products
			 SET name = ?, description = ?, price_cents = ?, status = ?, version = ?, updated_at = ?, deleted_at = ?
			 WHERE id = ? AND version = ?`,
			product.Name,
			product.Description,
			product.PriceCents,
			string(product.Status),
			product.Version,
			product.UpdatedAt,
			product.DeletedAt,
			product.ID.Int64(),
			expectedVersion,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrVersionConflict
		}
		return nil
	})
}
