package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Store-level sentinel errors. The service maps ErrVersionConflict to a
// ConcurrentModificationError carrying the actual version.
var (
	ErrVersionConflict = errors.New("version_conflict")
)

// Repository is the event store boundary. Append is the one operation that
// must be atomic with respect to concurrent writers of the same product id:
// the events table's unique (product_id, version) index is the tie-breaker.
type Repository interface {
	// Load returns the current snapshot, or nil when the product does not
	// exist. Implementations fall back to event replay when the snapshot
	// row is missing.
	Load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)

	// FindBySKU returns the product owning the given normalized sku, or nil.
	FindBySKU(ctx context.Context, db *gorm.DB, sku string) (*Product, error)

	// History returns the ordered event stream of a product.
	History(ctx context.Context, db *gorm.DB, id snowflake.ID) ([]Event, error)

	// Append persists the new snapshot and its events in one transaction,
	// conditioned on expectedVersion (0 for a brand new product). Returns
	// ErrVersionConflict when another writer won the race, or
	// ErrDuplicateSKU when a create collides on the business key.
	Append(ctx context.Context, db *gorm.DB, product *Product, events []Event, expectedVersion int64) error
}
