// Package domain defines the idempotency ledger contract.
package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// Record stores the outcome of a successfully executed command keyed by the
// caller-supplied deduplication token. Within its TTL window a key replays
// the recorded result instead of re-executing the command.
type Record struct {
	Key         string         `json:"key" gorm:"primaryKey;type:text"`
	CommandType string         `json:"command_type" gorm:"type:text;not null"`
	ProductID   string         `json:"product_id" gorm:"type:text;not null"`
	Result      datatypes.JSON `json:"result" gorm:"not null"`
	ExpiresAt   time.Time      `json:"expires_at" gorm:"not null;index"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "idempotency_records" }

// Ledger is a write-once-per-key store within the TTL window. The first
// writer wins; a concurrent second write is silently superseded. An expired
// key behaves as if never written.
type Ledger interface {
	// Lookup returns the live record for key, or nil on miss or expiry.
	Lookup(ctx context.Context, key string) (*Record, error)

	// Record stores rec unless a live record already owns the key.
	Record(ctx context.Context, rec *Record) error

	// DeleteExpired purges expired records and reports how many were
	// removed. Backends with native expiry may report zero.
	DeleteExpired(ctx context.Context) (int64, error)
}
