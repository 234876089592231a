package domain

import (
	"context"
	"time"
)

// Service is the command entry point consumed by the transport layer. Every
// command either succeeds with the product id and its new version, or returns
// one of the typed errors from this package.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*CommandResult, error)
	Update(ctx context.Context, req UpdateRequest) (*CommandResult, error)
	ChangePrice(ctx context.Context, req ChangePriceRequest) (*CommandResult, error)
	Activate(ctx context.Context, req ActivateRequest) (*CommandResult, error)
	Discontinue(ctx context.Context, req DiscontinueRequest) (*CommandResult, error)
	Delete(ctx context.Context, req DeleteRequest) (*CommandResult, error)

	Get(ctx context.Context, id string) (*Response, error)
	History(ctx context.Context, id string) ([]Event, error)
}

type CreateRequest struct {
	SKU            string  `json:"sku"`
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	PriceCents     int64   `json:"price_cents"`
	IdempotencyKey string  `json:"idempotency_key"`
}

type UpdateRequest struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     *string `json:"description"`
	ExpectedVersion int64   `json:"expected_version"`
	IdempotencyKey  string  `json:"idempotency_key"`
}

type ChangePriceRequest struct {
	ID                 string `json:"id"`
	NewPriceCents      int64  `json:"new_price_cents"`
	ExpectedVersion    int64  `json:"expected_version"`
	ConfirmLargeChange bool   `json:"confirm_large_change"`
	IdempotencyKey     string `json:"idempotency_key"`
}

type ActivateRequest struct {
	ID              string `json:"id"`
	ExpectedVersion int64  `json:"expected_version"`
	IdempotencyKey  string `json:"idempotency_key"`
}

type DiscontinueRequest struct {
	ID              string  `json:"id"`
	Reason          *string `json:"reason"`
	ExpectedVersion int64   `json:"expected_version"`
	IdempotencyKey  string  `json:"idempotency_key"`
}

type DeleteRequest struct {
	ID              string  `json:"id"`
	DeletedBy       *string `json:"deleted_by"`
	ExpectedVersion int64   `json:"expected_version"`
	IdempotencyKey  string  `json:"idempotency_key"`
}

// CommandResult is the success payload of every command. Replayed marks
// results served from the idempotency ledger.
type CommandResult struct {
	ProductID string `json:"product_id"`
	Version   int64  `json:"version"`
	Replayed  bool   `json:"replayed,omitempty"`
}

// Response is the denormalized view of a product snapshot.
type Response struct {
	ID          string     `json:"id"`
	SKU         string     `json:"sku"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	PriceCents  int64      `json:"price_cents"`
	Status      Status     `json:"status"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}
