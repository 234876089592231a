package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event types emitted by the product aggregate.
const (
	EventProductCreated      = "product.created"
	EventProductUpdated      = "product.updated"
	EventProductPriceChanged = "product.price_changed"
	EventProductActivated    = "product.activated"
	EventProductDiscontinued = "product.discontinued"
	EventProductDeleted      = "product.deleted"
)

// Event is the immutable envelope persisted per accepted mutation. Version is
// the aggregate version after applying the event; the unique
// (product_id, version) index is what makes concurrent appends race-safe.
type Event struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID  snowflake.ID   `json:"product_id" gorm:"not null;uniqueIndex:ux_product_events_stream,priority:1"`
	EventType  string         `json:"event_type" gorm:"type:text;not null"`
	Version    int64          `json:"version" gorm:"not null;uniqueIndex:ux_product_events_stream,priority:2"`
	Payload    datatypes.JSON `json:"payload" gorm:"not null"`
	OccurredAt time.Time      `json:"occurred_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "product_events" }

// CreatedPayload captures the full initial state of the product.
type CreatedPayload struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	PriceCents  int64   `json:"price_cents"`
	Status      Status  `json:"status"`
}

// UpdatedPayload carries both previous and new values for auditability.
type UpdatedPayload struct {
	PreviousName        string  `json:"previous_name"`
	Name                string  `json:"name"`
	PreviousDescription *string `json:"previous_description,omitempty"`
	Description         *string `json:"description,omitempty"`
}

type PriceChangedPayload struct {
	PreviousPriceCents int64   `json:"previous_price_cents"`
	PriceCents         int64   `json:"price_cents"`
	ChangePercent      float64 `json:"change_percent"`
}

type ActivatedPayload struct {
	PreviousStatus Status `json:"previous_status"`
	Status         Status `json:"status"`
}

type DiscontinuedPayload struct {
	PreviousStatus Status  `json:"previous_status"`
	Status         Status  `json:"status"`
	Reason         *string `json:"reason,omitempty"`
}

type DeletedPayload struct {
	DeletedBy *string   `json:"deleted_by,omitempty"`
	DeletedAt time.Time `json:"deleted_at"`
}

func newEvent(productID snowflake.ID, eventType string, version int64, occurredAt time.Time, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.New(),
		ProductID:  productID,
		EventType:  eventType,
		Version:    version,
		Payload:    datatypes.JSON(raw),
		OccurredAt: occurredAt,
	}, nil
}

func (e Event) decode(into any) error {
	return json.Unmarshal(e.Payload, into)
}
