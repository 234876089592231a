package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Product is the write-side aggregate. Command methods are pure: they never
// touch I/O and return a copied value plus the single event the mutation
// emits. A nil event means the command was an accepted no-op.
type Product struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	SKU         string       `json:"sku" gorm:"type:text;not null;uniqueIndex:ux_products_sku"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	Description *string      `json:"description,omitempty" gorm:"type:text"`
	PriceCents  int64        `json:"price_cents" gorm:"not null"`
	Status      Status       `json:"status" gorm:"type:text;not null"`
	Version     int64        `json:"version" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }

func (p Product) Deleted() bool { return p.DeletedAt != nil }

// guard enforces the preconditions shared by every mutating command: the
// product must not be soft-deleted and the caller's expected version must
// match the current one.
func (p Product) guard(expectedVersion int64) error {
	if p.Deleted() {
		return ErrAlreadyDeleted
	}
	if expectedVersion != p.Version {
		return &ConcurrentModificationError{Expected: expectedVersion, Actual: p.Version}
	}
	return nil
}

// NewProduct creates a product at version 1 in draft status and emits the
// creation event. Field rules are re-checked here so the aggregate holds its
// own invariants even when callers skip command validation.
func NewProduct(id snowflake.ID, sku, name string, description *string, priceCents int64, now time.Time) (Product, Event, error) {
	sku = NormalizeSKU(sku)
	name = strings.TrimSpace(name)
	description = normalizeDescription(description)

	if violations := ValidateSKU(sku); len(violations) > 0 {
		return Product{}, Event{}, &InvariantViolationError{Field: violations[0].Field, Reason: violations[0].Message}
	}
	if violations := ValidateName(name); len(violations) > 0 {
		return Product{}, Event{}, &InvariantViolationError{Field: violations[0].Field, Reason: violations[0].Message}
	}
	if violations := ValidateDescription(description); len(violations) > 0 {
		return Product{}, Event{}, &InvariantViolationError{Field: violations[0].Field, Reason: violations[0].Message}
	}
	if violations := ValidatePriceCents(priceCents); len(violations) > 0 {
		return Product{}, Event{}, &InvariantViolationError{Field: violations[0].Field, Reason: violations[0].Message}
	}

	p := Product{
		ID:          id,
		SKU:         sku,
		Name:        name,
		Description: description,
		PriceCents:  priceCents,
		Status:      StatusDraft,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	evt, err := newEvent(id, EventProductCreated, 1, now, CreatedPayload{
		SKU:         sku,
		Name:        name,
		Description: description,
		PriceCents:  priceCents,
		Status:      StatusDraft,
	})
	if err != nil {
		return Product{}, Event{}, err
	}
	return p, evt, nil
}

// Update replaces name and description. When both values are identical to the
// current state the command is accepted as a no-op: no event, same version.
func (p Product) Update(name string, description *string, expectedVersion int64, now time.Time) (Product, *Event, error) {
	if err := p.guard(expectedVersion); err != nil {
		return p, nil, err
	}

	name = strings.TrimSpace(name)
	description = normalizeDescription(description)

	var violations []FieldError
	violations = append(violations, ValidateName(name)...)
	violations = append(violations, ValidateDescription(description)...)
	if len(violations) > 0 {
		return p, nil, &ValidationError{Violations: violations}
	}

	if name == p.Name && equalStringPtr(description, p.Description) {
		return p, nil, nil
	}

	next := p
	next.Name = name
	next.Description = description
	next.Version = p.Version + 1
	next.UpdatedAt = now

	evt, err := newEvent(p.ID, EventProductUpdated, next.Version, now, UpdatedPayload{
		PreviousName:        p.Name,
		Name:                name,
		PreviousDescription: p.Description,
		Description:         description,
	})
	if err != nil {
		return p, nil, err
	}
	return next, &evt, nil
}

// ChangePrice sets a new price. Changing the price of an active product by
// more than thresholdPercent in either direction requires confirm=true. Equal
// prices are accepted as a no-op.
func (p Product) ChangePrice(newPriceCents, expectedVersion int64, confirm bool, thresholdPercent float64, now time.Time) (Product, *Event, error) {
	if err := p.guard(expectedVersion); err != nil {
		return p, nil, err
	}
	if violations := ValidatePriceCents(newPriceCents); len(violations) > 0 {
		return p, nil, &ValidationError{Violations: violations}
	}
	if newPriceCents == p.PriceCents {
		return p, nil, nil
	}

	pct := PriceChangePercent(p.PriceCents, newPriceCents)
	if RequiresConfirmation(p.Status, p.PriceCents, newPriceCents, thresholdPercent) && !confirm {
		return p, nil, &PriceChangeThresholdError{
			CurrentPriceCents: p.PriceCents,
			NewPriceCents:     newPriceCents,
			ChangePercent:     pct,
			ThresholdPercent:  thresholdPercent,
		}
	}

	next := p
	next.PriceCents = newPriceCents
	next.Version = p.Version + 1
	next.UpdatedAt = now

	evt, err := newEvent(p.ID, EventProductPriceChanged, next.Version, now, PriceChangedPayload{
		PreviousPriceCents: p.PriceCents,
		PriceCents:         newPriceCents,
		ChangePercent:      pct,
	})
	if err != nil {
		return p, nil, err
	}
	return next, &evt, nil
}

// Activate moves a draft product into the catalog.
func (p Product) Activate(expectedVersion int64, now time.Time) (Product, *Event, error) {
	if err := p.guard(expectedVersion); err != nil {
		return p, nil, err
	}
	if !p.Status.CanTransitionTo(StatusActive) {
		if p.Status == StatusDiscontinued {
			return p, nil, ErrReactivationNotAllowed
		}
		return p, nil, &InvalidStateTransitionError{Current: p.Status, Target: StatusActive}
	}

	next := p
	next.Status = StatusActive
	next.Version = p.Version + 1
	next.UpdatedAt = now

	evt, err := newEvent(p.ID, EventProductActivated, next.Version, now, ActivatedPayload{
		PreviousStatus: p.Status,
		Status:         StatusActive,
	})
	if err != nil {
		return p, nil, err
	}
	return next, &evt, nil
}

// Discontinue retires the product. The state is terminal.
func (p Product) Discontinue(expectedVersion int64, reason *string, now time.Time) (Product, *Event, error) {
	if err := p.guard(expectedVersion); err != nil {
		return p, nil, err
	}
	if !p.Status.CanTransitionTo(StatusDiscontinued) {
		return p, nil, &InvalidStateTransitionError{Current: p.Status, Target: StatusDiscontinued}
	}

	next := p
	next.Status = StatusDiscontinued
	next.Version = p.Version + 1
	next.UpdatedAt = now

	evt, err := newEvent(p.ID, EventProductDiscontinued, next.Version, now, DiscontinuedPayload{
		PreviousStatus: p.Status,
		Status:         StatusDiscontinued,
		Reason:         reason,
	})
	if err != nil {
		return p, nil, err
	}
	return next, &evt, nil
}

// Delete soft-deletes the product. After this no command is accepted.
func (p Product) Delete(expectedVersion int64, deletedBy *string, now time.Time) (Product, *Event, error) {
	if err := p.guard(expectedVersion); err != nil {
		return p, nil, err
	}

	next := p
	deletedAt := now
	next.DeletedAt = &deletedAt
	next.Version = p.Version + 1
	next.UpdatedAt = now

	evt, err := newEvent(p.ID, EventProductDeleted, next.Version, now, DeletedPayload{
		DeletedBy: deletedBy,
		DeletedAt: now,
	})
	if err != nil {
		return p, nil, err
	}
	return next, &evt, nil
}

// Reconstitute folds an ordered event stream back into current state. The
// stream must be non-empty and start with the creation event.
func Reconstitute(events []Event) (Product, error) {
	if len(events) == 0 {
		return Product{}, ErrEmptyEventStream
	}
	if events[0].EventType != EventProductCreated {
		return Product{}, ErrStreamNotCreatedFirst
	}

	var created CreatedPayload
	if err := events[0].decode(&created); err != nil {
		return Product{}, err
	}

	p := Product{
		ID:          events[0].ProductID,
		SKU:         created.SKU,
		Name:        created.Name,
		Description: created.Description,
		PriceCents:  created.PriceCents,
		Status:      created.Status,
		Version:     events[0].Version,
		CreatedAt:   events[0].OccurredAt,
		UpdatedAt:   events[0].OccurredAt,
	}

	for _, evt := range events[1:] {
		next, err := p.applyEvent(evt)
		if err != nil {
			return Product{}, err
		}
		p = next
	}
	return p, nil
}

func (p Product) applyEvent(evt Event) (Product, error) {
	next := p

	switch evt.EventType {
	case EventProductUpdated:
		var payload UpdatedPayload
		if err := evt.decode(&payload); err != nil {
			return p, err
		}
		next.Name = payload.Name
		next.Description = payload.Description
	case EventProductPriceChanged:
		var payload PriceChangedPayload
		if err := evt.decode(&payload); err != nil {
			return p, err
		}
		next.PriceCents = payload.PriceCents
	case EventProductActivated:
		var payload ActivatedPayload
		if err := evt.decode(&payload); err != nil {
			return p, err
		}
		next.Status = payload.Status
	case EventProductDiscontinued:
		var payload DiscontinuedPayload
		if err := evt.decode(&payload); err != nil {
			return p, err
		}
		next.Status = payload.Status
	case EventProductDeleted:
		var payload DeletedPayload
		if err := evt.decode(&payload); err != nil {
			return p, err
		}
		deletedAt := payload.DeletedAt
		next.DeletedAt = &deletedAt
	case EventProductCreated:
		return p, ErrStreamNotCreatedFirst
	default:
		return p, fmt.Errorf("unknown event type %q", evt.EventType)
	}

	next.Version = evt.Version
	next.UpdatedAt = evt.OccurredAt
	return next, nil
}

func normalizeDescription(description *string) *string {
	if description == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*description)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
