package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound               = errors.New("product_not_found")
	ErrAlreadyDeleted         = errors.New("product_already_deleted")
	ErrDuplicateSKU           = errors.New("duplicate_sku")
	ErrReactivationNotAllowed = errors.New("reactivation_not_allowed")
	ErrInvalidID              = errors.New("invalid_id")
	ErrEmptyEventStream       = errors.New("empty_event_stream")
	ErrStreamNotCreatedFirst  = errors.New("event_stream_must_start_with_created")
)

// FieldError describes a single field-level rule violation.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError aggregates every field violation found in a command, so the
// caller sees all of them at once rather than one per round trip.
type ValidationError struct {
	Violations []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "validation_failed"
	}
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	return fmt.Sprintf("validation_failed: %s", strings.Join(fields, ", "))
}

// InvariantViolationError reports an aggregate-level rule broken at creation.
type InvariantViolationError struct {
	Field  string
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant_violation: %s %s", e.Field, e.Reason)
}

// InvalidStateTransitionError reports an illegal status edge.
type InvalidStateTransitionError struct {
	Current Status
	Target  Status
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid_state_transition: %s -> %s", e.Current, e.Target)
}

// PriceChangeThresholdError reports an unconfirmed large price change on an
// active product.
type PriceChangeThresholdError struct {
	CurrentPriceCents int64
	NewPriceCents     int64
	ChangePercent     float64
	ThresholdPercent  float64
}

func (e *PriceChangeThresholdError) Error() string {
	return fmt.Sprintf("price_change_threshold_exceeded: %.2f%% exceeds %.2f%%",
		e.ChangePercent, e.ThresholdPercent)
}

// ConcurrentModificationError reports a version mismatch, either against the
// expected version supplied by the caller or detected at persist time.
type ConcurrentModificationError struct {
	Expected int64
	Actual   int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent_modification: expected version %d, actual %d",
		e.Expected, e.Actual)
}
