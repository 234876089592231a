package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Field length bounds.
const (
	SKUMinLen         = 3
	SKUMaxLen         = 50
	NameMaxLen        = 255
	DescriptionMaxLen = 5000
)

var skuPattern = regexp.MustCompile(`^[A-Z0-9-]+$`)

// NormalizeSKU trims and upper-cases a raw sku so the business key compares
// consistently regardless of caller formatting.
func NormalizeSKU(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidateSKU checks a normalized sku. Returns every violated rule.
func ValidateSKU(sku string) []FieldError {
	var out []FieldError
	if len(sku) < SKUMinLen || len(sku) > SKUMaxLen {
		out = append(out, FieldError{
			Field:   "sku",
			Code:    "length",
			Message: fmt.Sprintf("sku must be between %d and %d characters", SKUMinLen, SKUMaxLen),
		})
	}
	if sku == "" || !skuPattern.MatchString(sku) {
		out = append(out, FieldError{
			Field:   "sku",
			Code:    "format",
			Message: "sku must contain only letters, digits and hyphens",
		})
	}
	return out
}

func ValidateName(name string) []FieldError {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) == 0 || len(trimmed) > NameMaxLen {
		return []FieldError{{
			Field:   "name",
			Code:    "length",
			Message: fmt.Sprintf("name must be between 1 and %d characters", NameMaxLen),
		}}
	}
	return nil
}

func ValidateDescription(description *string) []FieldError {
	if description == nil {
		return nil
	}
	if len(*description) > DescriptionMaxLen {
		return []FieldError{{
			Field:   "description",
			Code:    "length",
			Message: fmt.Sprintf("description must be at most %d characters", DescriptionMaxLen),
		}}
	}
	return nil
}

func ValidatePriceCents(priceCents int64) []FieldError {
	if priceCents <= 0 {
		return []FieldError{{
			Field:   "price_cents",
			Code:    "positive",
			Message: "price must be strictly positive",
		}}
	}
	return nil
}

// ValidateCreate runs every field rule for a creation command and reports all
// violations at once.
func ValidateCreate(req CreateRequest) *ValidationError {
	var violations []FieldError
	violations = append(violations, ValidateSKU(NormalizeSKU(req.SKU))...)
	violations = append(violations, ValidateName(req.Name)...)
	violations = append(violations, ValidateDescription(req.Description)...)
	violations = append(violations, ValidatePriceCents(req.PriceCents)...)
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func ValidateUpdate(req UpdateRequest) *ValidationError {
	var violations []FieldError
	violations = append(violations, ValidateName(req.Name)...)
	violations = append(violations, ValidateDescription(req.Description)...)
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func ValidateChangePrice(req ChangePriceRequest) *ValidationError {
	violations := ValidatePriceCents(req.NewPriceCents)
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
