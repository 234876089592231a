package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSKU(t *testing.T) {
	assert.Equal(t, "ABC-123", NormalizeSKU("  abc-123  "))
	assert.Equal(t, "LAMP-01", NormalizeSKU("lamp-01"))
}

func TestValidateSKU(t *testing.T) {
	assert.Empty(t, ValidateSKU("ABC-123"))
	assert.NotEmpty(t, ValidateSKU("AB"))
	assert.NotEmpty(t, ValidateSKU(strings.Repeat("A", 51)))
	assert.NotEmpty(t, ValidateSKU("ABC_123"))
	assert.NotEmpty(t, ValidateSKU("abc-123")) // must be normalized first
}

func TestValidateName(t *testing.T) {
	assert.Empty(t, ValidateName("Lamp"))
	assert.NotEmpty(t, ValidateName(""))
	assert.NotEmpty(t, ValidateName("   "))
	assert.NotEmpty(t, ValidateName(strings.Repeat("x", 256)))
	assert.Empty(t, ValidateName(strings.Repeat("x", 255)))
}

func TestValidateDescription(t *testing.T) {
	assert.Empty(t, ValidateDescription(nil))
	long := strings.Repeat("d", 5001)
	assert.NotEmpty(t, ValidateDescription(&long))
	ok := strings.Repeat("d", 5000)
	assert.Empty(t, ValidateDescription(&ok))
}

func TestValidateCreateReportsAllViolations(t *testing.T) {
	long := strings.Repeat("d", 5001)
	verr := ValidateCreate(CreateRequest{
		SKU:         "a",
		Name:        "",
		Description: &long,
		PriceCents:  0,
	})
	require.NotNil(t, verr)

	fields := make(map[string]bool)
	for _, v := range verr.Violations {
		fields[v.Field] = true
	}
	assert.True(t, fields["sku"])
	assert.True(t, fields["name"])
	assert.True(t, fields["description"])
	assert.True(t, fields["price_cents"])
}

func TestValidateCreateAcceptsValidInput(t *testing.T) {
	assert.Nil(t, ValidateCreate(CreateRequest{
		SKU:        "abc-123",
		Name:       "Lamp",
		PriceCents: 1999,
	}))
}
