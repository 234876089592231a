package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"draft to active", StatusDraft, StatusActive, true},
		{"draft to discontinued", StatusDraft, StatusDiscontinued, true},
		{"active to discontinued", StatusActive, StatusDiscontinued, true},
		{"active to draft", StatusActive, StatusDraft, false},
		{"discontinued to active", StatusDiscontinued, StatusActive, false},
		{"discontinued to draft", StatusDiscontinued, StatusDraft, false},
		{"draft self edge", StatusDraft, StatusDraft, false},
		{"active self edge", StatusActive, StatusActive, false},
		{"discontinued self edge", StatusDiscontinued, StatusDiscontinued, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestDiscontinuedIsTerminal(t *testing.T) {
	assert.Empty(t, StatusDiscontinued.ValidTransitions())
}

func TestValidTransitionsCopies(t *testing.T) {
	edges := StatusDraft.ValidTransitions()
	assert.Len(t, edges, 2)
	edges[0] = StatusDiscontinued
	assert.Equal(t, []Status{StatusActive, StatusDiscontinued}, StatusDraft.ValidTransitions())
}

func TestPriceChangePercent(t *testing.T) {
	assert.InDelta(t, 50.0, PriceChangePercent(1000, 1500), 1e-9)
	assert.InDelta(t, -66.6, PriceChangePercent(2999, 1000), 0.1)
	assert.Zero(t, PriceChangePercent(0, 1000))
}

func TestRequiresConfirmation(t *testing.T) {
	t.Run("draft never requires confirmation", func(t *testing.T) {
		assert.False(t, RequiresConfirmation(StatusDraft, 1000, 5000, DefaultPriceChangeThresholdPercent))
	})

	t.Run("active within threshold", func(t *testing.T) {
		// exactly 20% is allowed, only strictly greater is guarded
		assert.False(t, RequiresConfirmation(StatusActive, 1000, 1200, DefaultPriceChangeThresholdPercent))
		assert.False(t, RequiresConfirmation(StatusActive, 1000, 800, DefaultPriceChangeThresholdPercent))
	})

	t.Run("active beyond threshold", func(t *testing.T) {
		assert.True(t, RequiresConfirmation(StatusActive, 1000, 1201, DefaultPriceChangeThresholdPercent))
		assert.True(t, RequiresConfirmation(StatusActive, 1000, 799, DefaultPriceChangeThresholdPercent))
	})
}
