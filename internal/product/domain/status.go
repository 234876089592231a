package domain

// Status is the lifecycle state of a product.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusActive       Status = "active"
	StatusDiscontinued Status = "discontinued"
)

// legalTransitions is the full transition table. Discontinued has no outgoing
// edges; a discontinued product can never return to the catalog.
var legalTransitions = map[Status][]Status{
	StatusDraft:        {StatusActive, StatusDiscontinued},
	StatusActive:       {StatusDiscontinued},
	StatusDiscontinued: {},
}

func (s Status) Valid() bool {
	_, ok := legalTransitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> target is legal. Self-edges
// are never legal.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range legalTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// ValidTransitions returns the statuses reachable from s.
func (s Status) ValidTransitions() []Status {
	edges := legalTransitions[s]
	out := make([]Status, len(edges))
	copy(out, edges)
	return out
}

// DefaultPriceChangeThresholdPercent bounds unconfirmed price moves on active
// products.
const DefaultPriceChangeThresholdPercent = 20.0

// PriceChangePercent returns the relative change from oldCents to newCents.
func PriceChangePercent(oldCents, newCents int64) float64 {
	if oldCents == 0 {
		return 0
	}
	return float64(newCents-oldCents) / float64(oldCents) * 100
}

// RequiresConfirmation reports whether moving the price from oldCents to
// newCents while in status s needs an explicit confirmation flag. Only active
// products are guarded; drafts can be repriced freely.
func RequiresConfirmation(s Status, oldCents, newCents int64, thresholdPercent float64) bool {
	if s != StatusActive {
		return false
	}
	pct := PriceChangePercent(oldCents, newCents)
	if pct < 0 {
		pct = -pct
	}
	return pct > thresholdPercent
}
