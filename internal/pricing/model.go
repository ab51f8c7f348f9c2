package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemPrice is a priced instance of a base item within a region.
// Projects never read these rows directly; they read the snapshot
// copied at project creation.
type ItemPrice struct {
	ID            int64           `json:"id"`
	ItemID        int64           `json:"item_id"`
	RegionID      int64           `json:"region_id"`
	Amount        decimal.Decimal `json:"amount"`
	EffectiveFrom *time.Time      `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time      `json:"effective_to,omitempty"`
	Active        bool            `json:"active"`
}

// EffectiveAt reports whether the price row applies at the given instant.
func (p ItemPrice) EffectiveAt(at time.Time) bool {
	if !p.Active {
		return false
	}
	if p.EffectiveFrom != nil && at.Before(*p.EffectiveFrom) {
		return false
	}
	if p.EffectiveTo != nil && at.After(*p.EffectiveTo) {
		return false
	}
	return true
}

// PickEffective selects the single price to use when several rows are
// effective for the same item: latest effective_from wins, ties broken
// by highest id. Returns false when no row applies.
func PickEffective(prices []ItemPrice, at time.Time) (ItemPrice, bool) {
	var best ItemPrice
	found := false
	for _, p := range prices {
		if !p.EffectiveAt(at) {
			continue
		}
		if !found {
			best = p
			found = true
			continue
		}
		if laterThan(p, best) {
			best = p
		}
	}
	return best, found
}

func laterThan(a, b ItemPrice) bool {
	af, bf := effectiveFromOrZero(a), effectiveFromOrZero(b)
	if af.Equal(bf) {
		return a.ID > b.ID
	}
	return af.After(bf)
}

func effectiveFromOrZero(p ItemPrice) time.Time {
	if p.EffectiveFrom == nil {
		return time.Time{}
	}
	return *p.EffectiveFrom
}
