package ahsp

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rencana-app/rencana/internal/masterdata/items"
	"github.com/rencana-app/rencana/internal/money"
)

// PriceLookup resolves an item price within some pricing context
// (region list or project snapshot). The second return is false when no
// effective price exists for the item.
type PriceLookup func(itemID int64) (decimal.Decimal, bool)

// LookupFromMap adapts a precomputed item→amount map to a PriceLookup.
func LookupFromMap(amounts map[int64]decimal.Decimal) PriceLookup {
	return func(itemID int64) (decimal.Decimal, bool) {
		amount, ok := amounts[itemID]
		return amount, ok
	}
}

// ResolvedEntry is one composition row with its priced contribution.
// LineTotal is kept at full precision so repeated recomputation cannot
// drift; rounding happens when a stored or displayed amount is produced.
type ResolvedEntry struct {
	EntryID     int64              `json:"entry_id"`
	ItemID      int64              `json:"item_id"`
	Category    items.ItemCategory `json:"category"`
	Coefficient decimal.Decimal    `json:"coefficient"`
	Price       decimal.Decimal    `json:"price"`
	LineTotal   decimal.Decimal    `json:"line_total"`
	Unpriced    bool               `json:"unpriced"`
}

// Resolution is the priced outcome of an analysis. Group totals carry
// full precision; UnitPrice is the sum of the three groups rounded to
// the stored money precision.
type Resolution struct {
	AnalysisID     int64           `json:"analysis_id"`
	MaterialTotal  decimal.Decimal `json:"material_total"`
	LaborTotal     decimal.Decimal `json:"labor_total"`
	EquipmentTotal decimal.Decimal `json:"equipment_total"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Breakdown      []ResolvedEntry `json:"breakdown"`
	UnpricedCount  int             `json:"unpriced_count"`
}

// Incomplete reports whether any entry lacked a price.
func (r Resolution) Incomplete() bool {
	return r.UnpricedCount > 0
}

// AnalysisLoader fetches an analysis together with its composition.
type AnalysisLoader interface {
	AnalysisWithEntries(ctx context.Context, id int64) (Analysis, error)
}

// Resolver computes unit prices from compositions. It fails only when
// the analysis itself is unknown; missing item prices degrade the
// affected entries to zero with an unpriced flag, since price lists are
// routinely filled in after compositions are drafted.
type Resolver struct {
	loader AnalysisLoader
}

func NewResolver(loader AnalysisLoader) *Resolver {
	return &Resolver{loader: loader}
}

func (r *Resolver) Resolve(ctx context.Context, analysisID int64, lookup PriceLookup) (Resolution, error) {
	analysis, err := r.loader.AnalysisWithEntries(ctx, analysisID)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve analysis %d: %w", analysisID, err)
	}
	return ResolveEntries(analysis.ID, analysis.Entries, lookup), nil
}

// ResolveEntries prices a composition against a lookup. Pure: the
// result depends only on the entries and the lookup, and is independent
// of entry order.
func ResolveEntries(analysisID int64, entries []CompositionEntry, lookup PriceLookup) Resolution {
	res := Resolution{
		AnalysisID: analysisID,
		Breakdown:  make([]ResolvedEntry, 0, len(entries)),
	}
	for _, entry := range entries {
		resolved := ResolvedEntry{
			EntryID:     entry.ID,
			ItemID:      entry.ItemID,
			Category:    entry.Category,
			Coefficient: entry.Coefficient,
		}
		price, ok := lookup(entry.ItemID)
		if !ok {
			resolved.Unpriced = true
			res.UnpricedCount++
		} else {
			resolved.Price = price
			resolved.LineTotal = entry.Coefficient.Mul(price)
		}
		res.Breakdown = append(res.Breakdown, resolved)

		switch entry.Category {
		case items.CategoryMaterial:
			res.MaterialTotal = res.MaterialTotal.Add(resolved.LineTotal)
		case items.CategoryLabor:
			res.LaborTotal = res.LaborTotal.Add(resolved.LineTotal)
		case items.CategoryEquipment:
			res.EquipmentTotal = res.EquipmentTotal.Add(resolved.LineTotal)
		}
	}
	res.UnitPrice = money.Round(res.MaterialTotal.Add(res.LaborTotal).Add(res.EquipmentTotal))
	return res
}
