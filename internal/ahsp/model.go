package ahsp

import (
	"github.com/shopspring/decimal"

	"github.com/rencana-app/rencana/internal/masterdata/items"
)

// Analysis is a master unit-price analysis: a named unit of work whose
// unit price derives from a composition of base items.
type Analysis struct {
	ID       int64              `json:"id"`
	Code     string             `json:"code"`
	Name     string             `json:"name"`
	UnitID   int64              `json:"unit_id"`
	UnitCode string             `json:"unit_code,omitempty"`
	Entries  []CompositionEntry `json:"entries,omitempty"`
}

// CompositionEntry is one row of an analysis: the quantity of a base
// item consumed per unit of output.
type CompositionEntry struct {
	ID          int64              `json:"id"`
	AnalysisID  int64              `json:"analysis_id"`
	ItemID      int64              `json:"item_id"`
	Category    items.ItemCategory `json:"category"`
	Coefficient decimal.Decimal    `json:"coefficient"`
}
