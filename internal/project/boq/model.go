package boq

import (
	"github.com/shopspring/decimal"
)

// Category is one node of a project's strictly tree-shaped BOQ
// hierarchy. ParentID nil marks a root node.
type Category struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	ParentID  *int64 `json:"parent_id,omitempty"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

// LineKind distinguishes how a line's unit price is sourced.
type LineKind string

const (
	// KindDerived lines take their unit price from a project analysis.
	KindDerived LineKind = "derived"
	// KindCustom lines carry a user-entered unit price.
	KindCustom LineKind = "custom"
)

func (k LineKind) Valid() bool {
	return k == KindDerived || k == KindCustom
}

// Line is a leaf cost item inside a category. TotalPrice is cached and
// must equal volume × unit price after every mutation.
type Line struct {
	ID         int64           `json:"id"`
	ProjectID  int64           `json:"project_id"`
	CategoryID int64           `json:"category_id"`
	Kind       LineKind        `json:"kind"`
	AnalysisID *int64          `json:"analysis_id,omitempty"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Unit       string          `json:"unit"`
	Volume     decimal.Decimal `json:"volume"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Unpriced   bool            `json:"unpriced"`
	SortOrder  int             `json:"sort_order"`
}

// Derived reports whether the line references an analysis.
func (l Line) Derived() bool {
	return l.Kind == KindDerived
}
