package project

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the project lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle permits moving to next.
// Completed and cancelled are terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusActive || next == StatusCancelled
	case StatusActive:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

// Project is the aggregate root of one cost estimate. RegionID records
// which price list was snapshotted at creation; the percentages drive
// the rollup cascade.
type Project struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	RegionID    int64           `json:"region_id"`
	OverheadPct decimal.Decimal `json:"overhead_pct"`
	ProfitPct   decimal.Decimal `json:"profit_pct"`
	TaxPct      decimal.Decimal `json:"tax_pct"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SnapshotPrice is one frozen item price owned by a project. BatchID
// groups the rows copied in a single snapshot run.
type SnapshotPrice struct {
	ID        int64           `json:"id"`
	ProjectID int64           `json:"project_id"`
	ItemID    int64           `json:"item_id"`
	Amount    decimal.Decimal `json:"amount"`
	BatchID   string          `json:"batch_id"`
}
