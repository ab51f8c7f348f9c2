package rollup

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rencana-app/rencana/internal/money"
	"github.com/rencana-app/rencana/internal/shared"
)

// CategoryNode is one category in the id-indexed arena the engine
// walks. Parent pointers are validated rather than trusted: a cycle or
// a dangling parent fails the rollup instead of hanging it.
type CategoryNode struct {
	ID       int64
	ParentID *int64
}

// LineTotal is the evaluated amount of one BOQ line.
type LineTotal struct {
	CategoryID int64
	Total      decimal.Decimal
	Unpriced   bool
}

// Input is everything a rollup needs; the caller loads it in one read.
type Input struct {
	Categories  []CategoryNode
	Lines       []LineTotal
	OverheadPct decimal.Decimal
	ProfitPct   decimal.Decimal
	TaxPct      decimal.Decimal
}

// Result carries the per-category subtotals and the percentage cascade.
// Incomplete mirrors the unpriced flags: totals are still produced but
// the caller should surface a recalculation warning.
type Result struct {
	CategoryTotals map[int64]decimal.Decimal `json:"category_totals"`
	BoqTotal       decimal.Decimal           `json:"boq_total"`
	OverheadAmount decimal.Decimal           `json:"overhead_amount"`
	ProfitAmount   decimal.Decimal           `json:"profit_amount"`
	Subtotal       decimal.Decimal           `json:"subtotal"`
	TaxAmount      decimal.Decimal           `json:"tax_amount"`
	GrandTotal     decimal.Decimal           `json:"grand_total"`
	Incomplete     bool                      `json:"incomplete"`
}

// Compute rolls the category tree up into a grand total. Subtotals are
// post-order sums of own lines plus child subtotals; the cascade then
// runs in the fixed business order: overhead on the BOQ total, profit
// on BOQ plus overhead, tax on the resulting subtotal.
func Compute(in Input) (Result, error) {
	arena := make(map[int64]CategoryNode, len(in.Categories))
	children := make(map[int64][]int64, len(in.Categories))
	var roots []int64
	for _, c := range in.Categories {
		arena[c.ID] = c
	}
	for _, c := range in.Categories {
		if c.ParentID == nil {
			roots = append(roots, c.ID)
			continue
		}
		if _, ok := arena[*c.ParentID]; !ok {
			return Result{}, fmt.Errorf("%w: category %d has unknown parent %d", shared.ErrInvalidTree, c.ID, *c.ParentID)
		}
		children[*c.ParentID] = append(children[*c.ParentID], c.ID)
	}

	own := make(map[int64]decimal.Decimal, len(arena))
	incomplete := false
	for _, l := range in.Lines {
		if _, ok := arena[l.CategoryID]; !ok {
			return Result{}, fmt.Errorf("%w: line references unknown category %d", shared.ErrInvalidTree, l.CategoryID)
		}
		own[l.CategoryID] = own[l.CategoryID].Add(l.Total)
		if l.Unpriced {
			incomplete = true
		}
	}

	totals := make(map[int64]decimal.Decimal, len(arena))
	visited := make(map[int64]bool, len(arena))
	boqTotal := decimal.Zero
	for _, root := range roots {
		sum, err := subtotal(root, children, own, totals, visited, map[int64]bool{})
		if err != nil {
			return Result{}, err
		}
		boqTotal = boqTotal.Add(sum)
	}
	// Every category must have been reached from a root; leftovers mean
	// a parent loop detached from the tree.
	if len(visited) != len(arena) {
		return Result{}, fmt.Errorf("%w: category hierarchy contains a cycle", shared.ErrInvalidTree)
	}

	res := Result{
		CategoryTotals: totals,
		BoqTotal:       money.Round(boqTotal),
		Incomplete:     incomplete,
	}
	res.OverheadAmount = money.Round(money.Percent(res.BoqTotal, in.OverheadPct))
	profitBase := res.BoqTotal.Add(res.OverheadAmount)
	res.ProfitAmount = money.Round(money.Percent(profitBase, in.ProfitPct))
	res.Subtotal = res.BoqTotal.Add(res.OverheadAmount).Add(res.ProfitAmount)
	res.TaxAmount = money.Round(money.Percent(res.Subtotal, in.TaxPct))
	res.GrandTotal = res.Subtotal.Add(res.TaxAmount)
	return res, nil
}

func subtotal(id int64, children map[int64][]int64, own, totals map[int64]decimal.Decimal, visited, path map[int64]bool) (decimal.Decimal, error) {
	if path[id] {
		return decimal.Zero, fmt.Errorf("%w: category %d participates in a cycle", shared.ErrInvalidTree, id)
	}
	if visited[id] {
		return decimal.Zero, fmt.Errorf("%w: category %d has multiple parents", shared.ErrInvalidTree, id)
	}
	path[id] = true
	visited[id] = true

	sum := own[id]
	for _, child := range children[id] {
		childSum, err := subtotal(child, children, own, totals, visited, path)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(childSum)
	}
	delete(path, id)
	totals[id] = money.Round(sum)
	return sum, nil
}
