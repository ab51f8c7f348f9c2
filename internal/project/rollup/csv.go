package rollup

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rencana-app/rencana/internal/project/boq"
)

var idrPrinter = message.NewPrinter(language.Indonesian)

// FormatIDR renders an amount the way Indonesian estimates print money:
// dot-grouped rupiah with a comma before the two cent digits.
func FormatIDR(d decimal.Decimal) string {
	cents := d.Round(2).Shift(2).IntPart()
	neg := cents < 0
	if neg {
		cents = -cents
	}
	out := idrPrinter.Sprintf("%d", cents/100) + "," + pad2(cents%100)
	if neg {
		out = "-" + out
	}
	return "Rp " + out
}

func pad2(v int64) string {
	if v < 10 {
		return "0" + strconv.FormatInt(v, 10)
	}
	return strconv.FormatInt(v, 10)
}

// ExportCSV writes the full estimate: categories depth first with their
// subtotals, lines beneath their category, then the cascade summary.
func (s *Service) ExportCSV(ctx context.Context, projectID int64, w io.Writer) error {
	res, err := s.Rollup(ctx, projectID)
	if err != nil {
		return err
	}
	cats, err := s.boq.ListCategories(ctx, projectID)
	if err != nil {
		return err
	}
	lines, err := s.boq.ListLines(ctx, projectID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"type", "id", "name", "unit", "volume", "unit_price", "total", "formatted"}); err != nil {
		return err
	}

	byParent := map[int64][]boq.Category{}
	var roots []boq.Category
	for _, c := range cats {
		if c.ParentID == nil {
			roots = append(roots, c)
		} else {
			byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
		}
	}
	byCategory := map[int64][]boq.Line{}
	for _, l := range lines {
		byCategory[l.CategoryID] = append(byCategory[l.CategoryID], l)
	}
	sortCats(roots)
	for k := range byParent {
		sortCats(byParent[k])
	}

	var walk func(c boq.Category) error
	walk = func(c boq.Category) error {
		total := res.CategoryTotals[c.ID]
		if err := cw.Write([]string{"category", strconv.FormatInt(c.ID, 10), c.Name, "", "", "", total.StringFixed(2), FormatIDR(total)}); err != nil {
			return err
		}
		for _, l := range byCategory[c.ID] {
			row := []string{"line", strconv.FormatInt(l.ID, 10), l.Name, l.Unit,
				l.Volume.StringFixed(4), l.UnitPrice.StringFixed(2), l.TotalPrice.StringFixed(2), FormatIDR(l.TotalPrice)}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		for _, child := range byParent[c.ID] {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := walk(root); err != nil {
			return err
		}
	}

	summary := []struct {
		name   string
		amount decimal.Decimal
	}{
		{"boq_total", res.BoqTotal},
		{"overhead", res.OverheadAmount},
		{"profit", res.ProfitAmount},
		{"subtotal", res.Subtotal},
		{"tax", res.TaxAmount},
		{"grand_total", res.GrandTotal},
	}
	for _, row := range summary {
		if err := cw.Write([]string{"summary", "", row.name, "", "", "", row.amount.StringFixed(2), FormatIDR(row.amount)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func sortCats(cats []boq.Category) {
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].SortOrder != cats[j].SortOrder {
			return cats[i].SortOrder < cats[j].SortOrder
		}
		return cats[i].ID < cats[j].ID
	})
}
