package boq

import (
	"context"
	"fmt"

	"github.com/rencana-app/rencana/internal/ahsp"
	"github.com/rencana-app/rencana/internal/money"
	"github.com/rencana-app/rencana/internal/shared"
)

// Evaluator keeps line totals consistent: total = volume × unit price,
// with derived unit prices refreshed from the owning project's
// analyses. Idempotent; callers re-run it on every mutation of volume,
// unit price or (for derived lines) composition or snapshot price.
type Evaluator struct {
	resolver *ahsp.Resolver
}

func NewEvaluator(loader ahsp.AnalysisLoader) *Evaluator {
	return &Evaluator{resolver: ahsp.NewResolver(loader)}
}

// Evaluate returns the line with unit price and total refreshed.
// Custom lines keep the user-entered unit price; derived lines resolve
// theirs through the composition against the supplied price lookup.
// Multiplication runs at full precision and only the stored total is
// rounded.
func (e *Evaluator) Evaluate(ctx context.Context, line Line, lookup ahsp.PriceLookup) (Line, error) {
	if line.Derived() {
		if line.AnalysisID == nil {
			return Line{}, fmt.Errorf("%w: derived line has no analysis", shared.ErrValidation)
		}
		res, err := e.resolver.Resolve(ctx, *line.AnalysisID, lookup)
		if err != nil {
			return Line{}, err
		}
		line.UnitPrice = res.UnitPrice
		line.Unpriced = res.Incomplete()
	} else {
		line.UnitPrice = money.Round(line.UnitPrice)
		line.Unpriced = false
	}
	line.TotalPrice = money.Round(line.Volume.Mul(line.UnitPrice))
	return line, nil
}
