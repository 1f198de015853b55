package selector

import (
	"cmp"
	"math"
	"slices"

	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// Sale is a planned sell whose proceeds can be reinvested.
type Sale struct {
	HoldingID string
	GroupID   string
	Amount    float64
	TaxImpact model.TaxImpact
}

// Proceeds is the sale amount plus any tax benefit it produces.
func (s Sale) Proceeds() float64 {
	if s.TaxImpact.Net < 0 {
		return s.Amount - s.TaxImpact.Net
	}
	return s.Amount
}

// Need is a planned buy waiting for funds.
type Need struct {
	HoldingID string
	GroupID   string
	Amount    float64
	DriftPct  float64
}

// PlanReinvestment allocates each sale's proceeds to buys in the same group,
// most underweight first. Sales are processed largest first and a buy's
// remaining need is shared across sales. The result is keyed by sold holding.
func PlanReinvestment(sales []Sale, needs []Need) map[string][]model.Reinvestment {
	plan := make(map[string][]model.Reinvestment)

	ordered := slices.Clone(sales)
	slices.SortStableFunc(ordered, func(a, b Sale) int {
		return cmp.Compare(b.Amount, a.Amount)
	})

	remaining := make(map[string]float64, len(needs))
	candidates := slices.Clone(needs)
	for _, n := range candidates {
		remaining[n.HoldingID] = n.Amount
	}
	slices.SortStableFunc(candidates, func(a, b Need) int {
		if c := cmp.Compare(math.Abs(b.DriftPct), math.Abs(a.DriftPct)); c != 0 {
			return c
		}
		return cmp.Compare(a.HoldingID, b.HoldingID)
	})

	for _, s := range ordered {
		proceeds := s.Proceeds()
		for _, n := range candidates {
			if proceeds <= 0 {
				break
			}
			if n.GroupID != s.GroupID || remaining[n.HoldingID] <= 0 {
				continue
			}
			amount := math.Min(proceeds, remaining[n.HoldingID])
			remaining[n.HoldingID] -= amount
			proceeds -= amount
			plan[s.HoldingID] = append(plan[s.HoldingID], model.Reinvestment{
				HoldingID: n.HoldingID,
				Amount:    amount,
			})
		}
	}
	return plan
}
