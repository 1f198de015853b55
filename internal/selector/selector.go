// Package selector decides which accounts to raise a required sell amount
// from so that the tax cost is minimized, and pairs the proceeds with
// underweight buys.
//
// Account choice and reinvestment order are independent: the first depends
// on tax status, the second on how underweight each destination is.
package selector

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/ndewijer/portfolio-rebalancer/internal/ledger"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// Rates are the estimated tax rates applied to realized gains and losses.
type Rates struct {
	ShortTerm    float64
	LongTerm     float64
	LongTermDays int
}

// DefaultRates returns a 37% short-term and 15% long-term rate with a one-year holding period.
func DefaultRates() Rates {
	return Rates{ShortTerm: 0.37, LongTerm: 0.15, LongTermDays: ledger.LongTermDays}
}

func (r Rates) forAge(heldDays int) float64 {
	days := r.LongTermDays
	if days <= 0 {
		days = ledger.LongTermDays
	}
	if heldDays < days {
		return r.ShortTerm
	}
	return r.LongTerm
}

// AccountLots is one account's open lots of the holding being sold.
type AccountLots struct {
	Account model.Account
	Lots    []model.TaxLot
}

// Request describes a required sell for one holding.
// Unlinked holds lots whose account could not be resolved.
type Request struct {
	HoldingID  string
	SellAmount float64
	Price      float64
	AsOf       time.Time
	Accounts   []AccountLots
	Unlinked   []model.TaxLot
}

// Selection is the selector's recommendation for one holding.
type Selection struct {
	HoldingID       string
	Recommendations []model.AccountRecommendation
	TaxImpact       model.TaxImpact
	UnrealizedGain  float64
	Covered         float64
	Shortfall       float64
	Degraded        bool
	Note            string
}

type accountState struct {
	account model.Account
	lots    []model.TaxLot
	value   float64
	basis   float64
}

// Select picks accounts for the sell. When the holding has net unrealized
// gain, tax-advantaged accounts are drained first; when it has a net loss,
// taxable accounts go first so the loss can be harvested. Ties are broken by
// descending account value. Tax is estimated only for the taxable portion.
//
// If no lots are linked to a known account, Select falls back to a flat
// estimate over all of the holding's lots and marks the selection degraded.
func Select(req Request, rates Rates) Selection {
	sel := Selection{HoldingID: req.HoldingID}
	if req.SellAmount <= 0 || req.Price <= 0 {
		return sel
	}

	var states []accountState
	for _, al := range req.Accounts {
		lots := fifo(openOnly(al.Lots))
		if len(lots) == 0 {
			continue
		}
		st := accountState{account: al.Account, lots: lots}
		for _, lot := range lots {
			q := lot.RemainingQuantity.InexactFloat64()
			st.value += q * req.Price
			st.basis += q * lot.CostBasisPerUnit.InexactFloat64()
		}
		states = append(states, st)
	}

	if len(states) == 0 {
		return selectDegraded(req, rates)
	}

	var totalValue, totalBasis float64
	for _, st := range states {
		totalValue += st.value
		totalBasis += st.basis
	}
	sel.UnrealizedGain = totalValue - totalBasis
	gain := sel.UnrealizedGain > 0

	slices.SortStableFunc(states, func(a, b accountState) int {
		pa, pb := priority(a.account, gain), priority(b.account, gain)
		if pa != pb {
			return cmp.Compare(pa, pb)
		}
		return cmp.Compare(b.value, a.value)
	})

	remaining := req.SellAmount
	for _, st := range states {
		if remaining <= 0 {
			break
		}
		take := math.Min(st.value, remaining)
		if take <= 0 {
			continue
		}
		remaining -= take

		lotIDs, impact := deplete(st.lots, take, req.Price, req.AsOf, rates)
		rec := model.AccountRecommendation{
			AccountID:    st.account.ID,
			AccountName:  st.account.Name,
			TaxStatus:    st.account.TaxStatus,
			Amount:       take,
			HoldingValue: st.value,
			LotIDs:       lotIDs,
			Rationale:    rationale(st.account, gain),
		}
		if st.account.IsTaxable() {
			sel.TaxImpact.Tax += impact.Tax
			sel.TaxImpact.LossBenefit += impact.LossBenefit
		}
		sel.Recommendations = append(sel.Recommendations, rec)
		sel.Covered += take
	}

	sel.TaxImpact.Net = sel.TaxImpact.Tax - sel.TaxImpact.LossBenefit
	if remaining > 0 {
		sel.Shortfall = remaining
		sel.Note = fmt.Sprintf("open lots cover %.2f of the %.2f requested", sel.Covered, req.SellAmount)
	}
	return sel
}

// selectDegraded estimates tax over the holding's aggregate lots without
// any account preference.
func selectDegraded(req Request, rates Rates) Selection {
	sel := Selection{HoldingID: req.HoldingID, Degraded: true}
	lots := fifo(openOnly(req.Unlinked))
	if len(lots) == 0 {
		sel.Shortfall = req.SellAmount
		sel.Note = "no open lots available for selection"
		return sel
	}

	var value, basis float64
	for _, lot := range lots {
		q := lot.RemainingQuantity.InexactFloat64()
		value += q * req.Price
		basis += q * lot.CostBasisPerUnit.InexactFloat64()
	}
	sel.UnrealizedGain = value - basis

	take := math.Min(value, req.SellAmount)
	lotIDs, impact := deplete(lots, take, req.Price, req.AsOf, rates)
	sel.TaxImpact = impact
	sel.TaxImpact.Net = impact.Tax - impact.LossBenefit
	sel.Covered = take
	sel.Shortfall = req.SellAmount - take
	sel.Recommendations = []model.AccountRecommendation{{
		Amount:       take,
		HoldingValue: value,
		LotIDs:       lotIDs,
		Rationale:    "lots are not linked to a known account; flat estimate over all lots",
	}}
	sel.Note = "degraded: account linkage incomplete, tax estimated without account preference"
	return sel
}

// deplete walks lots FIFO, consuming amount worth of units at price, and
// estimates tax per lot by age at asOf.
func deplete(lots []model.TaxLot, amount, price float64, asOf time.Time, rates Rates) ([]string, model.TaxImpact) {
	var impact model.TaxImpact
	var ids []string
	units := amount / price
	for _, lot := range lots {
		if units <= 1e-12 {
			break
		}
		q := math.Min(lot.RemainingQuantity.InexactFloat64(), units)
		units -= q

		gain := q*price - q*lot.CostBasisPerUnit.InexactFloat64()
		rate := rates.forAge(ledger.HeldDays(lot.AcquiredAt, asOf))
		if gain > 0 {
			impact.Tax += gain * rate
		} else {
			impact.LossBenefit += -gain * rate
		}
		ids = append(ids, lot.ID)
	}
	return ids, impact
}

func priority(a model.Account, gain bool) int {
	if a.IsTaxable() == gain {
		return 1
	}
	return 0
}

func rationale(a model.Account, gain bool) string {
	switch {
	case !a.IsTaxable() && gain:
		return "tax-advantaged account: gain realized without tax"
	case a.IsTaxable() && !gain:
		return "taxable account: realizes a deductible loss"
	case a.IsTaxable():
		return "taxable account: remaining amount after tax-advantaged accounts, gain taxed by lot age"
	}
	return "tax-advantaged account: remaining amount after taxable accounts, loss not deductible"
}

func openOnly(lots []model.TaxLot) []model.TaxLot {
	out := make([]model.TaxLot, 0, len(lots))
	for _, lot := range lots {
		if lot.IsOpen() {
			out = append(out, lot)
		}
	}
	return out
}

func fifo(lots []model.TaxLot) []model.TaxLot {
	slices.SortStableFunc(lots, func(a, b model.TaxLot) int {
		if c := a.AcquiredAt.Compare(b.AcquiredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return lots
}
