// Package drift measures how far holdings and groups have moved away from
// their target allocations and decides whether to buy, sell or hold.
//
// Drift is relative to the target: a holding at 12% of its group against a
// 10% target has drifted 20%, so thresholds compare across target sizes.
package drift

import (
	"math"
	"slices"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// ImpliedOverallTarget is a holding's target share of the whole portfolio.
func ImpliedOverallTarget(groupTargetPct, holdingTargetPct float64) float64 {
	return groupTargetPct * holdingTargetPct / 100
}

// CurrentInGroupPct is a holding's share of its group's value. Zero for an empty group.
func CurrentInGroupPct(value, groupValue float64) float64 {
	if groupValue == 0 {
		return 0
	}
	return 100 * value / groupValue
}

// RelativeDrift is the deviation of currentPct from targetPct, relative to targetPct.
// A zero target never drifts.
func RelativeDrift(currentPct, targetPct float64) float64 {
	if targetPct == 0 {
		return 0
	}
	return 100 * (currentPct - targetPct) / targetPct
}

// Decide applies the group's thresholds to a relative drift.
func Decide(relativeDrift float64, g model.Group) model.Action {
	switch {
	case relativeDrift >= g.UpsideThreshold:
		return model.ActionSell
	case relativeDrift <= -g.DownsideThreshold:
		return model.ActionBuy
	}
	return model.ActionHold
}

// TradeAmount is the value to trade for action. Absolute rebalancing returns
// to the exact target; band rebalancing stops at the threshold edge.
//
// parentValue is the value the target percentage applies to: the group value
// for a holding, the portfolio total for a group.
func TradeAmount(action model.Action, g model.Group, parentValue, targetPct, value float64) float64 {
	target := parentValue * targetPct / 100
	switch action {
	case model.ActionSell:
		if g.AbsoluteRebalance {
			return math.Abs(target - value)
		}
		return math.Abs(target*(1+g.UpsideThreshold/100) - value)
	case model.ActionBuy:
		if g.AbsoluteRebalance {
			return math.Abs(target - value)
		}
		return math.Abs(target*(1-g.DownsideThreshold/100) - value)
	}
	return 0
}

// ValidateGroup rejects target percentages outside 0-100 and negative thresholds.
func ValidateGroup(g model.Group) error {
	if err := validatePct("targetPct", g.TargetPct); err != nil {
		return err
	}
	if g.UpsideThreshold < 0 || math.IsNaN(g.UpsideThreshold) {
		return apperrors.NewInputError("upsideThreshold", "must not be negative, got %v", g.UpsideThreshold)
	}
	if g.DownsideThreshold < 0 || math.IsNaN(g.DownsideThreshold) {
		return apperrors.NewInputError("downsideThreshold", "must not be negative, got %v", g.DownsideThreshold)
	}
	return nil
}

// ValidateHoldingTarget rejects target percentages outside 0-100.
func ValidateHoldingTarget(t model.HoldingTarget) error {
	return validatePct("targetPct", t.TargetPct)
}

func validatePct(field string, pct float64) error {
	if pct < 0 || pct > 100 || math.IsNaN(pct) {
		return apperrors.NewInputError(field, "must be between 0 and 100, got %v", pct)
	}
	return nil
}

// Position is the current value of one holding and where it belongs.
// GroupID is empty for a holding outside every group; HoldingTargetPct is 0
// when no target is stored.
type Position struct {
	HoldingID        string
	GroupID          string
	Value            float64
	HoldingTargetPct float64
}

// HoldingResult is the drift state of one holding.
type HoldingResult struct {
	HoldingID            string
	GroupID              string
	Value                float64
	CurrentPct           float64
	CurrentInGroupPct    float64
	TargetPct            float64
	ImpliedOverallTarget float64
	DriftPct             float64
	Action               model.Action
	Amount               float64
}

// GroupResult is the drift state of one group against the portfolio total.
type GroupResult struct {
	Group      model.Group
	Value      float64
	CurrentPct float64
	DriftPct   float64
	Action     model.Action
	Amount     float64
}

// Result is the output of Evaluate.
type Result struct {
	TotalValue float64
	Groups     []GroupResult
	Holdings   []HoldingResult
}

// Holding returns the result for holdingID.
func (r Result) Holding(holdingID string) (HoldingResult, bool) {
	for _, h := range r.Holdings {
		if h.HoldingID == holdingID {
			return h, true
		}
	}
	return HoldingResult{}, false
}

// Evaluate computes group and holding drift for positions. Positions in an
// unknown group are valued and reported but always hold. The target hierarchy
// is not checked for consistency.
func Evaluate(groups []model.Group, positions []Position) Result {
	byID := make(map[string]model.Group, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}

	groupValue := make(map[string]float64)
	var res Result
	for _, p := range positions {
		res.TotalValue += p.Value
		groupValue[p.GroupID] += p.Value
	}

	for _, g := range groups {
		v := groupValue[g.ID]
		current := CurrentInGroupPct(v, res.TotalValue)
		drift := RelativeDrift(current, g.TargetPct)
		action := model.ActionHold
		if g.TargetPct != 0 {
			action = Decide(drift, g)
		}
		action, amount := settle(action, TradeAmount(action, g, res.TotalValue, g.TargetPct, v))
		res.Groups = append(res.Groups, GroupResult{
			Group:      g,
			Value:      v,
			CurrentPct: current,
			DriftPct:   drift,
			Action:     action,
			Amount:     amount,
		})
	}

	for _, p := range positions {
		h := HoldingResult{
			HoldingID:  p.HoldingID,
			GroupID:    p.GroupID,
			Value:      p.Value,
			CurrentPct: CurrentInGroupPct(p.Value, res.TotalValue),
			Action:     model.ActionHold,
		}
		g, ok := byID[p.GroupID]
		if ok {
			h.TargetPct = p.HoldingTargetPct
			h.CurrentInGroupPct = CurrentInGroupPct(p.Value, groupValue[g.ID])
			h.ImpliedOverallTarget = ImpliedOverallTarget(g.TargetPct, p.HoldingTargetPct)
			h.DriftPct = RelativeDrift(h.CurrentInGroupPct, p.HoldingTargetPct)
			if p.HoldingTargetPct != 0 {
				h.Action = Decide(h.DriftPct, g)
			}
			h.Action, h.Amount = settle(h.Action, TradeAmount(h.Action, g, groupValue[g.ID], p.HoldingTargetPct, p.Value))
		}
		res.Holdings = append(res.Holdings, h)
	}

	slices.SortStableFunc(res.Holdings, func(a, b HoldingResult) int {
		switch {
		case a.GroupID < b.GroupID:
			return -1
		case a.GroupID > b.GroupID:
			return 1
		}
		return 0
	})
	return res
}

// settle turns a trade of nothing into a hold, as happens when the parent
// value the target applies to is zero.
func settle(action model.Action, amount float64) (model.Action, float64) {
	if amount <= 0 {
		return model.ActionHold, 0
	}
	return action, amount
}
