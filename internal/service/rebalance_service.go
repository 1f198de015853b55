package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/phuslu/log"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/drift"
	"github.com/ndewijer/portfolio-rebalancer/internal/ledger"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/pricing"
	"github.com/ndewijer/portfolio-rebalancer/internal/repository"
	"github.com/ndewijer/portfolio-rebalancer/internal/selector"
)

// RebalanceRequest describes which rebalance report to build.
type RebalanceRequest struct {
	UserID   string
	Filter   model.RebalanceFilter
	AsOf     time.Time // zero means now
	TaxAware bool
}

// RebalanceService builds rebalance reports: current valuation, drift against
// the target hierarchy, and the trades that would correct it.
type RebalanceService struct {
	dataLoader *DataLoaderService
	rates      selector.Rates
	logger     *log.Logger
}

// NewRebalanceService creates a new RebalanceService with the provided dependencies.
func NewRebalanceService(dataLoader *DataLoaderService, rates selector.Rates, logger *log.Logger) *RebalanceService {
	return &RebalanceService{
		dataLoader: dataLoader,
		rates:      rates,
		logger:     logger,
	}
}

// GetRebalanceReport computes the rebalance report of a user.
//
// The method performs the following:
//  1. Loads the user's accounts, groups, holdings, open lots, transactions and prices
//  2. Values every holding from the open lots in scope at the latest price on or before AsOf;
//     for a past AsOf the lots are rebuilt by replaying the history up to that date
//  3. Runs the drift engine over all groups and holdings
//  4. For every sell, picks accounts and lots with the tax-aware selector (when TaxAware)
//  5. Pairs sell proceeds with buys in the same group
//  6. Computes cash totals and the cash still needed to fund the buys
//
// Missing prices and degraded selections never fail the report; they are
// attached as warnings and the affected holdings are still listed.
//
// Parameters:
//   - ctx: Context for cancellation
//   - req: User, filter, valuation date and tax-awareness flag
//
// Returns:
//   - *model.RebalanceReport with monetary values rounded to two decimals
//   - error wrapping apperrors.ErrAccountNotFound or apperrors.ErrGroupNotFound for unknown filter ids,
//     or a load failure
func (s *RebalanceService) GetRebalanceReport(ctx context.Context, req RebalanceRequest) (*model.RebalanceReport, error) {
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	data, err := s.dataLoader.LoadForUser(ctx, req.UserID, asOf)
	if err != nil {
		return nil, err
	}
	if err := validateFilter(data, req.Filter); err != nil {
		return nil, err
	}

	lots, err := lotsAsOf(data, asOf, isPast(req.AsOf))
	if err != nil {
		return nil, err
	}
	scoped := scopeLots(lots, req.Filter.AccountIDs, asOf)
	led := ledger.New(scoped)
	tracker := pricing.Track(data.Prices.PriceFunc(asOf))

	positions := make([]drift.Position, 0, len(data.Holdings))
	for _, h := range data.Holdings {
		value, _ := led.ValueAt(model.LotFilter{HoldingID: h.ID}, tracker.Price)
		p := drift.Position{HoldingID: h.ID, GroupID: holdingGroup(h), Value: value}
		if h.Target != nil {
			p.HoldingTargetPct = h.Target.TargetPct
		}
		positions = append(positions, p)
	}
	result := drift.Evaluate(data.Groups, positions)

	report := &model.RebalanceReport{
		AsOf:       asOf,
		TotalValue: round(result.TotalValue),
		Groups:     []model.GroupAllocation{},
		Holdings:   []model.HoldingAllocation{},
		Warnings:   []model.Warning{},
	}

	for _, g := range result.Groups {
		if !containsOrEmpty(req.Filter.GroupIDs, g.Group.ID) {
			continue
		}
		report.Groups = append(report.Groups, model.GroupAllocation{
			GroupID:    g.Group.ID,
			Name:       g.Group.Name,
			Value:      round(g.Value),
			CurrentPct: round(g.CurrentPct),
			TargetPct:  g.Group.TargetPct,
			DriftPct:   round(g.DriftPct),
			Action:     g.Action,
		})
	}

	var sales []selector.Sale
	var needs []selector.Need
	index := make(map[string]int)
	var buyTotal, sellTotal float64

	for _, hr := range result.Holdings {
		if !containsOrEmpty(req.Filter.GroupIDs, hr.GroupID) {
			continue
		}
		h := data.HoldingByID[hr.HoldingID]
		missing := tracker.IsMissing(h.ID)
		if hr.Value == 0 && hr.TargetPct == 0 && !missing {
			continue
		}

		alloc := model.HoldingAllocation{
			HoldingID:               h.ID,
			Ticker:                  h.Ticker,
			Name:                    h.Name,
			GroupID:                 hr.GroupID,
			CurrentValue:            round(hr.Value),
			CurrentPct:              round(hr.CurrentPct),
			CurrentInGroupPct:       round(hr.CurrentInGroupPct),
			TargetPct:               hr.TargetPct,
			ImpliedOverallTarget:    round(hr.ImpliedOverallTarget),
			DriftPct:                round(hr.DriftPct),
			Action:                  hr.Action,
			Amount:                  round(hr.Amount),
			MissingPrice:            missing,
			RecommendedAccounts:     []model.AccountRecommendation{},
			ReinvestmentSuggestions: []model.Reinvestment{},
		}

		switch hr.Action {
		case model.ActionSell:
			sellTotal += hr.Amount
			sale := selector.Sale{HoldingID: h.ID, GroupID: hr.GroupID, Amount: hr.Amount}
			if req.TaxAware {
				sel := s.selectAccounts(data, led, tracker, req.Filter.AccountIDs, h, hr.Amount, asOf)
				applySelection(&alloc, sel)
				sale.TaxImpact = sel.TaxImpact
				if sel.Degraded {
					report.Warnings = append(report.Warnings, model.Warning{
						Kind:      model.WarningDegradedSelection,
						HoldingID: h.ID,
						Message:   fmt.Sprintf("%s: no lots linked to a known account, tax estimated over all lots", h.Ticker),
					})
				}
			}
			sales = append(sales, sale)
		case model.ActionBuy:
			buyTotal += hr.Amount
			needs = append(needs, selector.Need{HoldingID: h.ID, GroupID: hr.GroupID, Amount: hr.Amount, DriftPct: hr.DriftPct})
		}

		index[h.ID] = len(report.Holdings)
		report.Holdings = append(report.Holdings, alloc)
	}

	for soldID, plan := range selector.PlanReinvestment(sales, needs) {
		i, ok := index[soldID]
		if !ok {
			continue
		}
		for _, r := range plan {
			report.Holdings[i].ReinvestmentSuggestions = append(report.Holdings[i].ReinvestmentSuggestions,
				model.Reinvestment{HoldingID: r.HoldingID, Amount: round(r.Amount)})
		}
	}

	for _, id := range tracker.Missing() {
		h := data.HoldingByID[id]
		s.logger.Warn().Str("holding_id", id).Str("ticker", h.Ticker).Str("as_of", asOf.Format(repository.DateLayout)).Msg("no price for holding, valued at zero")
		report.Warnings = append(report.Warnings, model.Warning{
			Kind:      model.WarningMissingPrice,
			HoldingID: id,
			Message:   fmt.Sprintf("%s has no price on or before %s and is valued at zero", h.Ticker, asOf.Format(repository.DateLayout)),
		})
	}

	cash := totalCash(data.Transactions, req.Filter.AccountIDs)
	report.TotalCash = round(cash)
	report.CashNeeded = round(math.Max(0, buyTotal-sellTotal-cash))

	return report, nil
}

// selectAccounts runs the tax-aware selector for one sell.
func (s *RebalanceService) selectAccounts(
	data *PortfolioData,
	led *ledger.Ledger,
	tracker *pricing.Tracker,
	accountIDs []string,
	h model.Holding,
	amount float64,
	asOf time.Time,
) selector.Selection {
	price, _ := tracker.Price(h.ID)
	req := selector.Request{
		HoldingID:  h.ID,
		SellAmount: amount,
		Price:      price,
		AsOf:       asOf,
		Unlinked:   led.OpenLots(model.LotFilter{HoldingID: h.ID}),
	}
	for _, a := range data.Accounts {
		if !containsOrEmpty(accountIDs, a.ID) {
			continue
		}
		lots := led.OpenLots(model.LotFilter{HoldingID: h.ID, AccountID: a.ID})
		if len(lots) > 0 {
			req.Accounts = append(req.Accounts, selector.AccountLots{Account: a, Lots: lots})
		}
	}

	sel := selector.Select(req, s.rates)
	if sel.Degraded {
		s.logger.Warn().Str("holding_id", h.ID).Str("ticker", h.Ticker).Msg("degraded tax-aware selection")
	}
	if sel.Shortfall > 0 {
		s.logger.Debug().Str("holding_id", h.ID).Float64("shortfall", sel.Shortfall).Msg(sel.Note)
	}
	return sel
}

// applySelection copies a selector result onto a holding allocation.
func applySelection(alloc *model.HoldingAllocation, sel selector.Selection) {
	for _, rec := range sel.Recommendations {
		rec.Amount = round(rec.Amount)
		rec.HoldingValue = round(rec.HoldingValue)
		if rec.LotIDs == nil {
			rec.LotIDs = []string{}
		}
		alloc.RecommendedAccounts = append(alloc.RecommendedAccounts, rec)
	}
	alloc.TaxImpact = &model.TaxImpact{
		Tax:         round(sel.TaxImpact.Tax),
		LossBenefit: round(sel.TaxImpact.LossBenefit),
		Net:         round(sel.TaxImpact.Net),
	}
	alloc.SelectionDegraded = sel.Degraded
	alloc.SelectionNote = sel.Note
}

// validateFilter checks that every filtered account and group belongs to the user.
func validateFilter(data *PortfolioData, filter model.RebalanceFilter) error {
	for _, id := range filter.AccountIDs {
		if _, ok := data.AccountByID[id]; !ok {
			return fmt.Errorf("account %s: %w", id, apperrors.ErrAccountNotFound)
		}
	}
	for _, id := range filter.GroupIDs {
		found := false
		for _, g := range data.Groups {
			if g.ID == id {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("group %s: %w", id, apperrors.ErrGroupNotFound)
		}
	}
	return nil
}

// isPast reports whether asOf falls before the current UTC day.
func isPast(asOf time.Time) bool {
	if asOf.IsZero() {
		return false
	}
	y, m, d := time.Now().UTC().Date()
	return asOf.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// lotsAsOf returns the lots open at asOf. Stored lots hold the latest state,
// so a past date replays data.Transactions (already cut at asOf) instead.
// Stored lots not linked to a buy are kept as they are, and replayed lots
// take the id of the stored lot opened by the same buy.
func lotsAsOf(data *PortfolioData, asOf time.Time, past bool) ([]model.TaxLot, error) {
	if !past {
		return data.Lots, nil
	}
	led, _, err := ledger.Replay(data.Transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild lots as of %s: %w", asOf.Format(repository.DateLayout), err)
	}

	storedIDs := make(map[string]string, len(data.Lots))
	lots := make([]model.TaxLot, 0, len(data.Lots))
	for _, lot := range data.Lots {
		if lot.TransactionID == "" {
			lots = append(lots, lot)
			continue
		}
		storedIDs[lot.TransactionID] = lot.ID
	}
	for _, lot := range led.OpenLots(model.LotFilter{}) {
		if id, ok := storedIDs[lot.TransactionID]; ok {
			lot.ID = id
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

// scopeLots keeps the lots held in the given accounts and acquired on or before asOf.
// Lots without an account are only kept when no account filter applies.
func scopeLots(lots []model.TaxLot, accountIDs []string, asOf time.Time) []model.TaxLot {
	scoped := make([]model.TaxLot, 0, len(lots))
	for _, lot := range lots {
		if lot.AcquiredAt.After(asOf) {
			continue
		}
		if len(accountIDs) > 0 && !containsOrEmpty(accountIDs, lot.AccountID) {
			continue
		}
		scoped = append(scoped, lot)
	}
	return scoped
}

// holdingGroup returns the group a holding is targeted in, falling back to its membership.
func holdingGroup(h model.Holding) string {
	if h.Target != nil && h.Target.GroupID != "" {
		return h.Target.GroupID
	}
	return h.GroupID
}

// totalCash sums the signed amounts of the transactions in the given accounts.
func totalCash(txs []model.Transaction, accountIDs []string) float64 {
	total := 0.0
	for _, tx := range txs {
		if containsOrEmpty(accountIDs, tx.AccountID) {
			total += tx.Amount.InexactFloat64()
		}
	}
	return total
}
