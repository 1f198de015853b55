package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/phuslu/log"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/ledger"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/pricing"
	"github.com/ndewijer/portfolio-rebalancer/internal/repository"
	"github.com/ndewijer/portfolio-rebalancer/internal/returns"
)

// UnassignedSeriesKey collects holdings without a value for the requested lens.
const UnassignedSeriesKey = "unassigned"

// PerformanceService replays a user's transaction history over a daily date grid
// and turns the resulting valuations into per-lens return series.
type PerformanceService struct {
	dataLoader *DataLoaderService
	benchmark  string
	logger     *log.Logger
}

// NewPerformanceService creates a new PerformanceService.
// benchmark is the ticker used when a request names none; empty disables the default.
func NewPerformanceService(dataLoader *DataLoaderService, benchmark string, logger *log.Logger) *PerformanceService {
	return &PerformanceService{
		dataLoader: dataLoader,
		benchmark:  benchmark,
		logger:     logger,
	}
}

// seriesState accumulates one series while the grid is walked.
type seriesState struct {
	key      string
	label    string
	realized float64
	income   float64
	flow     float64 // cash flow of the current date
	points   []model.PerformancePoint
	rpoints  []returns.Point
}

// GetPerformance builds the performance report described by req.
//
// The full transaction history up to req.End is replayed through an in-memory
// ledger. Transactions dated before req.Start only build up the opening lots;
// from req.Start on, every calendar day produces one point per series with
// prices forward-filled from the last known price point.
//
// Defaults: End is today, Start is the date of the first transaction, Lens is
// group and Metric is twr. Benchmark falls back to the configured ticker.
//
// Parameters:
//   - ctx: Context for cancellation
//   - req: Date range, lens, aggregate flag, metric and benchmark
//
// Returns:
//   - *model.PerformanceReport with one series per lens key (plus "total" when Aggregate is set)
//   - error wrapping apperrors.ErrInvalidDateRange, apperrors.ErrInvalidInput,
//     a replay failure or a load failure
func (s *PerformanceService) GetPerformance(ctx context.Context, req model.PerformanceRequest) (*model.PerformanceReport, error) {
	if req.End.IsZero() {
		req.End = time.Now().UTC()
	}
	if req.Lens == "" {
		req.Lens = model.LensGroup
	}
	if _, ok := model.ParseLens(string(req.Lens)); !ok {
		return nil, apperrors.NewInputError("lens", "unknown lens %q", req.Lens)
	}
	switch req.Metric {
	case "":
		req.Metric = model.MetricTWR
	case model.MetricTWR, model.MetricMWR:
	default:
		return nil, apperrors.NewInputError("metric", "unknown metric %q", req.Metric)
	}
	if req.Benchmark == "" {
		req.Benchmark = s.benchmark
	}

	data, err := s.dataLoader.LoadForUser(ctx, req.UserID, req.End)
	if err != nil {
		return nil, err
	}

	txs := slices.Clone(data.Transactions)
	ledger.SortTransactions(txs)

	if req.Start.IsZero() {
		req.Start = req.End
		if len(txs) > 0 {
			req.Start = txs[0].Date
		}
	}
	if req.Start.After(req.End) {
		return nil, fmt.Errorf("%w: start %s is after end %s", apperrors.ErrInvalidDateRange,
			req.Start.Format(repository.DateLayout), req.End.Format(repository.DateLayout))
	}

	dates := pricing.DailyGrid(req.Start, req.End)
	report := &model.PerformanceReport{
		Start:    req.Start.Format(repository.DateLayout),
		End:      req.End.Format(repository.DateLayout),
		Lens:     req.Lens,
		Metric:   req.Metric,
		Series:   []model.PerformanceSeries{},
		Warnings: []model.Warning{},
	}

	states, order := s.initSeries(data, txs, req.Lens)
	var total *seriesState
	if req.Aggregate {
		total = &seriesState{key: model.TotalSeriesKey, label: "Total"}
	}

	var current time.Time
	tracker := pricing.Track(func(holdingID string) (float64, bool) {
		return data.Prices.AsOf(holdingID, current)
	})
	led := ledger.New(nil)
	next := 0

	for _, date := range dates {
		current = date
		for _, st := range states {
			st.flow = 0
		}
		if total != nil {
			total.flow = 0
		}

		for next < len(txs) && !txs[next].Date.After(date) {
			tx := txs[next]
			next++
			inRange := !tx.Date.Before(dates[0])
			if err := s.applyTransaction(led, tx, data, req.Lens, states, total, inRange); err != nil {
				return nil, err
			}
		}

		values := make(map[string]float64, len(states))
		bases := make(map[string]float64, len(states))
		for _, lot := range led.OpenLots(model.LotFilter{}) {
			key := seriesKey(data, req.Lens, lot.HoldingID, lot.AccountID)
			if p, ok := tracker.Price(lot.HoldingID); ok {
				values[key] += lot.RemainingQuantity.InexactFloat64() * p
			}
			bases[key] += lot.CostBasis().InexactFloat64()
		}

		var totalValue, totalBasis float64
		for _, key := range order {
			st := states[key]
			appendPoint(st, date, values[key], bases[key])
			totalValue += values[key]
			totalBasis += bases[key]
		}
		if total != nil {
			appendPoint(total, date, totalValue, totalBasis)
		}
	}

	years := returns.YearsBetween(req.Start, req.End)
	for _, key := range order {
		st := states[key]
		if isEmptySeries(st) {
			continue
		}
		report.Series = append(report.Series, s.finishSeries(st, years, req.Metric, report))
	}
	if total != nil {
		report.Series = append(report.Series, s.finishSeries(total, years, req.Metric, report))
	}

	for _, id := range tracker.Missing() {
		h := data.HoldingByID[id]
		s.logger.Warn().Str("holding_id", id).Str("ticker", h.Ticker).Msg("no price for part of the performance range")
		report.Warnings = append(report.Warnings, model.Warning{
			Kind:      model.WarningMissingPrice,
			HoldingID: id,
			Message:   fmt.Sprintf("%s has no price for part of the range and is valued at zero there", h.Ticker),
		})
	}

	if req.Benchmark != "" {
		s.addBenchmark(report, data, req.Benchmark, dates)
	}

	return report, nil
}

// initSeries creates one series per lens key reachable from the transaction
// history, ordered by label.
func (s *PerformanceService) initSeries(data *PortfolioData, txs []model.Transaction, lens model.Lens) (map[string]*seriesState, []string) {
	states := make(map[string]*seriesState)
	for _, tx := range txs {
		if tx.HoldingID == "" && lens != model.LensAccount {
			continue
		}
		key := seriesKey(data, lens, tx.HoldingID, tx.AccountID)
		if _, ok := states[key]; !ok {
			states[key] = &seriesState{key: key, label: seriesLabel(data, lens, key)}
		}
	}

	order := make([]string, 0, len(states))
	for key := range states {
		order = append(order, key)
	}
	slices.SortFunc(order, func(a, b string) int {
		if c := cmp.Compare(states[a].label, states[b].label); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return states, order
}

// applyTransaction applies tx to the ledger and books its realized gain,
// income and, when inRange, its cash flow on the affected series.
func (s *PerformanceService) applyTransaction(
	led *ledger.Ledger,
	tx model.Transaction,
	data *PortfolioData,
	lens model.Lens,
	states map[string]*seriesState,
	total *seriesState,
	inRange bool,
) error {
	effect, err := led.Apply(tx)
	if err != nil {
		return fmt.Errorf("failed to replay transaction %s: %w", tx.ID, err)
	}

	var st *seriesState
	if tx.HoldingID != "" || lens == model.LensAccount {
		st = states[seriesKey(data, lens, tx.HoldingID, tx.AccountID)]
	}

	var flow, realized, income float64
	switch {
	case tx.Type == model.TransactionBuy:
		flow = -tx.Amount.InexactFloat64()
	case tx.Type == model.TransactionSell:
		flow = -tx.Amount.InexactFloat64()
		if effect.Sale != nil {
			realized = effect.Sale.RealizedGain.InexactFloat64()
		}
	case tx.Type.IsIncome():
		income = tx.Amount.InexactFloat64()
	}

	for _, target := range []*seriesState{st, total} {
		if target == nil {
			continue
		}
		target.realized += realized
		target.income += income
		if inRange {
			target.flow += flow
		}
	}
	return nil
}

// appendPoint records the state of st on date.
func appendPoint(st *seriesState, date time.Time, value, basis float64) {
	unrealized := value - basis
	st.points = append(st.points, model.PerformancePoint{
		Date:           date.Format(repository.DateLayout),
		PortfolioValue: round(value),
		CostBasisTotal: round(basis),
		Unrealized:     round(unrealized),
		Realized:       round(st.realized),
		Income:         round(st.income),
		NetGain:        round(unrealized + st.realized + st.income),
		CashFlow:       round(st.flow),
	})
	st.rpoints = append(st.rpoints, returns.Point{Date: date, Value: value, CashFlow: st.flow})
}

// finishSeries computes returns and the summary of st.
func (s *PerformanceService) finishSeries(st *seriesState, years float64, metric model.ReturnMetric, report *model.PerformanceReport) model.PerformanceSeries {
	twr := returns.TimeWeighted(st.rpoints)
	for i := range st.points {
		st.points[i].Return = round(twr[i])
	}

	series := model.PerformanceSeries{
		Key:    st.key,
		Label:  st.label,
		Points: st.points,
	}
	if series.Points == nil {
		series.Points = []model.PerformancePoint{}
	}
	if len(twr) == 0 {
		return series
	}

	last := twr[len(twr)-1]
	series.Summary.TotalReturn = round(last)
	series.Summary.AnnualizedReturn = round(returns.Annualize(last, years) * 100)
	series.Summary.NetGain = st.points[len(st.points)-1].NetGain

	mwr, err := returns.MoneyWeighted(st.rpoints)
	if err != nil {
		series.Summary.MWRUndefined = true
		s.logger.Warn().Str("series", st.key).Err(err).Msg("money-weighted return undefined")
		report.Warnings = append(report.Warnings, model.Warning{
			Kind:      model.WarningNonConvergentIRR,
			SeriesKey: st.key,
			Message:   fmt.Sprintf("money-weighted return of %s is undefined", st.label),
		})
		return series
	}
	pct := round(mwr * 100)
	series.Summary.MWR = &pct
	if metric == model.MetricMWR {
		series.Summary.AnnualizedReturn = pct
	}
	return series
}

// addBenchmark attaches the rebased price history of the holding with ticker.
func (s *PerformanceService) addBenchmark(report *model.PerformanceReport, data *PortfolioData, ticker string, dates []time.Time) {
	var holding *model.Holding
	for i := range data.Holdings {
		if data.Holdings[i].Ticker == ticker {
			holding = &data.Holdings[i]
			break
		}
	}
	if holding == nil {
		s.logger.Warn().Str("ticker", ticker).Msg("benchmark holding not found")
		report.Warnings = append(report.Warnings, model.Warning{
			Kind:    model.WarningMissingPrice,
			Message: fmt.Sprintf("benchmark %s has no price history", ticker),
		})
		return
	}

	prices, _ := data.Prices.Series(holding.ID, dates)
	rebased := returns.Rebase(prices)
	bench := &model.BenchmarkSeries{Ticker: ticker, Points: make([]model.BenchmarkPoint, len(dates))}
	for i, d := range dates {
		bench.Points[i] = model.BenchmarkPoint{Date: d.Format(repository.DateLayout), Return: round(rebased[i])}
	}
	report.Benchmark = bench
}

// seriesKey maps a (holding, account) pair to its key under lens.
func seriesKey(data *PortfolioData, lens model.Lens, holdingID, accountID string) string {
	var key string
	switch lens {
	case model.LensAccount:
		key = accountID
	case model.LensGroup:
		key = holdingGroup(data.HoldingByID[holdingID])
	default:
		if h, ok := data.HoldingByID[holdingID]; ok {
			key = h.Tag(lens)
		} else if lens == model.LensHolding {
			key = holdingID
		}
	}
	if key == "" {
		return UnassignedSeriesKey
	}
	return key
}

// seriesLabel returns the display name of a lens key.
func seriesLabel(data *PortfolioData, lens model.Lens, key string) string {
	if key == UnassignedSeriesKey {
		return "Unassigned"
	}
	switch lens {
	case model.LensAccount:
		if a, ok := data.AccountByID[key]; ok {
			return a.Name
		}
	case model.LensGroup:
		for _, g := range data.Groups {
			if g.ID == key {
				return g.Name
			}
		}
	case model.LensHolding:
		if h, ok := data.HoldingByID[key]; ok {
			return h.Ticker
		}
	}
	return key
}

// isEmptySeries reports whether st never held value, moved cash or earned anything in range.
func isEmptySeries(st *seriesState) bool {
	for _, p := range st.points {
		if p.PortfolioValue != 0 || p.CashFlow != 0 || p.NetGain != 0 {
			return false
		}
	}
	return true
}
