// Package returns computes time-weighted and money-weighted returns over a
// chronological series of valuations and external cash flows.
package returns

import (
	"fmt"
	"math"
	"time"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
)

// DaysPerYear converts day counts to years.
const DaysPerYear = 365.0

// Newton-Raphson parameters for IRR.
const (
	InitialGuess  = 0.1
	MaxIterations = 100
	Tolerance     = 1e-8
)

// Point is one valuation of a series. Value is the market value at the end
// of the day, after CashFlow. CashFlow is positive for money flowing in
// (deposits, buys) and negative for money flowing out.
type Point struct {
	Date     time.Time
	Value    float64
	CashFlow float64
}

// YearsBetween returns the span from start to end in years of DaysPerYear days.
func YearsBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24 / DaysPerYear
}

// TimeWeighted returns the cumulative time-weighted return in percent at
// every point. Sub-period returns (V_i - CF_i) / V_(i-1) are chained so
// external flows do not count as performance; without flows this reduces to
// 100 * (V_t / V_0 - 1). The first point is always exactly 0.
//
// Sub-periods that start from zero value contribute no return.
func TimeWeighted(points []Point) []float64 {
	out := make([]float64, len(points))
	if len(points) == 0 {
		return out
	}
	growth := 1.0
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Value
		if prev > 0 {
			growth *= (points[i].Value - points[i].CashFlow) / prev
		}
		out[i] = 100 * (growth - 1)
	}
	return out
}

// Rebase expresses values as percent change from the first non-zero value.
// Entries before it are 0, and the first entry is always exactly 0.
func Rebase(values []float64) []float64 {
	out := make([]float64, len(values))
	base := 0.0
	for i, v := range values {
		if base == 0 {
			if v != 0 {
				base = v
			}
			continue
		}
		out[i] = 100 * (v/base - 1)
	}
	return out
}

// Annualize converts a cumulative return in percent over years into an
// annual rate expressed as a fraction: (1 + twr/100)^(1/years) - 1.
// An empty span returns the cumulative return as a fraction.
func Annualize(twrPct, years float64) float64 {
	if years <= 0 {
		return twrPct / 100
	}
	growth := 1 + twrPct/100
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, 1/years) - 1
}

// Flow is one dated amount in an IRR computation, from the investor's side:
// negative for money paid in, positive for money received.
type Flow struct {
	Years  float64
	Amount float64
}

// IRR solves sum(Amount / (1+r)^Years) = 0 for r by Newton-Raphson, starting
// at InitialGuess. When the iteration does not converge, the derivative
// vanishes or the rate leaves the domain r > -1, it returns NaN and an error
// wrapping apperrors.ErrNonConvergentIRR.
func IRR(flows []Flow) (float64, error) {
	if !hasBothSigns(flows) {
		return math.NaN(), fmt.Errorf("%w: cash flows need both a payment and a receipt", apperrors.ErrNonConvergentIRR)
	}

	r := InitialGuess
	for i := 0; i < MaxIterations; i++ {
		npv, dnpv := npvAndDerivative(flows, r)
		if math.Abs(npv) < Tolerance {
			return r, nil
		}
		if math.Abs(dnpv) < 1e-300 || math.IsNaN(dnpv) || math.IsInf(dnpv, 0) {
			return math.NaN(), fmt.Errorf("%w: derivative vanished at r=%g", apperrors.ErrNonConvergentIRR, r)
		}
		r -= npv / dnpv
		if r <= -1 || math.IsNaN(r) || math.IsInf(r, 0) {
			return math.NaN(), fmt.Errorf("%w: rate left the valid domain", apperrors.ErrNonConvergentIRR)
		}
	}
	return math.NaN(), fmt.Errorf("%w: no root within %d iterations", apperrors.ErrNonConvergentIRR, MaxIterations)
}

func npvAndDerivative(flows []Flow, r float64) (float64, float64) {
	var npv, dnpv float64
	base := 1 + r
	for _, f := range flows {
		discount := math.Pow(base, f.Years)
		npv += f.Amount / discount
		dnpv -= f.Years * f.Amount / (discount * base)
	}
	return npv, dnpv
}

func hasBothSigns(flows []Flow) bool {
	var neg, pos bool
	for _, f := range flows {
		switch {
		case f.Amount < 0:
			neg = true
		case f.Amount > 0:
			pos = true
		}
	}
	return neg && pos
}

// MoneyWeightedFlows converts a valuation series into investor-side flows:
// the opening value and every later inflow are payments, outflows are
// receipts, and the closing value is a terminal receipt.
func MoneyWeightedFlows(points []Point) []Flow {
	if len(points) == 0 {
		return nil
	}
	start := points[0].Date
	var flows []Flow
	if v := points[0].Value; v != 0 {
		flows = append(flows, Flow{Years: 0, Amount: -v})
	}
	for _, p := range points[1:] {
		if p.CashFlow != 0 {
			flows = append(flows, Flow{Years: YearsBetween(start, p.Date), Amount: -p.CashFlow})
		}
	}
	last := points[len(points)-1]
	if last.Value != 0 {
		flows = append(flows, Flow{Years: YearsBetween(start, last.Date), Amount: last.Value})
	}
	return flows
}

// MoneyWeighted returns the annual money-weighted return of points as a
// fraction, or NaN with an ErrNonConvergentIRR error when it is undefined.
func MoneyWeighted(points []Point) (float64, error) {
	return IRR(MoneyWeightedFlows(points))
}
