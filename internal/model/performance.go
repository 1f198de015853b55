package model

import "time"

// ReturnMetric selects the headline return convention of a performance report.
type ReturnMetric string

const (
	MetricTWR ReturnMetric = "twr"
	MetricMWR ReturnMetric = "mwr"
)

// TotalSeriesKey is the key of the aggregate series added when requested.
const TotalSeriesKey = "total"

// PerformanceRequest describes which performance report to build.
type PerformanceRequest struct {
	UserID    string
	Start     time.Time
	End       time.Time
	Lens      Lens
	Aggregate bool
	Metric    ReturnMetric
	Benchmark string
}

// PerformancePoint is the state of one series on one date.
type PerformancePoint struct {
	Date           string  `json:"date"` // YYYY-MM-DD
	PortfolioValue float64 `json:"portfolioValue"`
	CostBasisTotal float64 `json:"costBasisTotal"`
	Unrealized     float64 `json:"unrealized"`
	Realized       float64 `json:"realized"`
	Income         float64 `json:"income"`
	NetGain        float64 `json:"netGain"`
	CashFlow       float64 `json:"cashFlow"`
	Return         float64 `json:"return"` // cumulative time-weighted return in percent
}

// PerformanceSummary holds the headline figures of a series.
// MWR is nil when the money-weighted return is undefined.
type PerformanceSummary struct {
	TotalReturn      float64  `json:"totalReturn"`
	AnnualizedReturn float64  `json:"annualizedReturn"`
	NetGain          float64  `json:"netGain"`
	MWR              *float64 `json:"mwr"`
	MWRUndefined     bool     `json:"mwrUndefined,omitempty"`
}

// PerformanceSeries is the date-indexed history of one lens key.
type PerformanceSeries struct {
	Key     string             `json:"key"`
	Label   string             `json:"label"`
	Points  []PerformancePoint `json:"points"`
	Summary PerformanceSummary `json:"summary"`
}

// BenchmarkPoint is the rebased return of the benchmark on one date.
type BenchmarkPoint struct {
	Date   string  `json:"date"`
	Return float64 `json:"return"`
}

// BenchmarkSeries is a benchmark holding's price history rebased to 0% at the start.
type BenchmarkSeries struct {
	Ticker string           `json:"ticker"`
	Points []BenchmarkPoint `json:"points"`
}

// PerformanceReport is the full result of a performance computation.
type PerformanceReport struct {
	Start     string              `json:"startDate"`
	End       string              `json:"endDate"`
	Lens      Lens                `json:"lens"`
	Metric    ReturnMetric        `json:"metric"`
	Series    []PerformanceSeries `json:"series"`
	Benchmark *BenchmarkSeries    `json:"benchmark,omitempty"`
	Warnings  []Warning           `json:"warnings"`
}

// PerformanceSnapshot is a pre-calculated aggregate state for one date.
// It is stored in the performance_snapshot table for fast history retrieval.
type PerformanceSnapshot struct {
	ID           string    // Primary key
	UserID       string    // Owner
	Date         time.Time // Date of this snapshot
	Value        float64   // Market value on this date
	CostBasis    float64   // Cost basis of open lots
	Realized     float64   // Cumulative realized gain
	Unrealized   float64   // Value minus cost basis
	Income       float64   // Cumulative dividends and interest
	NetGain      float64   // Unrealized + realized + income
	CashFlow     float64   // External flow into holdings on this date
	Return       float64   // Cumulative time-weighted return in percent
	CalculatedAt time.Time // When this record was calculated
}
