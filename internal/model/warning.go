package model

// WarningKind classifies a non-fatal degradation attached to a report.
type WarningKind string

const (
	WarningMissingPrice      WarningKind = "missing_price"
	WarningNonConvergentIRR  WarningKind = "non_convergent_irr"
	WarningDegradedSelection WarningKind = "degraded_selection"
)

// Warning surfaces a degradation to the caller. Reports never drop the
// affected holding or series; they keep it and attach a warning instead.
type Warning struct {
	Kind      WarningKind `json:"kind"`
	HoldingID string      `json:"holdingId,omitempty"`
	SeriesKey string      `json:"seriesKey,omitempty"`
	Message   string      `json:"message"`
}
