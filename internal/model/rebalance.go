package model

import "time"

// Action is the outcome of the drift decision for a holding or group.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// RebalanceFilter narrows a rebalance report to some groups and accounts.
type RebalanceFilter struct {
	GroupIDs   []string
	AccountIDs []string
}

// RebalanceReport is the full result of a rebalance computation.
// All monetary values are rounded to two decimal places.
type RebalanceReport struct {
	AsOf       time.Time           `json:"asOf"`
	TotalValue float64             `json:"totalValue"`
	TotalCash  float64             `json:"totalCash"`
	CashNeeded float64             `json:"cashNeeded"`
	Groups     []GroupAllocation   `json:"groups"`
	Holdings   []HoldingAllocation `json:"holdings"`
	Warnings   []Warning           `json:"warnings"`
}

// GroupAllocation is the drift state of one group against the portfolio total.
type GroupAllocation struct {
	GroupID    string  `json:"groupId"`
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	CurrentPct float64 `json:"currentPct"`
	TargetPct  float64 `json:"targetPct"`
	DriftPct   float64 `json:"driftPct"`
	Action     Action  `json:"action"`
}

// HoldingAllocation is the drift state and recommended trade for one holding.
type HoldingAllocation struct {
	HoldingID               string                  `json:"holdingId"`
	Ticker                  string                  `json:"ticker"`
	Name                    string                  `json:"name"`
	GroupID                 string                  `json:"groupId,omitempty"`
	CurrentValue            float64                 `json:"currentValue"`
	CurrentPct              float64                 `json:"currentPct"`
	CurrentInGroupPct       float64                 `json:"currentInGroupPct"`
	TargetPct               float64                 `json:"targetPct"`
	ImpliedOverallTarget    float64                 `json:"impliedOverallTarget"`
	DriftPct                float64                 `json:"driftPct"`
	Action                  Action                  `json:"action"`
	Amount                  float64                 `json:"amount"`
	MissingPrice            bool                    `json:"missingPrice,omitempty"`
	RecommendedAccounts     []AccountRecommendation `json:"recommendedAccounts"`
	ReinvestmentSuggestions []Reinvestment          `json:"reinvestmentSuggestions"`
	TaxImpact               *TaxImpact              `json:"taxImpact,omitempty"`
	SelectionDegraded       bool                    `json:"selectionDegraded,omitempty"`
	SelectionNote           string                  `json:"selectionNote,omitempty"`
}

// AccountRecommendation says how much of a sell to raise from one account.
type AccountRecommendation struct {
	AccountID    string    `json:"accountId"`
	AccountName  string    `json:"accountName,omitempty"`
	TaxStatus    TaxStatus `json:"taxStatus,omitempty"`
	Amount       float64   `json:"amount"`
	HoldingValue float64   `json:"holdingValue"`
	LotIDs       []string  `json:"lotIds"`
	Rationale    string    `json:"rationale"`
}

// Reinvestment routes part of a sale's proceeds into an underweight holding.
type Reinvestment struct {
	HoldingID string  `json:"holdingId"`
	Amount    float64 `json:"amount"`
}

// TaxImpact is an estimate, not an authoritative tax figure.
// Net is positive when tax is owed and negative when the sale yields a benefit.
type TaxImpact struct {
	Tax         float64 `json:"tax"`
	LossBenefit float64 `json:"lossBenefit"`
	Net         float64 `json:"net"`
}
