package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxLot is one acquisition batch of a holding in an account.
// RemainingQuantity only ever decreases; a lot at zero is closed.
type TaxLot struct {
	ID                string          `json:"id"`
	UserID            string          `json:"userId"`
	HoldingID         string          `json:"holdingId"`
	AccountID         string          `json:"accountId"`
	TransactionID     string          `json:"transactionId"`
	AcquiredAt        time.Time       `json:"acquiredAt"`
	Quantity          decimal.Decimal `json:"quantity"`
	CostBasisPerUnit  decimal.Decimal `json:"costBasisPerUnit"`
	RemainingQuantity decimal.Decimal `json:"remainingQuantity"`
	Seq               int64           `json:"seq"`
}

// IsOpen reports whether the lot still has units left.
func (l TaxLot) IsOpen() bool {
	return l.RemainingQuantity.IsPositive()
}

// CostBasis returns the cost basis of the remaining units.
func (l TaxLot) CostBasis() decimal.Decimal {
	return l.RemainingQuantity.Mul(l.CostBasisPerUnit)
}

// LotFilter narrows a lot query. Empty fields match everything.
type LotFilter struct {
	HoldingID string
	AccountID string
}

// Matches reports whether lot satisfies the filter.
func (f LotFilter) Matches(lot TaxLot) bool {
	if f.HoldingID != "" && lot.HoldingID != f.HoldingID {
		return false
	}
	if f.AccountID != "" && lot.AccountID != f.AccountID {
		return false
	}
	return true
}
