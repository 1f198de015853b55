// Package request defines the bodies and query parameters accepted by the API.
package request

import "github.com/shopspring/decimal"

// CreateTransactionRequest records one ledger event.
// Buys and sells use Quantity, Price and Fees; cash events use Amount.
type CreateTransactionRequest struct {
	AccountID string          `json:"accountId" validate:"required,uuid"`
	HoldingID string          `json:"holdingId,omitempty" validate:"omitempty,uuid"`
	Date      string          `json:"date" validate:"required,datetime=2006-01-02"`
	Type      string          `json:"type" validate:"required,oneof=buy sell dividend interest deposit withdrawal"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Fees      decimal.Decimal `json:"fees"`
	Amount    decimal.Decimal `json:"amount"`
}
