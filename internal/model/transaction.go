package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates the events recorded in the append-only transaction log.
type TransactionType string

const (
	TransactionBuy        TransactionType = "buy"
	TransactionSell       TransactionType = "sell"
	TransactionDividend   TransactionType = "dividend"
	TransactionInterest   TransactionType = "interest"
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// IsTrade reports whether the type moves units of a holding.
func (t TransactionType) IsTrade() bool {
	return t == TransactionBuy || t == TransactionSell
}

// IsIncome reports whether the type is investment income.
func (t TransactionType) IsIncome() bool {
	return t == TransactionDividend || t == TransactionInterest
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionBuy, TransactionSell, TransactionDividend,
		TransactionInterest, TransactionDeposit, TransactionWithdrawal:
		return true
	}
	return false
}

// Transaction is an immutable record of one event. Amount is the signed cash
// effect on the account: negative for buys and withdrawals, positive otherwise.
// RealizedGain is only set on sells.
type Transaction struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	AccountID    string          `json:"accountId"`
	HoldingID    string          `json:"holdingId,omitempty"`
	Date         time.Time       `json:"date"`
	Type         TransactionType `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Fees         decimal.Decimal `json:"fees"`
	RealizedGain decimal.Decimal `json:"realizedGain"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// TransactionFilter narrows a transaction query. Empty fields match everything.
type TransactionFilter struct {
	AccountIDs []string
	HoldingID  string
	StartDate  time.Time
	EndDate    time.Time
}
