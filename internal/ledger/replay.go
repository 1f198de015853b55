package ledger

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// Effect is what applying one transaction did to the ledger.
// Lot is set for buys and Sale for sells; cash events leave both nil.
type Effect struct {
	Lot  *model.TaxLot
	Sale *SaleResult
}

// CostBasisPerUnit is the per-unit basis of a buy with fees capitalized.
func CostBasisPerUnit(quantity, price, fees decimal.Decimal) decimal.Decimal {
	if !quantity.IsPositive() {
		return price
	}
	return price.Add(fees.Div(quantity))
}

// Apply applies a transaction. Buys open a lot linked to the transaction id,
// sells deplete lots FIFO, and cash events are accepted without effect.
func (l *Ledger) Apply(tx model.Transaction) (Effect, error) {
	switch tx.Type {
	case model.TransactionBuy:
		if !tx.Price.IsPositive() {
			return Effect{}, apperrors.NewInputError("price", "must be positive, got %s", tx.Price)
		}
		if tx.Fees.IsNegative() {
			return Effect{}, apperrors.NewInputError("fees", "must not be negative, got %s", tx.Fees)
		}
		lot, err := l.buy(tx.ID, tx.HoldingID, tx.AccountID, tx.Date, tx.Quantity, CostBasisPerUnit(tx.Quantity, tx.Price, tx.Fees))
		if err != nil {
			return Effect{}, err
		}
		return Effect{Lot: &lot}, nil
	case model.TransactionSell:
		sale, err := l.ApplySell(tx.HoldingID, tx.AccountID, tx.Date, tx.Quantity, tx.Price, tx.Fees)
		if err != nil {
			return Effect{}, err
		}
		return Effect{Sale: &sale}, nil
	case model.TransactionDividend, model.TransactionInterest,
		model.TransactionDeposit, model.TransactionWithdrawal:
		return Effect{}, nil
	}
	return Effect{}, apperrors.NewInputError("type", "unknown transaction type %q", tx.Type)
}

// SortTransactions orders transactions by date, then creation time.
func SortTransactions(txs []model.Transaction) {
	slices.SortStableFunc(txs, func(a, b model.Transaction) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// Replay rebuilds a ledger from empty state by applying txs in date order.
// It returns the ledger and the sale results in the order they occurred.
func Replay(txs []model.Transaction) (*Ledger, []SaleResult, error) {
	ordered := slices.Clone(txs)
	SortTransactions(ordered)

	l := New(nil)
	var sales []SaleResult
	for _, tx := range ordered {
		effect, err := l.Apply(tx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to replay transaction %s: %w", tx.ID, err)
		}
		if effect.Sale != nil {
			sales = append(sales, *effect.Sale)
		}
	}
	return l, sales, nil
}
