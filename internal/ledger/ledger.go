// Package ledger maintains open tax lots per (holding, account) pair and
// depletes them oldest-first when units are sold.
//
// A Ledger is an in-memory working set. Callers load the lots they need,
// apply operations and persist the resulting changes themselves; the ledger
// never talks to storage.
package ledger

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// LongTermDays is the holding period at which a lot's gain becomes long-term.
const LongTermDays = 365

// Term buckets a depleted slice by how long its lot was held.
type Term string

const (
	ShortTerm Term = "short"
	LongTerm  Term = "long"
)

// TermFor classifies a holding period of heldDays.
func TermFor(heldDays int) Term {
	if heldDays >= LongTermDays {
		return LongTerm
	}
	return ShortTerm
}

// HeldDays returns the number of whole days between acquisition and sale.
func HeldDays(acquiredAt, soldAt time.Time) int {
	a := truncateDay(acquiredAt)
	s := truncateDay(soldAt)
	return int(s.Sub(a).Hours() / 24)
}

// Slice is the part of one lot consumed by a sale.
type Slice struct {
	LotID         string          `json:"lotId"`
	TransactionID string          `json:"transactionId,omitempty"`
	AcquiredAt    time.Time       `json:"acquiredAt"`
	Quantity      decimal.Decimal `json:"quantity"`
	CostBasis     decimal.Decimal `json:"costBasis"`
	Proceeds      decimal.Decimal `json:"proceeds"`
	Fees          decimal.Decimal `json:"fees"`
	HeldDays      int             `json:"heldDays"`
	Term          Term            `json:"term"`
}

// Gain is the realized gain of the slice after its share of fees.
func (s Slice) Gain() decimal.Decimal {
	return s.Proceeds.Sub(s.Fees).Sub(s.CostBasis)
}

// SaleResult describes the effect of a sell on the ledger.
type SaleResult struct {
	HoldingID         string          `json:"holdingId"`
	AccountID         string          `json:"accountId"`
	Date              time.Time       `json:"date"`
	Quantity          decimal.Decimal `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	Fees              decimal.Decimal `json:"fees"`
	Proceeds          decimal.Decimal `json:"proceeds"`
	CostBasisConsumed decimal.Decimal `json:"costBasisConsumed"`
	RealizedGain      decimal.Decimal `json:"realizedGain"`
	Slices            []Slice         `json:"slices"`
	ClosedLotIDs      []string        `json:"closedLotIds"`
}

// GainByTerm splits the realized gain into short-term and long-term parts.
func (r SaleResult) GainByTerm() (short, long decimal.Decimal) {
	for _, s := range r.Slices {
		if s.Term == LongTerm {
			long = long.Add(s.Gain())
		} else {
			short = short.Add(s.Gain())
		}
	}
	return short, long
}

// Ledger holds the open lots of a working set.
type Ledger struct {
	lots    []model.TaxLot
	nextSeq int64
}

// New creates a ledger seeded with lots. Closed lots are ignored.
func New(lots []model.TaxLot) *Ledger {
	l := &Ledger{nextSeq: 1}
	for _, lot := range lots {
		if !lot.IsOpen() {
			continue
		}
		l.lots = append(l.lots, lot)
		if lot.Seq >= l.nextSeq {
			l.nextSeq = lot.Seq + 1
		}
	}
	return l
}

// Clone returns an independent copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{lots: slices.Clone(l.lots), nextSeq: l.nextSeq}
}

// ApplyBuy opens a new lot. Quantity and cost basis must be strictly positive.
func (l *Ledger) ApplyBuy(holdingID, accountID string, date time.Time, quantity, costBasisPerUnit decimal.Decimal) (model.TaxLot, error) {
	return l.buy("", holdingID, accountID, date, quantity, costBasisPerUnit)
}

func (l *Ledger) buy(transactionID, holdingID, accountID string, date time.Time, quantity, costBasisPerUnit decimal.Decimal) (model.TaxLot, error) {
	if err := validatePair(holdingID, accountID); err != nil {
		return model.TaxLot{}, err
	}
	if !quantity.IsPositive() {
		return model.TaxLot{}, apperrors.NewInputError("quantity", "must be positive, got %s", quantity)
	}
	if !costBasisPerUnit.IsPositive() {
		return model.TaxLot{}, apperrors.NewInputError("costBasisPerUnit", "must be positive, got %s", costBasisPerUnit)
	}

	lot := model.TaxLot{
		ID:                uuid.New().String(),
		HoldingID:         holdingID,
		AccountID:         accountID,
		TransactionID:     transactionID,
		AcquiredAt:        truncateDay(date),
		Quantity:          quantity,
		CostBasisPerUnit:  costBasisPerUnit,
		RemainingQuantity: quantity,
		Seq:               l.nextSeq,
	}
	l.nextSeq++
	l.lots = append(l.lots, lot)
	return lot, nil
}

// ApplySell depletes open lots of the pair oldest-first until quantity is met.
// Only lots acquired on or before date count. If fewer units are open the
// sale fails with a *apperrors.LotError and no lot is touched.
func (l *Ledger) ApplySell(holdingID, accountID string, date time.Time, quantity, price, fees decimal.Decimal) (SaleResult, error) {
	if err := validatePair(holdingID, accountID); err != nil {
		return SaleResult{}, err
	}
	if !quantity.IsPositive() {
		return SaleResult{}, apperrors.NewInputError("quantity", "must be positive, got %s", quantity)
	}
	if price.IsNegative() {
		return SaleResult{}, apperrors.NewInputError("price", "must not be negative, got %s", price)
	}
	if fees.IsNegative() {
		return SaleResult{}, apperrors.NewInputError("fees", "must not be negative, got %s", fees)
	}

	soldAt := truncateDay(date)
	var idx []int
	available := decimal.Zero
	for _, i := range l.fifoIndexes(model.LotFilter{HoldingID: holdingID, AccountID: accountID}) {
		// Lots acquired after the sale date cannot be sold.
		if l.lots[i].AcquiredAt.After(soldAt) {
			continue
		}
		idx = append(idx, i)
		available = available.Add(l.lots[i].RemainingQuantity)
	}
	if available.LessThan(quantity) {
		return SaleResult{}, &apperrors.LotError{
			HoldingID: holdingID,
			AccountID: accountID,
			Requested: quantity.String(),
			Available: available.String(),
		}
	}

	result := SaleResult{
		HoldingID: holdingID,
		AccountID: accountID,
		Date:      soldAt,
		Quantity:  quantity,
		Price:     price,
		Fees:      fees,
		Proceeds:  quantity.Mul(price),
	}

	// Plan every slice before mutating anything.
	remaining := quantity
	feesLeft := fees
	planned := make(map[int]decimal.Decimal)
	for _, i := range idx {
		if !remaining.IsPositive() {
			break
		}
		lot := l.lots[i]
		take := decimal.Min(lot.RemainingQuantity, remaining)
		remaining = remaining.Sub(take)

		sliceFees := fees.Mul(take).Div(quantity).Round(8)
		if !remaining.IsPositive() {
			sliceFees = feesLeft
		}
		feesLeft = feesLeft.Sub(sliceFees)

		held := HeldDays(lot.AcquiredAt, soldAt)
		slice := Slice{
			LotID:         lot.ID,
			TransactionID: lot.TransactionID,
			AcquiredAt:    lot.AcquiredAt,
			Quantity:      take,
			CostBasis:     take.Mul(lot.CostBasisPerUnit),
			Proceeds:      take.Mul(price),
			Fees:          sliceFees,
			HeldDays:      held,
			Term:          TermFor(held),
		}
		result.Slices = append(result.Slices, slice)
		result.CostBasisConsumed = result.CostBasisConsumed.Add(slice.CostBasis)
		planned[i] = lot.RemainingQuantity.Sub(take)
	}
	result.RealizedGain = result.Proceeds.Sub(fees).Sub(result.CostBasisConsumed)

	// Commit.
	kept := l.lots[:0]
	for i, lot := range l.lots {
		if left, ok := planned[i]; ok {
			if !left.IsPositive() {
				result.ClosedLotIDs = append(result.ClosedLotIDs, lot.ID)
				continue
			}
			lot.RemainingQuantity = left
		}
		kept = append(kept, lot)
	}
	l.lots = kept

	return result, nil
}

// OpenLots returns the open lots matching filter in FIFO order.
func (l *Ledger) OpenLots(filter model.LotFilter) []model.TaxLot {
	idx := l.fifoIndexes(filter)
	out := make([]model.TaxLot, 0, len(idx))
	for _, i := range idx {
		out = append(out, l.lots[i])
	}
	return out
}

// Lot returns the open lot with the given id.
func (l *Ledger) Lot(id string) (model.TaxLot, bool) {
	for _, lot := range l.lots {
		if lot.ID == id {
			return lot, true
		}
	}
	return model.TaxLot{}, false
}

// Quantity returns the total open quantity matching filter.
func (l *Ledger) Quantity(filter model.LotFilter) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		if filter.Matches(lot) {
			total = total.Add(lot.RemainingQuantity)
		}
	}
	return total
}

// ValueAt sums remaining quantity times price over the matching open lots.
// The boolean is false when a matching lot's holding has no price; such lots
// contribute zero.
func (l *Ledger) ValueAt(filter model.LotFilter, price model.PriceFunc) (float64, bool) {
	value := 0.0
	priced := true
	for _, lot := range l.lots {
		if !filter.Matches(lot) {
			continue
		}
		p, ok := price(lot.HoldingID)
		if !ok {
			priced = false
			continue
		}
		value += lot.RemainingQuantity.InexactFloat64() * p
	}
	return value, priced
}

// CostBasisAt sums remaining quantity times cost basis per unit over the matching open lots.
func (l *Ledger) CostBasisAt(filter model.LotFilter) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.lots {
		if filter.Matches(lot) {
			total = total.Add(lot.CostBasis())
		}
	}
	return total
}

// HoldingIDs returns the distinct holdings with open lots, sorted.
func (l *Ledger) HoldingIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, lot := range l.lots {
		if _, ok := seen[lot.HoldingID]; ok {
			continue
		}
		seen[lot.HoldingID] = struct{}{}
		ids = append(ids, lot.HoldingID)
	}
	slices.Sort(ids)
	return ids
}

func (l *Ledger) fifoIndexes(filter model.LotFilter) []int {
	var idx []int
	for i, lot := range l.lots {
		if filter.Matches(lot) {
			idx = append(idx, i)
		}
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		la, lb := l.lots[a], l.lots[b]
		if c := la.AcquiredAt.Compare(lb.AcquiredAt); c != 0 {
			return c
		}
		switch {
		case la.Seq < lb.Seq:
			return -1
		case la.Seq > lb.Seq:
			return 1
		}
		return 0
	})
	return idx
}

func validatePair(holdingID, accountID string) error {
	if holdingID == "" {
		return apperrors.NewInputError("holdingId", "is required")
	}
	if accountID == "" {
		return apperrors.NewInputError("accountId", "is required")
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
