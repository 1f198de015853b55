package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestApplySell_FIFO(t *testing.T) {
	l := New(nil)
	lot1, err := l.ApplyBuy("vti", "acct", day("2024-01-01"), d("10"), d("1"))
	require.NoError(t, err)
	lot2, err := l.ApplyBuy("vti", "acct", day("2024-06-01"), d("10"), d("2"))
	require.NoError(t, err)

	sale, err := l.ApplySell("vti", "acct", day("2024-09-01"), d("15"), d("3"), decimal.Zero)
	require.NoError(t, err)

	assert.True(t, sale.CostBasisConsumed.Equal(d("20")), "cost basis consumed = %s", sale.CostBasisConsumed)
	assert.True(t, sale.Proceeds.Equal(d("45")))
	assert.True(t, sale.RealizedGain.Equal(d("25")))
	assert.Equal(t, []string{lot1.ID}, sale.ClosedLotIDs)

	open := l.OpenLots(model.LotFilter{HoldingID: "vti", AccountID: "acct"})
	require.Len(t, open, 1)
	assert.Equal(t, lot2.ID, open[0].ID)
	assert.True(t, open[0].RemainingQuantity.Equal(d("5")))

	require.Len(t, sale.Slices, 2)
	assert.Equal(t, lot1.ID, sale.Slices[0].LotID)
	assert.True(t, sale.Slices[0].Quantity.Equal(d("10")))
	assert.Equal(t, lot2.ID, sale.Slices[1].LotID)
	assert.True(t, sale.Slices[1].Quantity.Equal(d("5")))
}

func TestApplySell_TieBrokenByInsertionOrder(t *testing.T) {
	l := New(nil)
	first, err := l.ApplyBuy("vti", "acct", day("2024-01-01"), d("1"), d("10"))
	require.NoError(t, err)
	_, err = l.ApplyBuy("vti", "acct", day("2024-01-01"), d("1"), d("20"))
	require.NoError(t, err)

	sale, err := l.ApplySell("vti", "acct", day("2024-02-01"), d("1"), d("15"), decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, sale.ClosedLotIDs)
	assert.True(t, sale.RealizedGain.Equal(d("5")))
}

func TestApplySell_InsufficientLotsLeavesStateUnchanged(t *testing.T) {
	l := New(nil)
	_, err := l.ApplyBuy("vti", "acct", day("2024-01-01"), d("10"), d("1"))
	require.NoError(t, err)
	_, err = l.ApplyBuy("vti", "other", day("2024-01-01"), d("100"), d("1"))
	require.NoError(t, err)
	before := l.OpenLots(model.LotFilter{})

	_, err = l.ApplySell("vti", "acct", day("2024-02-01"), d("10.5"), d("2"), decimal.Zero)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientLots))

	var lotErr *apperrors.LotError
	require.ErrorAs(t, err, &lotErr)
	assert.Equal(t, "vti", lotErr.HoldingID)
	assert.Equal(t, "acct", lotErr.AccountID)
	assert.Equal(t, "10", lotErr.Available)

	assert.Equal(t, before, l.OpenLots(model.LotFilter{}))
}

func TestApplySell_IgnoresLotsAcquiredAfterSaleDate(t *testing.T) {
	l := New(nil)
	_, err := l.ApplyBuy("vti", "acct", day("2024-06-01"), d("10"), d("1"))
	require.NoError(t, err)
	before := l.OpenLots(model.LotFilter{})

	_, err = l.ApplySell("vti", "acct", day("2024-01-01"), d("5"), d("2"), decimal.Zero)
	require.ErrorIs(t, err, apperrors.ErrInsufficientLots)
	var lotErr *apperrors.LotError
	require.ErrorAs(t, err, &lotErr)
	assert.Equal(t, "0", lotErr.Available)
	assert.Equal(t, before, l.OpenLots(model.LotFilter{}))

	// A lot acquired on the sale date is available.
	early, err := l.ApplyBuy("vti", "acct", day("2024-03-01"), d("3"), d("1"))
	require.NoError(t, err)
	sale, err := l.ApplySell("vti", "acct", day("2024-03-01"), d("3"), d("2"), decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, []string{early.ID}, sale.ClosedLotIDs)
	assert.Equal(t, 0, sale.Slices[0].HeldDays)

	_, err = l.ApplySell("vti", "acct", day("2024-05-31"), d("1"), d("2"), decimal.Zero)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientLots)
	assert.True(t, l.Quantity(model.LotFilter{}).Equal(d("10")))
}

func TestApplySell_FeesReduceGain(t *testing.T) {
	l := New(nil)
	_, err := l.ApplyBuy("vti", "acct", day("2023-01-01"), d("4"), d("10"))
	require.NoError(t, err)
	_, err = l.ApplyBuy("vti", "acct", day("2024-01-01"), d("4"), d("10"))
	require.NoError(t, err)

	sale, err := l.ApplySell("vti", "acct", day("2024-02-01"), d("6"), d("12"), d("3"))
	require.NoError(t, err)
	assert.True(t, sale.RealizedGain.Equal(d("9")), "realized gain = %s", sale.RealizedGain)

	feeSum := decimal.Zero
	gainSum := decimal.Zero
	for _, s := range sale.Slices {
		feeSum = feeSum.Add(s.Fees)
		gainSum = gainSum.Add(s.Gain())
	}
	assert.True(t, feeSum.Equal(d("3")))
	assert.True(t, gainSum.Equal(sale.RealizedGain))

	short, long := sale.GainByTerm()
	assert.Equal(t, LongTerm, sale.Slices[0].Term)
	assert.Equal(t, ShortTerm, sale.Slices[1].Term)
	assert.True(t, short.Add(long).Equal(sale.RealizedGain))
}

func TestApplyBuy_RejectsNonPositive(t *testing.T) {
	tests := []struct {
		name  string
		qty   string
		basis string
		field string
	}{
		{"zero quantity", "0", "1", "quantity"},
		{"negative quantity", "-1", "1", "quantity"},
		{"zero basis", "1", "0", "costBasisPerUnit"},
		{"negative basis", "1", "-5", "costBasisPerUnit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(nil)
			_, err := l.ApplyBuy("vti", "acct", day("2024-01-01"), d(tt.qty), d(tt.basis))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

			var inputErr *apperrors.InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tt.field, inputErr.Field)
			assert.Empty(t, l.OpenLots(model.LotFilter{}))
		})
	}
}

func TestTermFor(t *testing.T) {
	assert.Equal(t, ShortTerm, TermFor(364))
	assert.Equal(t, LongTerm, TermFor(365))
	assert.Equal(t, 366, HeldDays(day("2024-01-01"), day("2025-01-01")))
}

func TestNoNegativeRemainingQuantity(t *testing.T) {
	l := New(nil)
	ops := []struct {
		buy bool
		qty string
	}{
		{true, "5"}, {false, "3"}, {true, "2"}, {false, "4"}, {false, "1"}, {false, "1"}, {true, "7"}, {false, "7"},
	}
	date := day("2024-01-01")
	for i, op := range ops {
		date = date.AddDate(0, 0, 1)
		if op.buy {
			_, err := l.ApplyBuy("vti", "acct", date, d(op.qty), d("1"))
			require.NoError(t, err)
		} else {
			_, err := l.ApplySell("vti", "acct", date, d(op.qty), d("1"), decimal.Zero)
			if err != nil {
				assert.ErrorIs(t, err, apperrors.ErrInsufficientLots, "op %d", i)
			}
		}
		for _, lot := range l.OpenLots(model.LotFilter{}) {
			assert.True(t, lot.RemainingQuantity.IsPositive(), "op %d left lot %s at %s", i, lot.ID, lot.RemainingQuantity)
		}
	}
	assert.True(t, l.Quantity(model.LotFilter{}).Equal(d("0")))
}

func TestValueAtAndCostBasisAt(t *testing.T) {
	l := New(nil)
	_, err := l.ApplyBuy("vti", "a", day("2024-01-01"), d("10"), d("100"))
	require.NoError(t, err)
	_, err = l.ApplyBuy("vti", "b", day("2024-01-01"), d("5"), d("90"))
	require.NoError(t, err)
	_, err = l.ApplyBuy("bnd", "a", day("2024-01-01"), d("2"), d("50"))
	require.NoError(t, err)

	prices := func(id string) (float64, bool) {
		if id == "vti" {
			return 110, true
		}
		return 0, false
	}

	value, ok := l.ValueAt(model.LotFilter{HoldingID: "vti"}, prices)
	assert.True(t, ok)
	assert.InDelta(t, 1650, value, 1e-9)

	value, ok = l.ValueAt(model.LotFilter{AccountID: "a"}, prices)
	assert.False(t, ok)
	assert.InDelta(t, 1100, value, 1e-9)

	assert.True(t, l.CostBasisAt(model.LotFilter{HoldingID: "vti", AccountID: "b"}).Equal(d("450")))
	assert.Equal(t, []string{"bnd", "vti"}, l.HoldingIDs())
}

func TestNew_SkipsClosedLotsAndContinuesSequence(t *testing.T) {
	l := New([]model.TaxLot{
		{ID: "open", HoldingID: "vti", AccountID: "a", AcquiredAt: day("2024-01-01"), Quantity: d("5"), RemainingQuantity: d("5"), CostBasisPerUnit: d("1"), Seq: 7},
		{ID: "closed", HoldingID: "vti", AccountID: "a", AcquiredAt: day("2023-01-01"), Quantity: d("5"), RemainingQuantity: d("0"), CostBasisPerUnit: d("1"), Seq: 3},
	})
	assert.Len(t, l.OpenLots(model.LotFilter{}), 1)

	lot, err := l.ApplyBuy("vti", "a", day("2024-01-01"), d("1"), d("1"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), lot.Seq)

	clone := l.Clone()
	_, err = clone.ApplySell("vti", "a", day("2024-02-01"), d("6"), d("1"), decimal.Zero)
	require.NoError(t, err)
	assert.Len(t, l.OpenLots(model.LotFilter{}), 2)
	assert.Empty(t, clone.OpenLots(model.LotFilter{}))
}
