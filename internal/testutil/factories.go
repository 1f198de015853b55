package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// TestUserID is the owner used by builders unless overridden.
const TestUserID = "test-user"

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// AccountBuilder provides a fluent interface for creating test accounts.
//
// Example usage:
//
//	// Taxable account with defaults
//	account := testutil.NewAccount().Build(t, db)
//
//	// Customized account
//	ira := testutil.NewAccount().
//	    WithName("IRA").
//	    TaxAdvantaged().
//	    Build(t, db)
type AccountBuilder struct {
	ID        string
	UserID    string
	Name      string
	Type      string
	TaxStatus model.TaxStatus
}

// NewAccount creates an AccountBuilder with sensible defaults.
func NewAccount() *AccountBuilder {
	return &AccountBuilder{
		ID:        MakeID(),
		UserID:    TestUserID,
		Name:      MakeName("Account"),
		Type:      "brokerage",
		TaxStatus: model.TaxStatusTaxable,
	}
}

// WithUser sets the owning user.
func (b *AccountBuilder) WithUser(userID string) *AccountBuilder {
	b.UserID = userID
	return b
}

// WithName sets a custom name.
func (b *AccountBuilder) WithName(name string) *AccountBuilder {
	b.Name = name
	return b
}

// TaxAdvantaged marks the account as tax-advantaged.
func (b *AccountBuilder) TaxAdvantaged() *AccountBuilder {
	b.TaxStatus = model.TaxStatusTaxAdvantaged
	b.Type = "ira"
	return b
}

// Build creates the account in the database and returns it.
func (b *AccountBuilder) Build(t *testing.T, db *sql.DB) model.Account {
	t.Helper()

	query := `
		INSERT INTO account (id, user_id, name, type, tax_status)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := db.Exec(query, b.ID, b.UserID, b.Name, b.Type, b.TaxStatus); err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}

	return model.Account{ID: b.ID, UserID: b.UserID, Name: b.Name, Type: b.Type, TaxStatus: b.TaxStatus}
}

// GroupBuilder provides a fluent interface for creating test groups.
//
// Example usage:
//
//	equities := testutil.NewGroup().WithTarget(60).WithThresholds(10, 10).Build(t, db)
type GroupBuilder struct {
	group model.Group
}

// NewGroup creates a GroupBuilder with a 50% target and 10% thresholds.
func NewGroup() *GroupBuilder {
	return &GroupBuilder{group: model.Group{
		ID:                MakeID(),
		UserID:            TestUserID,
		Name:              MakeName("Group"),
		TargetPct:         50,
		UpsideThreshold:   10,
		DownsideThreshold: 10,
	}}
}

// WithUser sets the owning user.
func (b *GroupBuilder) WithUser(userID string) *GroupBuilder {
	b.group.UserID = userID
	return b
}

// WithName sets a custom name.
func (b *GroupBuilder) WithName(name string) *GroupBuilder {
	b.group.Name = name
	return b
}

// WithTarget sets the target percentage of the group.
func (b *GroupBuilder) WithTarget(pct float64) *GroupBuilder {
	b.group.TargetPct = pct
	return b
}

// WithThresholds sets the upside and downside thresholds.
func (b *GroupBuilder) WithThresholds(upside, downside float64) *GroupBuilder {
	b.group.UpsideThreshold = upside
	b.group.DownsideThreshold = downside
	return b
}

// Absolute switches the group to absolute rebalancing.
func (b *GroupBuilder) Absolute() *GroupBuilder {
	b.group.AbsoluteRebalance = true
	return b
}

// Build creates the group in the database and returns it.
func (b *GroupBuilder) Build(t *testing.T, db *sql.DB) model.Group {
	t.Helper()

	g := b.group
	query := `
		INSERT INTO asset_group (id, user_id, name, target_pct, upside_threshold, downside_threshold, absolute_rebalance)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, g.ID, g.UserID, g.Name, g.TargetPct, g.UpsideThreshold, g.DownsideThreshold, g.AbsoluteRebalance)
	if err != nil {
		t.Fatalf("Failed to create test group: %v", err)
	}
	return g
}

// HoldingBuilder provides a fluent interface for creating test holdings.
//
// Example usage:
//
//	vti := testutil.NewHolding("VTI").InGroup(equities.ID, 100).Build(t, db)
type HoldingBuilder struct {
	holding   model.Holding
	targetPct *float64
}

// NewHolding creates a HoldingBuilder for ticker with equity tags.
func NewHolding(ticker string) *HoldingBuilder {
	return &HoldingBuilder{holding: model.Holding{
		ID:        MakeID(),
		UserID:    TestUserID,
		Ticker:    ticker,
		Name:      ticker + " Fund",
		Type:      "equity",
		Subtype:   "index",
		Geography: "us",
		Size:      "large",
		Factor:    "blend",
	}}
}

// WithUser sets the owning user.
func (b *HoldingBuilder) WithUser(userID string) *HoldingBuilder {
	b.holding.UserID = userID
	return b
}

// WithTags sets the type and geography tags.
func (b *HoldingBuilder) WithTags(typ, geography string) *HoldingBuilder {
	b.holding.Type = typ
	b.holding.Geography = geography
	return b
}

// InGroup places the holding in a group with the given in-group target.
func (b *HoldingBuilder) InGroup(groupID string, targetPct float64) *HoldingBuilder {
	b.holding.GroupID = groupID
	b.targetPct = &targetPct
	return b
}

// Build creates the holding (and its target, when set) and returns it.
func (b *HoldingBuilder) Build(t *testing.T, db *sql.DB) model.Holding {
	t.Helper()

	h := b.holding
	var groupID any
	if h.GroupID != "" {
		groupID = h.GroupID
	}
	query := `
		INSERT INTO holding (id, user_id, ticker, name, type, subtype, geography, size, factor, group_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, h.ID, h.UserID, h.Ticker, h.Name, h.Type, h.Subtype, h.Geography, h.Size, h.Factor, groupID)
	if err != nil {
		t.Fatalf("Failed to create test holding: %v", err)
	}

	if b.targetPct != nil {
		h.Target = &model.HoldingTarget{HoldingID: h.ID, GroupID: h.GroupID, TargetPct: *b.targetPct}
		_, err := db.Exec(`INSERT INTO holding_target (holding_id, group_id, target_pct) VALUES (?, ?, ?)`,
			h.ID, h.GroupID, *b.targetPct)
		if err != nil {
			t.Fatalf("Failed to create test holding target: %v", err)
		}
	}
	return h
}

// CreatePrice stores one price point.
func CreatePrice(t *testing.T, db *sql.DB, holdingID string, date time.Time, price float64) model.PricePoint {
	t.Helper()

	_, err := db.Exec(`INSERT INTO price_point (holding_id, date, price) VALUES (?, ?, ?)`,
		holdingID, date.Format("2006-01-02"), price)
	if err != nil {
		t.Fatalf("Failed to create test price: %v", err)
	}
	return model.PricePoint{HoldingID: holdingID, Date: date, Price: price}
}

// TransactionBuilder provides a fluent interface for creating raw transaction
// rows. It writes no lots; use the ledger service to record trades with lot effects.
type TransactionBuilder struct {
	tx model.Transaction
}

// NewTransaction creates a deposit of 1000 into accountID on 2024-01-01.
func NewTransaction(accountID string) *TransactionBuilder {
	return &TransactionBuilder{tx: model.Transaction{
		ID:           MakeID(),
		UserID:       TestUserID,
		AccountID:    accountID,
		Date:         Date(2024, time.January, 1),
		Type:         model.TransactionDeposit,
		Amount:       decimal.NewFromInt(1000),
		Quantity:     decimal.Zero,
		Price:        decimal.Zero,
		Fees:         decimal.Zero,
		RealizedGain: decimal.Zero,
		CreatedAt:    time.Now().UTC(),
	}}
}

// WithUser sets the owning user.
func (b *TransactionBuilder) WithUser(userID string) *TransactionBuilder {
	b.tx.UserID = userID
	return b
}

// WithDate sets the transaction date.
func (b *TransactionBuilder) WithDate(date time.Time) *TransactionBuilder {
	b.tx.Date = date
	return b
}

// WithType sets the transaction type.
func (b *TransactionBuilder) WithType(typ model.TransactionType) *TransactionBuilder {
	b.tx.Type = typ
	return b
}

// WithAmount sets the signed cash amount.
func (b *TransactionBuilder) WithAmount(amount float64) *TransactionBuilder {
	b.tx.Amount = decimal.NewFromFloat(amount)
	return b
}

// WithHolding attributes the transaction to a holding.
func (b *TransactionBuilder) WithHolding(holdingID string) *TransactionBuilder {
	b.tx.HoldingID = holdingID
	return b
}

// WithTrade sets quantity and price, and derives the amount of a fee-free trade.
func (b *TransactionBuilder) WithTrade(quantity, price float64) *TransactionBuilder {
	b.tx.Quantity = decimal.NewFromFloat(quantity)
	b.tx.Price = decimal.NewFromFloat(price)
	b.tx.Amount = b.tx.Quantity.Mul(b.tx.Price)
	if b.tx.Type == model.TransactionBuy {
		b.tx.Amount = b.tx.Amount.Neg()
	}
	return b
}

// Build creates the transaction in the database and returns it.
func (b *TransactionBuilder) Build(t *testing.T, db *sql.DB) model.Transaction {
	t.Helper()

	tx := b.tx
	var holdingID any
	if tx.HoldingID != "" {
		holdingID = tx.HoldingID
	}
	query := `
		INSERT INTO "transaction" (id, user_id, account_id, holding_id, date, type, amount, quantity, price, fees, realized_gain, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query,
		tx.ID, tx.UserID, tx.AccountID, holdingID, tx.Date.Format("2006-01-02"), tx.Type,
		tx.Amount.String(), tx.Quantity.String(), tx.Price.String(), tx.Fees.String(), tx.RealizedGain.String(),
		tx.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		t.Fatalf("Failed to create test transaction: %v", err)
	}
	return tx
}

// CreateLot stores an open lot directly, bypassing the transaction log.
// Used to build stored state that disagrees with the history. An empty
// accountID stores a lot not linked to any account.
func CreateLot(t *testing.T, db *sql.DB, holdingID, accountID string, acquired time.Time, quantity, basis float64) model.TaxLot {
	t.Helper()

	lot := model.TaxLot{
		ID:                MakeID(),
		UserID:            TestUserID,
		HoldingID:         holdingID,
		AccountID:         accountID,
		AcquiredAt:        acquired,
		Quantity:          decimal.NewFromFloat(quantity),
		CostBasisPerUnit:  decimal.NewFromFloat(basis),
		RemainingQuantity: decimal.NewFromFloat(quantity),
	}
	query := `
		INSERT INTO tax_lot (id, user_id, holding_id, account_id, transaction_id, acquired_at,
			quantity, cost_basis_per_unit, remaining_quantity, seq)
		VALUES (?, ?, ?, ?, NULL, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM tax_lot))
	`
	var account any
	if accountID != "" {
		account = accountID
	}
	_, err := db.Exec(query, lot.ID, lot.UserID, lot.HoldingID, account, acquired.Format("2006-01-02"),
		lot.Quantity.String(), lot.CostBasisPerUnit.String(), lot.RemainingQuantity.String())
	if err != nil {
		t.Fatalf("Failed to create test lot: %v", err)
	}
	return lot
}
