package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/ledger"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/repository"
)

// TradeInput describes a buy or sell to record.
type TradeInput struct {
	AccountID string
	HoldingID string
	Date      time.Time
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Fees      decimal.Decimal
}

// CashFlowInput describes a dividend, interest, deposit or withdrawal to record.
// Amount is always positive; the sign is derived from Type.
type CashFlowInput struct {
	AccountID string
	HoldingID string // optional, attributes income to a holding
	Date      time.Time
	Type      model.TransactionType
	Amount    decimal.Decimal
}

// SellResult is the stored sell transaction together with the lots it depleted.
type SellResult struct {
	Transaction model.Transaction `json:"transaction"`
	Sale        ledger.SaleResult `json:"sale"`
}

// BuyResult is the stored buy transaction together with the lot it opened.
type BuyResult struct {
	Transaction model.Transaction `json:"transaction"`
	Lot         model.TaxLot      `json:"lot"`
}

// LedgerService applies real buys, sells and cash events to the store.
// Every write runs in one SQL transaction: lot changes and the transaction
// record are committed together or not at all.
type LedgerService struct {
	db              *sql.DB
	accountRepo     *repository.AccountRepository
	holdingRepo     *repository.HoldingRepository
	lotRepo         *repository.LotRepository
	transactionRepo *repository.TransactionRepository
	logger          *log.Logger
}

// NewLedgerService creates a new LedgerService with the provided dependencies.
func NewLedgerService(
	db *sql.DB,
	accountRepo *repository.AccountRepository,
	holdingRepo *repository.HoldingRepository,
	lotRepo *repository.LotRepository,
	transactionRepo *repository.TransactionRepository,
	logger *log.Logger,
) *LedgerService {
	return &LedgerService{
		db:              db,
		accountRepo:     accountRepo,
		holdingRepo:     holdingRepo,
		lotRepo:         lotRepo,
		transactionRepo: transactionRepo,
		logger:          logger,
	}
}

// txRepos is the set of repositories bound to one SQL transaction.
type txRepos struct {
	accounts     *repository.AccountRepository
	holdings     *repository.HoldingRepository
	lots         *repository.LotRepository
	transactions *repository.TransactionRepository
}

func (s *LedgerService) bind(tx *sql.Tx) txRepos {
	return txRepos{
		accounts:     s.accountRepo.WithTx(tx),
		holdings:     s.holdingRepo.WithTx(tx),
		lots:         s.lotRepo.WithTx(tx),
		transactions: s.transactionRepo.WithTx(tx),
	}
}

// checkOwnership verifies the account (and holding, when set) belong to userID.
func checkOwnership(ctx context.Context, repos txRepos, userID, accountID, holdingID string) error {
	if _, err := repos.accounts.GetAccount(ctx, userID, accountID); err != nil {
		return err
	}
	if holdingID != "" {
		if _, err := repos.holdings.GetHolding(ctx, userID, holdingID); err != nil {
			return err
		}
	}
	return nil
}

// checkTradeDate rejects a trade dated before a sell already recorded for the
// (holding, account) pair. Stored lots are only valid when trades arrive in
// the order replay applies them.
func checkTradeDate(ctx context.Context, repos txRepos, userID string, in TradeInput) error {
	y, m, d := in.Date.UTC().Date()
	later, err := repos.transactions.GetTransactions(ctx, userID, model.TransactionFilter{
		AccountIDs: []string{in.AccountID},
		HoldingID:  in.HoldingID,
		StartDate:  time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return err
	}
	for i := len(later) - 1; i >= 0; i-- {
		if later[i].Type == model.TransactionSell {
			return apperrors.NewInputError("date", "%s is before the sell recorded on %s",
				in.Date.Format(repository.DateLayout), later[i].Date.Format(repository.DateLayout))
		}
	}
	return nil
}

// RecordBuy stores a buy and opens its lot. Fees are capitalized into the
// lot's cost basis per unit.
//
// Parameters:
//   - ctx: Context for cancellation
//   - userID: Owner of the account and holding
//   - in: Account, holding, date, quantity, price and fees of the buy
//
// Returns:
//   - BuyResult with the stored transaction (amount = -(quantity*price + fees)) and the new lot
//   - error wrapping apperrors.ErrInvalidInput (also when dated before a recorded sell
//     of the pair), apperrors.ErrAccountNotFound or apperrors.ErrHoldingNotFound;
//     nothing is stored in that case
func (s *LedgerService) RecordBuy(ctx context.Context, userID string, in TradeInput) (BuyResult, error) {
	if in.Fees.IsNegative() {
		return BuyResult{}, apperrors.NewInputError("fees", "must not be negative, got %s", in.Fees)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BuyResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	repos := s.bind(tx)
	if err := checkOwnership(ctx, repos, userID, in.AccountID, in.HoldingID); err != nil {
		return BuyResult{}, err
	}
	if err := checkTradeDate(ctx, repos, userID, in); err != nil {
		return BuyResult{}, err
	}

	lots, err := repos.lots.GetOpenLots(ctx, userID, model.LotFilter{HoldingID: in.HoldingID, AccountID: in.AccountID})
	if err != nil {
		return BuyResult{}, err
	}
	maxSeq, err := repos.lots.MaxSeq(ctx, userID)
	if err != nil {
		return BuyResult{}, err
	}

	record := newTransaction(userID, in.AccountID, in.HoldingID, in.Date, model.TransactionBuy)
	record.Quantity = in.Quantity
	record.Price = in.Price
	record.Fees = in.Fees
	record.Amount = in.Quantity.Mul(in.Price).Add(in.Fees).Neg()

	effect, err := ledger.New(lots).Apply(record)
	if err != nil {
		return BuyResult{}, err
	}
	lot := *effect.Lot
	lot.UserID = userID
	lot.Seq = maxSeq + 1

	if err := repos.transactions.InsertTransaction(ctx, record); err != nil {
		return BuyResult{}, err
	}
	if err := repos.lots.InsertLot(ctx, lot); err != nil {
		return BuyResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return BuyResult{}, fmt.Errorf("failed to commit buy: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("transaction_id", record.ID).Str("lot_id", lot.ID).
		Str("holding_id", in.HoldingID).Str("account_id", in.AccountID).Msg("buy recorded")
	return BuyResult{Transaction: record, Lot: lot}, nil
}

// RecordSell stores a sell and depletes the open lots of the (holding, account)
// pair oldest-first. The realized gain is written onto the transaction.
//
// Parameters:
//   - ctx: Context for cancellation
//   - userID: Owner of the account and holding
//   - in: Account, holding, date, quantity, price and fees of the sell
//
// Returns:
//   - SellResult with the stored transaction (amount = quantity*price - fees) and the per-lot slices
//   - error wrapping apperrors.ErrInsufficientLots (as *apperrors.LotError) when fewer units
//     are open on the sale date, apperrors.ErrInvalidInput (also when dated before a recorded
//     sell of the pair), or a not-found error; nothing is stored in that case
func (s *LedgerService) RecordSell(ctx context.Context, userID string, in TradeInput) (SellResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SellResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	repos := s.bind(tx)
	if err := checkOwnership(ctx, repos, userID, in.AccountID, in.HoldingID); err != nil {
		return SellResult{}, err
	}
	if err := checkTradeDate(ctx, repos, userID, in); err != nil {
		return SellResult{}, err
	}

	lots, err := repos.lots.GetOpenLots(ctx, userID, model.LotFilter{HoldingID: in.HoldingID, AccountID: in.AccountID})
	if err != nil {
		return SellResult{}, err
	}

	record := newTransaction(userID, in.AccountID, in.HoldingID, in.Date, model.TransactionSell)
	record.Quantity = in.Quantity
	record.Price = in.Price
	record.Fees = in.Fees
	record.Amount = in.Quantity.Mul(in.Price).Sub(in.Fees)

	led := ledger.New(lots)
	effect, err := led.Apply(record)
	if err != nil {
		return SellResult{}, err
	}
	sale := *effect.Sale
	record.RealizedGain = sale.RealizedGain

	if err := repos.transactions.InsertTransaction(ctx, record); err != nil {
		return SellResult{}, err
	}
	closed := make(map[string]struct{}, len(sale.ClosedLotIDs))
	for _, id := range sale.ClosedLotIDs {
		closed[id] = struct{}{}
		if err := repos.lots.DeleteLot(ctx, id); err != nil {
			return SellResult{}, err
		}
	}
	for _, slice := range sale.Slices {
		if _, ok := closed[slice.LotID]; ok {
			continue
		}
		lot, ok := led.Lot(slice.LotID)
		if !ok {
			continue
		}
		if err := repos.lots.UpdateRemaining(ctx, lot); err != nil {
			return SellResult{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return SellResult{}, fmt.Errorf("failed to commit sell: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("transaction_id", record.ID).
		Str("holding_id", in.HoldingID).Str("account_id", in.AccountID).
		Str("realized_gain", sale.RealizedGain.StringFixed(2)).Int("lots_closed", len(sale.ClosedLotIDs)).
		Msg("sell recorded")
	return SellResult{Transaction: record, Sale: sale}, nil
}

// RecordCashFlow stores a dividend, interest, deposit or withdrawal.
// Withdrawals are stored with a negative amount, everything else positive.
func (s *LedgerService) RecordCashFlow(ctx context.Context, userID string, in CashFlowInput) (model.Transaction, error) {
	if !in.Type.Valid() || in.Type.IsTrade() {
		return model.Transaction{}, apperrors.NewInputError("type", "%q is not a cash flow type", in.Type)
	}
	if !in.Amount.IsPositive() {
		return model.Transaction{}, apperrors.NewInputError("amount", "must be positive, got %s", in.Amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	repos := s.bind(tx)
	if err := checkOwnership(ctx, repos, userID, in.AccountID, in.HoldingID); err != nil {
		return model.Transaction{}, err
	}

	record := newTransaction(userID, in.AccountID, in.HoldingID, in.Date, in.Type)
	record.Amount = in.Amount
	if in.Type == model.TransactionWithdrawal {
		record.Amount = in.Amount.Neg()
	}

	if err := repos.transactions.InsertTransaction(ctx, record); err != nil {
		return model.Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Transaction{}, fmt.Errorf("failed to commit cash flow: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("transaction_id", record.ID).Str("type", string(in.Type)).Msg("cash flow recorded")
	return record, nil
}

// GetOpenLots returns the open lots of a user in FIFO order.
func (s *LedgerService) GetOpenLots(ctx context.Context, userID string, filter model.LotFilter) ([]model.TaxLot, error) {
	return s.lotRepo.GetOpenLots(ctx, userID, filter)
}

// GetTransactions returns the transaction history of a user in replay order.
func (s *LedgerService) GetTransactions(ctx context.Context, userID string, filter model.TransactionFilter) ([]model.Transaction, error) {
	if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() && filter.StartDate.After(filter.EndDate) {
		return nil, apperrors.ErrInvalidDateRange
	}
	return s.transactionRepo.GetTransactions(ctx, userID, filter)
}

func newTransaction(userID, accountID, holdingID string, date time.Time, typ model.TransactionType) model.Transaction {
	y, m, d := date.UTC().Date()
	return model.Transaction{
		ID:           uuid.New().String(),
		UserID:       userID,
		AccountID:    accountID,
		HoldingID:    holdingID,
		Date:         time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Type:         typ,
		Quantity:     decimal.Zero,
		Price:        decimal.Zero,
		Fees:         decimal.Zero,
		RealizedGain: decimal.Zero,
		CreatedAt:    time.Now().UTC(),
	}
}
