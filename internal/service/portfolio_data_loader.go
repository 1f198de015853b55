package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/pricing"
	"github.com/ndewijer/portfolio-rebalancer/internal/repository"
)

// DataLoaderService centralizes the loading of all data required for rebalance and
// performance calculations. It gathers a user's accounts, groups, holdings, open lots,
// transactions and prices in one call so the engine packages only see typed,
// pre-fetched records.
type DataLoaderService struct {
	accountRepo     *repository.AccountRepository
	groupRepo       *repository.GroupRepository
	holdingRepo     *repository.HoldingRepository
	lotRepo         *repository.LotRepository
	transactionRepo *repository.TransactionRepository
	priceRepo       *repository.PriceRepository
}

// NewDataLoaderService creates a new DataLoaderService with the provided dependencies.
func NewDataLoaderService(
	accountRepo *repository.AccountRepository,
	groupRepo *repository.GroupRepository,
	holdingRepo *repository.HoldingRepository,
	lotRepo *repository.LotRepository,
	transactionRepo *repository.TransactionRepository,
	priceRepo *repository.PriceRepository,
) *DataLoaderService {
	return &DataLoaderService{
		accountRepo:     accountRepo,
		groupRepo:       groupRepo,
		holdingRepo:     holdingRepo,
		lotRepo:         lotRepo,
		transactionRepo: transactionRepo,
		priceRepo:       priceRepo,
	}
}

// PortfolioData contains all data needed for portfolio calculations of one user.
//
// Fields are organized by scope:
//   - Structure: Accounts, Groups, Holdings (targets attached)
//   - State: Lots (open only), Transactions (full ordered history up to the load date)
//   - Market data: Prices
//   - Lookups: AccountByID, HoldingByID
type PortfolioData struct {
	Accounts     []model.Account
	Groups       []model.Group
	Holdings     []model.Holding
	Lots         []model.TaxLot
	Transactions []model.Transaction
	Prices       *pricing.Book
	AccountByID  map[string]model.Account
	HoldingByID  map[string]model.Holding
}

// LoadForUser loads everything a user owns, with transactions and prices
// limited to those dated on or before asOf.
//
// The independent reads run concurrently; prices are loaded afterwards because
// they are keyed by the holdings just read.
//
// Parameters:
//   - ctx: Context for cancellation
//   - userID: Owner of the data
//   - asOf: Last date of transactions and prices to include (zero means no limit)
//
// Returns:
//   - *PortfolioData with empty (non-nil) slices for a user without data
//   - error if any read fails
func (s *DataLoaderService) LoadForUser(ctx context.Context, userID string, asOf time.Time) (*PortfolioData, error) {
	data := &PortfolioData{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := s.accountRepo.GetAccounts(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load accounts: %w", err)
		}
		data.Accounts = accounts
		return nil
	})
	g.Go(func() error {
		groups, err := s.groupRepo.GetGroups(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load groups: %w", err)
		}
		data.Groups = groups
		return nil
	})
	g.Go(func() error {
		holdings, err := s.holdingRepo.GetHoldings(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load holdings: %w", err)
		}
		data.Holdings = holdings
		return nil
	})
	g.Go(func() error {
		lots, err := s.lotRepo.GetOpenLots(gctx, userID, model.LotFilter{})
		if err != nil {
			return fmt.Errorf("failed to load lots: %w", err)
		}
		data.Lots = lots
		return nil
	})
	g.Go(func() error {
		txs, err := s.transactionRepo.GetTransactions(gctx, userID, model.TransactionFilter{EndDate: asOf})
		if err != nil {
			return fmt.Errorf("failed to load transactions: %w", err)
		}
		data.Transactions = txs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	holdingIDs := make([]string, len(data.Holdings))
	data.HoldingByID = make(map[string]model.Holding, len(data.Holdings))
	for i, h := range data.Holdings {
		holdingIDs[i] = h.ID
		data.HoldingByID[h.ID] = h
	}
	data.AccountByID = make(map[string]model.Account, len(data.Accounts))
	for _, a := range data.Accounts {
		data.AccountByID[a.ID] = a
	}

	prices, err := s.priceRepo.GetPrices(ctx, holdingIDs, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	data.Prices = pricing.NewBook(prices)

	return data, nil
}
