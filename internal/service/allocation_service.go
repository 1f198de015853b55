package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/drift"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/repository"
)

// AllocationService maintains the portfolio structure: accounts, holdings,
// groups and the targets of holdings within them.
type AllocationService struct {
	db          *sql.DB
	accountRepo *repository.AccountRepository
	groupRepo   *repository.GroupRepository
	holdingRepo *repository.HoldingRepository
}

// NewAllocationService creates a new AllocationService with the provided dependencies.
func NewAllocationService(
	db *sql.DB,
	accountRepo *repository.AccountRepository,
	groupRepo *repository.GroupRepository,
	holdingRepo *repository.HoldingRepository,
) *AllocationService {
	return &AllocationService{
		db:          db,
		accountRepo: accountRepo,
		groupRepo:   groupRepo,
		holdingRepo: holdingRepo,
	}
}

// GetAccounts returns the accounts of a user.
func (s *AllocationService) GetAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	return s.accountRepo.GetAccounts(ctx, userID)
}

// CreateAccount stores a new account. An empty ID is generated and an empty
// tax status defaults to taxable.
func (s *AllocationService) CreateAccount(ctx context.Context, a model.Account) (model.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return model.Account{}, apperrors.NewInputError("name", "is required")
	}
	if a.TaxStatus == "" {
		a.TaxStatus = model.TaxStatusTaxable
	}
	if !a.TaxStatus.Valid() {
		return model.Account{}, apperrors.NewInputError("taxStatus", "unknown tax status %q", a.TaxStatus)
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	if err := s.accountRepo.InsertAccount(ctx, a); err != nil {
		return model.Account{}, err
	}
	return a, nil
}

// GetHoldings returns the holdings of a user with their targets.
func (s *AllocationService) GetHoldings(ctx context.Context, userID string) ([]model.Holding, error) {
	return s.holdingRepo.GetHoldings(ctx, userID)
}

// CreateHolding stores a new holding. Tickers are upper-cased and unique per
// user. A group, when set, must belong to the same user.
func (s *AllocationService) CreateHolding(ctx context.Context, h model.Holding) (model.Holding, error) {
	h.Ticker = strings.ToUpper(strings.TrimSpace(h.Ticker))
	if h.Ticker == "" {
		return model.Holding{}, apperrors.NewInputError("ticker", "is required")
	}
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	h.Target = nil

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Holding{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	holdings := s.holdingRepo.WithTx(tx)
	_, err = holdings.GetHoldingByTicker(ctx, h.UserID, h.Ticker)
	if err == nil {
		return model.Holding{}, apperrors.NewInputError("ticker", "%s already exists", h.Ticker)
	}
	if !errors.Is(err, apperrors.ErrHoldingNotFound) {
		return model.Holding{}, err
	}
	if h.GroupID != "" {
		if _, err := s.groupRepo.WithTx(tx).GetGroup(ctx, h.UserID, h.GroupID); err != nil {
			return model.Holding{}, err
		}
	}
	if err := holdings.InsertHolding(ctx, h); err != nil {
		return model.Holding{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Holding{}, fmt.Errorf("failed to commit holding: %w", err)
	}
	return h, nil
}

// FindHolding resolves ref, a holding id or a ticker, to a holding of userID.
func (s *AllocationService) FindHolding(ctx context.Context, userID, ref string) (model.Holding, error) {
	if _, err := uuid.Parse(ref); err == nil {
		return s.holdingRepo.GetHolding(ctx, userID, ref)
	}
	return s.holdingRepo.GetHoldingByTicker(ctx, userID, strings.ToUpper(strings.TrimSpace(ref)))
}

// GetGroups returns the groups of a user.
func (s *AllocationService) GetGroups(ctx context.Context, userID string) ([]model.Group, error) {
	return s.groupRepo.GetGroups(ctx, userID)
}

// SaveGroup validates and stores a group. The target must lie within 0-100
// and thresholds must not be negative. Targets across groups are not
// required to sum to 100.
func (s *AllocationService) SaveGroup(ctx context.Context, g model.Group) (model.Group, error) {
	if err := drift.ValidateGroup(g); err != nil {
		return model.Group{}, err
	}
	if err := s.groupRepo.UpsertGroup(ctx, g); err != nil {
		return model.Group{}, err
	}
	return s.groupRepo.GetGroup(ctx, g.UserID, g.ID)
}

// SaveTarget validates and stores the target of a holding within a group,
// moving the holding into that group. Both must belong to userID.
func (s *AllocationService) SaveTarget(ctx context.Context, userID string, t model.HoldingTarget) (model.Holding, error) {
	if err := drift.ValidateHoldingTarget(t); err != nil {
		return model.Holding{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Holding{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	holdings := s.holdingRepo.WithTx(tx)
	if _, err := holdings.GetHolding(ctx, userID, t.HoldingID); err != nil {
		return model.Holding{}, err
	}
	if _, err := s.groupRepo.WithTx(tx).GetGroup(ctx, userID, t.GroupID); err != nil {
		return model.Holding{}, err
	}
	if err := holdings.UpsertTarget(ctx, t); err != nil {
		return model.Holding{}, err
	}
	h, err := holdings.GetHolding(ctx, userID, t.HoldingID)
	if err != nil {
		return model.Holding{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Holding{}, fmt.Errorf("failed to commit holding target: %w", err)
	}
	return h, nil
}
