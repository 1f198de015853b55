package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/repository"
)

// PriceService stores price points supplied by the caller. Fetching prices
// from a market-data provider is outside this service.
type PriceService struct {
	db          *sql.DB
	holdingRepo *repository.HoldingRepository
	priceRepo   *repository.PriceRepository
}

// NewPriceService creates a new PriceService with the provided dependencies.
func NewPriceService(db *sql.DB, holdingRepo *repository.HoldingRepository, priceRepo *repository.PriceRepository) *PriceService {
	return &PriceService{
		db:          db,
		holdingRepo: holdingRepo,
		priceRepo:   priceRepo,
	}
}

// SavePrices stores price points for holdings of userID. Every holding must
// belong to the user and every price must be positive; otherwise nothing is stored.
// A point for an existing (holding, date) replaces the stored price.
func (s *PriceService) SavePrices(ctx context.Context, userID string, points []model.PricePoint) (int, error) {
	for i, p := range points {
		if p.Price <= 0 {
			return 0, apperrors.NewInputError(fmt.Sprintf("prices[%d].price", i), "must be positive, got %v", p.Price)
		}
		if p.Date.IsZero() {
			return 0, apperrors.NewInputError(fmt.Sprintf("prices[%d].date", i), "is required")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	holdings := s.holdingRepo.WithTx(tx)
	checked := make(map[string]struct{})
	for _, p := range points {
		if _, ok := checked[p.HoldingID]; ok {
			continue
		}
		if _, err := holdings.GetHolding(ctx, userID, p.HoldingID); err != nil {
			return 0, err
		}
		checked[p.HoldingID] = struct{}{}
	}

	if err := s.priceRepo.WithTx(tx).UpsertPrices(ctx, points); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prices: %w", err)
	}
	return len(points), nil
}
