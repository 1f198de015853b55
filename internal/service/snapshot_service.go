package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/repository"
)

// SnapshotService handles the materialized performance history of a user.
// It coordinates between stored snapshots and on-demand replay to provide
// aggregate history with fallback capabilities.
type SnapshotService struct {
	db                 *sql.DB
	snapshotRepo       *repository.SnapshotRepository
	transactionRepo    *repository.TransactionRepository
	performanceService *PerformanceService
	logger             *log.Logger
}

// NewSnapshotService creates a new SnapshotService with the provided dependencies.
func NewSnapshotService(
	db *sql.DB,
	snapshotRepo *repository.SnapshotRepository,
	transactionRepo *repository.TransactionRepository,
	performanceService *PerformanceService,
	logger *log.Logger,
) *SnapshotService {
	return &SnapshotService{
		db:                 db,
		snapshotRepo:       snapshotRepo,
		transactionRepo:    transactionRepo,
		performanceService: performanceService,
		logger:             logger,
	}
}

// GetHistoryMaterialized retrieves the stored daily aggregate history of a user.
//
// Parameters:
//   - ctx: Context for cancellation
//   - userID: Owner of the history
//   - startDate: First date to include (inclusive)
//   - endDate: Last date to include (inclusive)
//
// Returns one point per stored date, or an empty slice when nothing is stored.
func (s *SnapshotService) GetHistoryMaterialized(ctx context.Context, userID string, startDate, endDate time.Time) ([]model.PerformancePoint, error) {
	points := []model.PerformancePoint{}
	err := s.snapshotRepo.GetSnapshots(ctx, userID, startDate, endDate, func(record model.PerformanceSnapshot) error {
		points = append(points, model.PerformancePoint{
			Date:           record.Date.Format(repository.DateLayout),
			PortfolioValue: record.Value,
			CostBasisTotal: record.CostBasis,
			Unrealized:     record.Unrealized,
			Realized:       record.Realized,
			Income:         record.Income,
			NetGain:        record.NetGain,
			CashFlow:       record.CashFlow,
			Return:         record.Return,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Count returns how many snapshots are stored for userID in the inclusive range.
func (s *SnapshotService) Count(ctx context.Context, userID string, startDate, endDate time.Time) (int, error) {
	return s.snapshotRepo.CountSnapshots(ctx, userID, startDate, endDate)
}

// GetHistory calculates the daily aggregate history of a user on demand by
// replaying the transaction history.
func (s *SnapshotService) GetHistory(ctx context.Context, userID string, startDate, endDate time.Time) ([]model.PerformancePoint, error) {
	report, err := s.performanceService.GetPerformance(ctx, model.PerformanceRequest{
		UserID:    userID,
		Start:     startDate,
		End:       endDate,
		Lens:      model.LensAccount,
		Aggregate: true,
	})
	if err != nil {
		return nil, err
	}
	for _, series := range report.Series {
		if series.Key == model.TotalSeriesKey {
			return series.Points, nil
		}
	}
	return []model.PerformancePoint{}, nil
}

// GetHistoryWithFallback tries to retrieve history from the stored snapshots,
// falling back to on-demand calculation if they are empty or stale.
//
// Stored snapshots are used only when their last date is on or after endDate;
// a refresh that ran yesterday does not cover today, so today's request replays.
func (s *SnapshotService) GetHistoryWithFallback(ctx context.Context, userID string, startDate, endDate time.Time) ([]model.PerformancePoint, error) {
	materialized, err := s.GetHistoryMaterialized(ctx, userID, startDate, endDate)
	if err == nil && len(materialized) > 0 {
		lastDate, parseErr := time.Parse(repository.DateLayout, materialized[len(materialized)-1].Date)
		if parseErr == nil && !lastDate.Before(truncateDate(endDate)) {
			return materialized, nil
		}
	}
	if err != nil {
		s.logger.Warn().Str("user_id", userID).Err(err).Msg("failed to read performance snapshots, replaying")
	}

	return s.GetHistory(ctx, userID, startDate, endDate)
}

// Refresh recalculates the full aggregate history of a user, from the first
// transaction to today, and replaces the stored snapshots in one transaction.
// It returns the number of snapshots stored.
func (s *SnapshotService) Refresh(ctx context.Context, userID string) (int, error) {
	start := s.transactionRepo.GetOldestTransaction(ctx, userID)
	if start.IsZero() {
		return 0, nil
	}
	end := time.Now().UTC()

	points, err := s.GetHistory(ctx, userID, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate history: %w", err)
	}

	calculatedAt := time.Now().UTC()
	records := make([]model.PerformanceSnapshot, 0, len(points))
	for _, p := range points {
		date, err := time.Parse(repository.DateLayout, p.Date)
		if err != nil {
			return 0, fmt.Errorf("failed to parse snapshot date: %w", err)
		}
		records = append(records, model.PerformanceSnapshot{
			ID:           uuid.New().String(),
			UserID:       userID,
			Date:         date,
			Value:        p.PortfolioValue,
			CostBasis:    p.CostBasisTotal,
			Realized:     p.Realized,
			Unrealized:   p.Unrealized,
			Income:       p.Income,
			NetGain:      p.NetGain,
			CashFlow:     p.CashFlow,
			Return:       p.Return,
			CalculatedAt: calculatedAt,
		})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.snapshotRepo.WithTx(tx).ReplaceSnapshots(ctx, userID, records); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return len(records), nil
}

// RefreshAll refreshes every user. A failing user is logged and skipped; the
// joined errors of all failures are returned.
func (s *SnapshotService) RefreshAll(ctx context.Context) error {
	users, err := s.snapshotRepo.GetUserIDs(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		started := time.Now()
		n, err := s.Refresh(ctx, userID)
		if err != nil {
			s.logger.Error().Str("user_id", userID).Err(err).Msg("performance snapshot refresh failed")
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		s.logger.Info().Str("user_id", userID).Int("snapshots", n).Dur("duration", time.Since(started)).Msg("performance snapshots refreshed")
	}
	return errors.Join(errs...)
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
