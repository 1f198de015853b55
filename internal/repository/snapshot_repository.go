package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// SnapshotRepository provides data access methods for the performance_snapshot table.
type SnapshotRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewSnapshotRepository creates a new repository instance.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// WithTx returns a new SnapshotRepository scoped to the provided transaction.
func (r *SnapshotRepository) WithTx(tx *sql.Tx) *SnapshotRepository {
	return &SnapshotRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *SnapshotRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetSnapshots streams the stored snapshots of a user in date order.
//
// Parameters:
//   - ctx: Context for cancellation
//   - userID: Owner of the snapshots
//   - startDate: First date to include in results (inclusive)
//   - endDate: Last date to include in results (inclusive)
//   - callback: Called for each record found; an error stops iteration and is returned
//
// Records are handed to the callback one at a time so long ranges are never
// loaded into memory at once.
func (r *SnapshotRepository) GetSnapshots(
	ctx context.Context,
	userID string,
	startDate, endDate time.Time,
	callback func(record model.PerformanceSnapshot) error,
) error {
	query := `
		SELECT id, user_id, date, value, cost_basis, realized, unrealized,
		       income, net_gain, cash_flow, twr, calculated_at
		FROM performance_snapshot
		WHERE user_id = ?
		AND date >= ?
		AND date <= ?
		ORDER BY date ASC
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, userID, startDate.Format(DateLayout), endDate.Format(DateLayout))
	if err != nil {
		return fmt.Errorf("failed to query performance_snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var record model.PerformanceSnapshot
		var dateStr, calculatedAtStr string

		err := rows.Scan(
			&record.ID,
			&record.UserID,
			&dateStr,
			&record.Value,
			&record.CostBasis,
			&record.Realized,
			&record.Unrealized,
			&record.Income,
			&record.NetGain,
			&record.CashFlow,
			&record.Return,
			&calculatedAtStr,
		)
		if err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}

		record.Date, err = ParseTime(dateStr)
		if err != nil {
			return fmt.Errorf("failed to parse date: %w", err)
		}

		record.CalculatedAt, err = ParseTime(calculatedAtStr)
		if err != nil {
			return fmt.Errorf("failed to parse calculated_at: %w", err)
		}

		if err := callback(record); err != nil {
			return err
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}

	return nil
}

// CountSnapshots returns how many snapshots a user has in the inclusive date range.
func (r *SnapshotRepository) CountSnapshots(ctx context.Context, userID string, startDate, endDate time.Time) (int, error) {
	var count int
	err := r.getQuerier().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM performance_snapshot WHERE user_id = ? AND date >= ? AND date <= ?`,
		userID, startDate.Format(DateLayout), endDate.Format(DateLayout),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count performance_snapshot: %w", err)
	}
	return count, nil
}

// ReplaceSnapshots deletes every snapshot of a user and stores records instead.
// Run it inside a transaction so readers never observe a partial history.
func (r *SnapshotRepository) ReplaceSnapshots(ctx context.Context, userID string, records []model.PerformanceSnapshot) error {
	if _, err := r.getQuerier().ExecContext(ctx, `DELETE FROM performance_snapshot WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear performance_snapshot: %w", err)
	}

	query := `
		INSERT INTO performance_snapshot (id, user_id, date, value, cost_basis, realized, unrealized,
		                                  income, net_gain, cash_flow, twr, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, s := range records {
		_, err := r.getQuerier().ExecContext(ctx, query,
			s.ID,
			userID,
			s.Date.Format(DateLayout),
			s.Value,
			s.CostBasis,
			s.Realized,
			s.Unrealized,
			s.Income,
			s.NetGain,
			s.CashFlow,
			s.Return,
			s.CalculatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert performance_snapshot: %w", err)
		}
	}
	return nil
}

// GetUserIDs returns every user that owns at least one account.
func (r *SnapshotRepository) GetUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `SELECT DISTINCT user_id FROM account ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query account users: %w", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account users: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account users: %w", err)
	}
	return users, nil
}
