package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// HoldingRepository provides data access methods for the holding and holding_target tables.
// Holdings are returned with their target attached, or with Target nil when none is stored.
type HoldingRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewHoldingRepository creates a new HoldingRepository with the provided database connection.
func NewHoldingRepository(db *sql.DB) *HoldingRepository {
	return &HoldingRepository{db: db}
}

// WithTx returns a new HoldingRepository scoped to the provided transaction.
func (r *HoldingRepository) WithTx(tx *sql.Tx) *HoldingRepository {
	return &HoldingRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *HoldingRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const holdingSelect = `
	SELECT h.id, h.user_id, h.ticker, h.name, h.type, h.subtype, h.geography, h.size, h.factor,
	       h.group_id, ht.holding_id, ht.group_id, ht.target_pct
	FROM holding h
	LEFT JOIN holding_target ht ON ht.holding_id = h.id
`

// scanHolding scans one holdingSelect row. The LEFT JOIN yields NULL target
// columns when no target exists; those become a nil Target.
func scanHolding(scan func(dest ...any) error) (model.Holding, error) {
	var h model.Holding
	var groupID, targetHoldingID, targetGroupID sql.NullString
	var targetPct sql.NullFloat64

	err := scan(
		&h.ID, &h.UserID, &h.Ticker, &h.Name, &h.Type, &h.Subtype, &h.Geography, &h.Size, &h.Factor,
		&groupID, &targetHoldingID, &targetGroupID, &targetPct,
	)
	if err != nil {
		return model.Holding{}, err
	}

	h.GroupID = groupID.String
	if targetHoldingID.Valid {
		h.Target = &model.HoldingTarget{
			HoldingID: targetHoldingID.String,
			GroupID:   targetGroupID.String,
			TargetPct: targetPct.Float64,
		}
	}
	return h, nil
}

// GetHoldings retrieves all holdings of a user ordered by ticker.
func (r *HoldingRepository) GetHoldings(ctx context.Context, userID string) ([]model.Holding, error) {
	query := holdingSelect + `
		WHERE h.user_id = ?
		ORDER BY h.ticker ASC
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holding table: %w", err)
	}
	defer rows.Close()

	holdings := []model.Holding{}
	for rows.Next() {
		h, err := scanHolding(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding table results: %w", err)
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holding table: %w", err)
	}

	return holdings, nil
}

// GetHolding retrieves one holding of a user.
// Returns apperrors.ErrHoldingNotFound if it does not exist.
func (r *HoldingRepository) GetHolding(ctx context.Context, userID, holdingID string) (model.Holding, error) {
	query := holdingSelect + `WHERE h.user_id = ? AND h.id = ?`
	h, err := scanHolding(r.getQuerier().QueryRowContext(ctx, query, userID, holdingID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Holding{}, apperrors.ErrHoldingNotFound
	}
	if err != nil {
		return model.Holding{}, fmt.Errorf("failed to query holding: %w", err)
	}
	return h, nil
}

// GetHoldingByTicker retrieves a holding of a user by its ticker.
// Returns apperrors.ErrHoldingNotFound if it does not exist.
func (r *HoldingRepository) GetHoldingByTicker(ctx context.Context, userID, ticker string) (model.Holding, error) {
	query := holdingSelect + `WHERE h.user_id = ? AND h.ticker = ?`
	h, err := scanHolding(r.getQuerier().QueryRowContext(ctx, query, userID, ticker).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Holding{}, apperrors.ErrHoldingNotFound
	}
	if err != nil {
		return model.Holding{}, fmt.Errorf("failed to query holding by ticker: %w", err)
	}
	return h, nil
}

// InsertHolding stores a new holding. Its Target, if any, is not written.
func (r *HoldingRepository) InsertHolding(ctx context.Context, h model.Holding) error {
	query := `
		INSERT INTO holding (id, user_id, ticker, name, type, subtype, geography, size, factor, group_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		h.ID, h.UserID, h.Ticker, h.Name, h.Type, h.Subtype, h.Geography, h.Size, h.Factor, nullString(h.GroupID))
	if err != nil {
		return fmt.Errorf("failed to insert holding: %w", err)
	}
	return nil
}

// GetTargets retrieves every holding target of a user's holdings.
func (r *HoldingRepository) GetTargets(ctx context.Context, userID string) ([]model.HoldingTarget, error) {
	query := `
		SELECT ht.holding_id, ht.group_id, ht.target_pct
		FROM holding_target ht
		INNER JOIN holding h ON h.id = ht.holding_id
		WHERE h.user_id = ?
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holding_target table: %w", err)
	}
	defer rows.Close()

	targets := []model.HoldingTarget{}
	for rows.Next() {
		var t model.HoldingTarget
		if err := rows.Scan(&t.HoldingID, &t.GroupID, &t.TargetPct); err != nil {
			return nil, fmt.Errorf("failed to scan holding_target table results: %w", err)
		}
		targets = append(targets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holding_target table: %w", err)
	}

	return targets, nil
}

// UpsertTarget stores the target of a holding within a group and moves the
// holding into that group.
func (r *HoldingRepository) UpsertTarget(ctx context.Context, t model.HoldingTarget) error {
	query := `
		INSERT INTO holding_target (holding_id, group_id, target_pct)
		VALUES (?, ?, ?)
		ON CONFLICT(holding_id) DO UPDATE SET
			group_id = excluded.group_id,
			target_pct = excluded.target_pct
	`
	if _, err := r.getQuerier().ExecContext(ctx, query, t.HoldingID, t.GroupID, t.TargetPct); err != nil {
		return fmt.Errorf("failed to upsert holding_target: %w", err)
	}

	if _, err := r.getQuerier().ExecContext(ctx, `UPDATE holding SET group_id = ? WHERE id = ?`, t.GroupID, t.HoldingID); err != nil {
		return fmt.Errorf("failed to update holding group: %w", err)
	}
	return nil
}
