package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// GroupRepository provides data access methods for the asset_group table.
type GroupRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewGroupRepository creates a new GroupRepository with the provided database connection.
func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// WithTx returns a new GroupRepository scoped to the provided transaction.
func (r *GroupRepository) WithTx(tx *sql.Tx) *GroupRepository {
	return &GroupRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *GroupRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetGroups retrieves all groups of a user ordered by name.
func (r *GroupRepository) GetGroups(ctx context.Context, userID string) ([]model.Group, error) {
	query := `
		SELECT id, user_id, name, target_pct, upside_threshold, downside_threshold, absolute_rebalance
		FROM asset_group
		WHERE user_id = ?
		ORDER BY name ASC
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset_group table: %w", err)
	}
	defer rows.Close()

	groups := []model.Group{}
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetPct, &g.UpsideThreshold, &g.DownsideThreshold, &g.AbsoluteRebalance); err != nil {
			return nil, fmt.Errorf("failed to scan asset_group table results: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset_group table: %w", err)
	}

	return groups, nil
}

// GetGroup retrieves one group of a user.
// Returns apperrors.ErrGroupNotFound if it does not exist.
func (r *GroupRepository) GetGroup(ctx context.Context, userID, groupID string) (model.Group, error) {
	query := `
		SELECT id, user_id, name, target_pct, upside_threshold, downside_threshold, absolute_rebalance
		FROM asset_group
		WHERE user_id = ? AND id = ?
	`

	var g model.Group
	err := r.getQuerier().QueryRowContext(ctx, query, userID, groupID).
		Scan(&g.ID, &g.UserID, &g.Name, &g.TargetPct, &g.UpsideThreshold, &g.DownsideThreshold, &g.AbsoluteRebalance)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Group{}, apperrors.ErrGroupNotFound
	}
	if err != nil {
		return model.Group{}, fmt.Errorf("failed to query asset_group: %w", err)
	}
	return g, nil
}

// UpsertGroup inserts a group or replaces the stored one with the same id.
func (r *GroupRepository) UpsertGroup(ctx context.Context, g model.Group) error {
	query := `
		INSERT INTO asset_group (id, user_id, name, target_pct, upside_threshold, downside_threshold, absolute_rebalance)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			target_pct = excluded.target_pct,
			upside_threshold = excluded.upside_threshold,
			downside_threshold = excluded.downside_threshold,
			absolute_rebalance = excluded.absolute_rebalance
		WHERE asset_group.user_id = excluded.user_id
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		g.ID, g.UserID, g.Name, g.TargetPct, g.UpsideThreshold, g.DownsideThreshold, g.AbsoluteRebalance)
	if err != nil {
		return fmt.Errorf("failed to upsert asset_group: %w", err)
	}
	return nil
}
