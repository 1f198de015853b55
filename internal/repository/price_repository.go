package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// PriceRepository provides data access methods for the price_point table.
type PriceRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPriceRepository creates a new PriceRepository with the provided database connection.
func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// WithTx returns a new PriceRepository scoped to the provided transaction.
func (r *PriceRepository) WithTx(tx *sql.Tx) *PriceRepository {
	return &PriceRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *PriceRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetPrices retrieves all price points of the given holdings dated on or before end.
// A zero end returns the full history. Results are sorted by holding, then date.
//
// Returns an empty slice if holdingIDs is empty.
func (r *PriceRepository) GetPrices(ctx context.Context, holdingIDs []string, end time.Time) ([]model.PricePoint, error) {
	if len(holdingIDs) == 0 {
		return []model.PricePoint{}, nil
	}

	query := `
		SELECT holding_id, date, price
		FROM price_point
		WHERE holding_id IN (` + placeholders(len(holdingIDs)) + `)
	`
	args := stringArgs(holdingIDs)
	if !end.IsZero() {
		query += ` AND date <= ?`
		args = append(args, end.Format(DateLayout))
	}
	query += ` ORDER BY holding_id ASC, date ASC`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price_point table: %w", err)
	}
	defer rows.Close()

	points := []model.PricePoint{}
	for rows.Next() {
		var p model.PricePoint
		var dateStr string
		if err := rows.Scan(&p.HoldingID, &dateStr, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan price_point table results: %w", err)
		}
		p.Date, err = ParseTime(dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price date: %w", err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price_point table: %w", err)
	}

	return points, nil
}

// UpsertPrices stores price points, replacing any existing price of the same holding and date.
func (r *PriceRepository) UpsertPrices(ctx context.Context, points []model.PricePoint) error {
	query := `
		INSERT INTO price_point (holding_id, date, price)
		VALUES (?, ?, ?)
		ON CONFLICT(holding_id, date) DO UPDATE SET price = excluded.price
	`
	for _, p := range points {
		if _, err := r.getQuerier().ExecContext(ctx, query, p.HoldingID, p.Date.Format(DateLayout), p.Price); err != nil {
			return fmt.Errorf("failed to upsert price_point: %w", err)
		}
	}
	return nil
}
