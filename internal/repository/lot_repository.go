package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// LotRepository provides data access methods for the tax_lot table.
// Only open lots are persisted; a lot that reaches zero remaining units is deleted.
type LotRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewLotRepository creates a new LotRepository with the provided database connection.
func NewLotRepository(db *sql.DB) *LotRepository {
	return &LotRepository{db: db}
}

// WithTx returns a new LotRepository scoped to the provided transaction.
func (r *LotRepository) WithTx(tx *sql.Tx) *LotRepository {
	return &LotRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *LotRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetOpenLots retrieves the open lots of a user matching filter in FIFO order.
//
// Parameters:
//   - ctx: Context for cancellation
//   - userID: Owner of the lots
//   - filter: Optional holding and account restriction
//
// Returns:
//   - []model.TaxLot: Lots ordered by acquisition date, then creation sequence
//   - error: If the query or date parsing fails
func (r *LotRepository) GetOpenLots(ctx context.Context, userID string, filter model.LotFilter) ([]model.TaxLot, error) {
	query := `
		SELECT id, user_id, holding_id, account_id, transaction_id, acquired_at,
		       quantity, cost_basis_per_unit, remaining_quantity, seq
		FROM tax_lot
		WHERE user_id = ?
	`
	args := []any{userID}

	if filter.HoldingID != "" {
		query += ` AND holding_id = ?`
		args = append(args, filter.HoldingID)
	}
	if filter.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, filter.AccountID)
	}
	query += ` ORDER BY acquired_at ASC, seq ASC`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tax_lot table: %w", err)
	}
	defer rows.Close()

	lots := []model.TaxLot{}
	for rows.Next() {
		var lot model.TaxLot
		var accountID, transactionID sql.NullString
		var acquiredStr string

		err := rows.Scan(
			&lot.ID, &lot.UserID, &lot.HoldingID, &accountID, &transactionID, &acquiredStr,
			&lot.Quantity, &lot.CostBasisPerUnit, &lot.RemainingQuantity, &lot.Seq,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tax_lot table results: %w", err)
		}

		lot.AcquiredAt, err = ParseTime(acquiredStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse acquired_at: %w", err)
		}
		lot.AccountID = accountID.String
		lot.TransactionID = transactionID.String

		if lot.IsOpen() {
			lots = append(lots, lot)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tax_lot table: %w", err)
	}

	return lots, nil
}

// MaxSeq returns the highest lot sequence number of a user, or 0 without lots.
func (r *LotRepository) MaxSeq(ctx context.Context, userID string) (int64, error) {
	var seq sql.NullInt64
	err := r.getQuerier().QueryRowContext(ctx, `SELECT MAX(seq) FROM tax_lot WHERE user_id = ?`, userID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to query tax_lot sequence: %w", err)
	}
	return seq.Int64, nil
}

// InsertLot stores a new lot.
func (r *LotRepository) InsertLot(ctx context.Context, lot model.TaxLot) error {
	query := `
		INSERT INTO tax_lot (id, user_id, holding_id, account_id, transaction_id, acquired_at,
		                     quantity, cost_basis_per_unit, remaining_quantity, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		lot.ID,
		lot.UserID,
		lot.HoldingID,
		nullString(lot.AccountID),
		nullString(lot.TransactionID),
		lot.AcquiredAt.Format(DateLayout),
		lot.Quantity,
		lot.CostBasisPerUnit,
		lot.RemainingQuantity,
		lot.Seq,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tax_lot: %w", err)
	}
	return nil
}

// UpdateRemaining sets the remaining quantity of a partially consumed lot.
func (r *LotRepository) UpdateRemaining(ctx context.Context, lot model.TaxLot) error {
	res, err := r.getQuerier().ExecContext(ctx,
		`UPDATE tax_lot SET remaining_quantity = ? WHERE id = ?`, lot.RemainingQuantity, lot.ID)
	if err != nil {
		return fmt.Errorf("failed to update tax_lot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("tax_lot %s not found", lot.ID)
	}
	return nil
}

// DeleteLot removes a closed lot.
func (r *LotRepository) DeleteLot(ctx context.Context, lotID string) error {
	if _, err := r.getQuerier().ExecContext(ctx, `DELETE FROM tax_lot WHERE id = ?`, lotID); err != nil {
		return fmt.Errorf("failed to delete tax_lot: %w", err)
	}
	return nil
}
