package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// TransactionRepository provides data access methods for the transaction table.
// The table is an append-only log: rows are inserted, never updated.
type TransactionRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewTransactionRepository creates a new TransactionRepository with the provided database connection.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithTx returns a new TransactionRepository scoped to the provided transaction.
func (r *TransactionRepository) WithTx(tx *sql.Tx) *TransactionRepository {
	return &TransactionRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *TransactionRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const transactionSelect = `
	SELECT id, user_id, account_id, holding_id, date, type, amount, quantity, price, fees, realized_gain, created_at
	FROM "transaction"
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var t model.Transaction
	var holdingID sql.NullString
	var dateStr, createdAtStr string

	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.AccountID,
		&holdingID,
		&dateStr,
		&t.Type,
		&t.Amount,
		&t.Quantity,
		&t.Price,
		&t.Fees,
		&t.RealizedGain,
		&createdAtStr,
	)
	if err != nil {
		return model.Transaction{}, err
	}
	t.HoldingID = holdingID.String

	t.Date, err = ParseTime(dateStr)
	if err != nil || t.Date.IsZero() {
		return model.Transaction{}, fmt.Errorf("failed to parse date: %w", err)
	}

	t.CreatedAt, err = ParseTime(createdAtStr)
	if err != nil || t.CreatedAt.IsZero() {
		return model.Transaction{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return t, nil
}

// GetTransactions retrieves the transactions of a user matching filter.
// Transactions are sorted by date, then by insertion order, which is the
// order the ledger replays them in.
//
// Parameters:
//   - ctx: Context for cancellation
//   - userID: Owner of the transactions
//   - filter: Optional account, holding and inclusive date restrictions
//
// Returns an empty slice if nothing matches.
func (r *TransactionRepository) GetTransactions(ctx context.Context, userID string, filter model.TransactionFilter) ([]model.Transaction, error) {
	query := transactionSelect + ` WHERE user_id = ?`
	args := []any{userID}

	if len(filter.AccountIDs) > 0 {
		query += ` AND account_id IN (` + placeholders(len(filter.AccountIDs)) + `)`
		args = append(args, stringArgs(filter.AccountIDs)...)
	}
	if filter.HoldingID != "" {
		query += ` AND holding_id = ?`
		args = append(args, filter.HoldingID)
	}
	if !filter.StartDate.IsZero() {
		query += ` AND date >= ?`
		args = append(args, filter.StartDate.Format(DateLayout))
	}
	if !filter.EndDate.IsZero() {
		query += ` AND date <= ?`
		args = append(args, filter.EndDate.Format(DateLayout))
	}
	query += ` ORDER BY date ASC, created_at ASC, rowid ASC`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction table: %w", err)
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction table results: %w", err)
		}
		transactions = append(transactions, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction table: %w", err)
	}

	return transactions, nil
}

// GetTransaction retrieves one transaction of a user.
// Returns apperrors.ErrTransactionNotFound if it does not exist.
func (r *TransactionRepository) GetTransaction(ctx context.Context, userID, transactionID string) (model.Transaction, error) {
	query := transactionSelect + ` WHERE user_id = ? AND id = ?`
	t, err := scanTransaction(r.getQuerier().QueryRowContext(ctx, query, userID, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, apperrors.ErrTransactionNotFound
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to query transaction: %w", err)
	}
	return t, nil
}

// GetOldestTransaction returns the date of the earliest transaction of a user.
// Returns time.Time{} if the user has no transactions or the query fails.
func (r *TransactionRepository) GetOldestTransaction(ctx context.Context, userID string) time.Time {
	var oldestDateStr sql.NullString

	err := r.getQuerier().QueryRowContext(ctx, `SELECT MIN(date) FROM "transaction" WHERE user_id = ?`, userID).Scan(&oldestDateStr)
	if err != nil || !oldestDateStr.Valid {
		return time.Time{}
	}
	oldestDate, err := time.Parse(DateLayout, oldestDateStr.String)
	if err != nil {
		return time.Time{}
	}

	return oldestDate
}

// InsertTransaction appends a transaction to the log.
func (r *TransactionRepository) InsertTransaction(ctx context.Context, t model.Transaction) error {
	query := `
		INSERT INTO "transaction" (id, user_id, account_id, holding_id, date, type, amount,
		                           quantity, price, fees, realized_gain, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		t.ID,
		t.UserID,
		t.AccountID,
		nullString(t.HoldingID),
		t.Date.Format(DateLayout),
		t.Type,
		t.Amount,
		t.Quantity,
		t.Price,
		t.Fees,
		t.RealizedGain,
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}
