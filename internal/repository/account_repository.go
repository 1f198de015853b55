package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndewijer/portfolio-rebalancer/internal/apperrors"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// AccountRepository provides data access methods for the account table.
type AccountRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewAccountRepository creates a new AccountRepository with the provided database connection.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// WithTx returns a new AccountRepository scoped to the provided transaction.
func (r *AccountRepository) WithTx(tx *sql.Tx) *AccountRepository {
	return &AccountRepository{
		db: r.db,
		tx: tx,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *AccountRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// GetAccounts retrieves all accounts of a user ordered by name.
// Returns an empty slice if the user has no accounts.
func (r *AccountRepository) GetAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	query := `
		SELECT id, user_id, name, type, tax_status
		FROM account
		WHERE user_id = ?
		ORDER BY name ASC
	`

	rows, err := r.getQuerier().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query account table: %w", err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.TaxStatus); err != nil {
			return nil, fmt.Errorf("failed to scan account table results: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account table: %w", err)
	}

	return accounts, nil
}

// GetAccount retrieves one account of a user.
// Returns apperrors.ErrAccountNotFound if it does not exist.
func (r *AccountRepository) GetAccount(ctx context.Context, userID, accountID string) (model.Account, error) {
	query := `
		SELECT id, user_id, name, type, tax_status
		FROM account
		WHERE user_id = ? AND id = ?
	`

	var a model.Account
	err := r.getQuerier().QueryRowContext(ctx, query, userID, accountID).Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.TaxStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, apperrors.ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to query account: %w", err)
	}
	return a, nil
}

// InsertAccount stores a new account.
func (r *AccountRepository) InsertAccount(ctx context.Context, a model.Account) error {
	query := `
		INSERT INTO account (id, user_id, name, type, tax_status)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := r.getQuerier().ExecContext(ctx, query, a.ID, a.UserID, a.Name, a.Type, a.TaxStatus); err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}
