package apperrors

import (
	"errors"
	"fmt"
)

// Domain entity errors represent missing entities in the system.
var (
	// ErrAccountNotFound indicates that an account with the given ID does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrHoldingNotFound indicates that a holding with the given ID does not exist.
	ErrHoldingNotFound = errors.New("holding not found")

	// ErrGroupNotFound indicates that a group with the given ID does not exist.
	ErrGroupNotFound = errors.New("group not found")

	// ErrTransactionNotFound indicates that a transaction with the given ID does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Structural errors abort the single operation that raised them.
// No state is mutated when they are returned.
var (
	// ErrInvalidInput covers non-positive quantities, prices or cost basis,
	// percentages outside 0-100 and negative thresholds.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientLots indicates that a sell requested more units than are
	// currently open for a (holding, account) pair.
	ErrInsufficientLots = errors.New("insufficient open lots for sale")

	// ErrInvalidDateRange indicates that the start date is after the end date.
	ErrInvalidDateRange = errors.New("invalid date range")
)

// Computational degradations never abort a report. They are attached to
// results as warnings so callers can display them.
var (
	// ErrMissingPrice indicates a holding had no usable price point and was valued at zero.
	ErrMissingPrice = errors.New("missing price")

	// ErrNonConvergentIRR indicates Newton-Raphson did not find a root within its budget.
	ErrNonConvergentIRR = errors.New("irr did not converge")

	// ErrDegradedSelection indicates the selector fell back to an account-agnostic estimate.
	ErrDegradedSelection = errors.New("degraded tax-aware selection")
)

// Operation failure errors used by handlers when a lower layer fails.
var (
	ErrFailedToBuildRebalance       = errors.New("failed to build rebalance report")
	ErrFailedToBuildPerformance     = errors.New("failed to build performance report")
	ErrFailedToRetrieveLots         = errors.New("failed to retrieve lots")
	ErrFailedToRetrieveHistory      = errors.New("failed to retrieve performance history")
	ErrFailedToRecordTransaction    = errors.New("failed to record transaction")
	ErrFailedToRetrieveTransactions = errors.New("failed to retrieve transactions")
	ErrFailedToVerifyLedger         = errors.New("failed to verify ledger")
	ErrFailedToRetrieveGroups       = errors.New("failed to retrieve groups")
	ErrFailedToRetrieveAccounts     = errors.New("failed to retrieve accounts")
	ErrFailedToCreateAccount        = errors.New("failed to create account")
	ErrFailedToRetrieveHoldings     = errors.New("failed to retrieve holdings")
	ErrFailedToCreateHolding        = errors.New("failed to create holding")
	ErrFailedToSaveGroup            = errors.New("failed to save group")
	ErrFailedToSaveTarget           = errors.New("failed to save holding target")
	ErrFailedToSavePrices           = errors.New("failed to save prices")
	ErrFailedToGetVersionInfo       = errors.New("failed to get version information")
)

// InputError names the offending field of an InvalidInput failure.
type InputError struct {
	Field  string
	Reason string
}

// NewInputError creates an InputError for field.
func NewInputError(field, format string, args ...any) *InputError {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// LotError carries the holding and account of a sell that exceeded the open quantity.
type LotError struct {
	HoldingID string `json:"holdingId"`
	AccountID string `json:"accountId"`
	Requested string `json:"requested"`
	Available string `json:"available"`
}

func (e *LotError) Error() string {
	return fmt.Sprintf("insufficient open lots for holding %s in account %s: requested %s, available %s",
		e.HoldingID, e.AccountID, e.Requested, e.Available)
}

func (e *LotError) Unwrap() error {
	return ErrInsufficientLots
}
