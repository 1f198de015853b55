package testutil

import (
	"database/sql"
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"github.com/ndewijer/portfolio-rebalancer/internal/logging"
	"github.com/ndewijer/portfolio-rebalancer/internal/repository"
	"github.com/ndewijer/portfolio-rebalancer/internal/selector"
	"github.com/ndewijer/portfolio-rebalancer/internal/service"
)

func NewTestDataLoaderService(t *testing.T, db *sql.DB) *service.DataLoaderService {
	t.Helper()

	return service.NewDataLoaderService(
		repository.NewAccountRepository(db),
		repository.NewGroupRepository(db),
		repository.NewHoldingRepository(db),
		repository.NewLotRepository(db),
		repository.NewTransactionRepository(db),
		repository.NewPriceRepository(db),
	)
}

func NewTestLedgerService(t *testing.T, db *sql.DB) *service.LedgerService {
	t.Helper()

	return service.NewLedgerService(
		db,
		repository.NewAccountRepository(db),
		repository.NewHoldingRepository(db),
		repository.NewLotRepository(db),
		repository.NewTransactionRepository(db),
		logging.Discard(),
	)
}

func NewTestRebalanceService(t *testing.T, db *sql.DB) *service.RebalanceService {
	t.Helper()

	return service.NewRebalanceService(NewTestDataLoaderService(t, db), selector.DefaultRates(), logging.Discard())
}

// NewTestPerformanceService creates a PerformanceService whose default
// benchmark is benchmark (empty for none).
func NewTestPerformanceService(t *testing.T, db *sql.DB, benchmark string) *service.PerformanceService {
	t.Helper()

	return service.NewPerformanceService(NewTestDataLoaderService(t, db), benchmark, logging.Discard())
}

func NewTestSnapshotService(t *testing.T, db *sql.DB) *service.SnapshotService {
	t.Helper()

	return service.NewSnapshotService(
		db,
		repository.NewSnapshotRepository(db),
		repository.NewTransactionRepository(db),
		NewTestPerformanceService(t, db, ""),
		logging.Discard(),
	)
}

func NewTestReplayService(t *testing.T, db *sql.DB) *service.ReplayService {
	t.Helper()

	return service.NewReplayService(repository.NewLotRepository(db), repository.NewTransactionRepository(db), logging.Discard())
}

func NewTestAllocationService(t *testing.T, db *sql.DB) *service.AllocationService {
	t.Helper()

	return service.NewAllocationService(
		db,
		repository.NewAccountRepository(db),
		repository.NewGroupRepository(db),
		repository.NewHoldingRepository(db),
	)
}

func NewTestPriceService(t *testing.T, db *sql.DB) *service.PriceService {
	t.Helper()

	return service.NewPriceService(db, repository.NewHoldingRepository(db), repository.NewPriceRepository(db))
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db)
}

// NewTestServices creates every service over db with default rates and no benchmark.
func NewTestServices(t *testing.T, db *sql.DB) *service.Services {
	t.Helper()

	return service.NewServices(db, selector.DefaultRates(), "", logging.Discard())
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeName generates a unique display name for testing.
//
// Example usage:
//
//	name := testutil.MakeName("Brokerage")
//	// Returns: "Brokerage ABC123"
func MakeName(base string) string {
	if base == "" {
		base = "Test"
	}
	return base + " " + randomAlphanumeric(6)
}

// MakeTicker generates a ticker symbol for testing.
//
// Example usage:
//
//	ticker := testutil.MakeTicker("VT")
//	// Returns: "VT1A2B"
func MakeTicker(base string) string {
	if base == "" {
		base = "TEST"
	}
	return base + randomAlphanumeric(4)
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
