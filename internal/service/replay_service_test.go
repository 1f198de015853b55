package service_test

import (
	"context"
	"testing"

	"github.com/ndewijer/portfolio-rebalancer/internal/testutil"
)

// TestReplayService_Verify tests that stored lots round-trip through a full replay.
//
// WHY: Lots are written incrementally while transactions are append-only.
// Replaying the log must reproduce the stored lots exactly; any drift points
// at a write that bypassed the ledger.
func TestReplayService_Verify(t *testing.T) {
	t.Run("lots written by the ledger service are consistent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestReplayService(t, db)
		ledgerSvc := testutil.NewTestLedgerService(t, db)
		account := testutil.NewAccount().Build(t, db)
		vti := testutil.NewHolding("VTI").Build(t, db)

		buy(t, ledgerSvc, account.ID, vti.ID, testutil.Date(2024, 1, 1), "10", "1")
		buy(t, ledgerSvc, account.ID, vti.ID, testutil.Date(2024, 2, 1), "10", "2")
		sell(t, ledgerSvc, account.ID, vti.ID, testutil.Date(2024, 3, 1), "12", "3")

		report, err := svc.Verify(context.Background(), testutil.TestUserID)
		if err != nil {
			t.Fatalf("Verify() returned unexpected error: %v", err)
		}
		if !report.Consistent {
			t.Errorf("Expected consistent report, got %+v", report)
		}
		if report.Transactions != 3 || report.StoredLots != 1 || report.ReplayedLots != 1 {
			t.Errorf("Expected 3 transactions and 1 lot on both sides, got %+v", report)
		}
	})

	t.Run("lot without originating buy is unexpected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestReplayService(t, db)
		account := testutil.NewAccount().Build(t, db)
		vti := testutil.NewHolding("VTI").Build(t, db)
		testutil.CreateLot(t, db, vti.ID, account.ID, testutil.Date(2024, 1, 1), 5, 10)

		report, err := svc.Verify(context.Background(), testutil.TestUserID)
		if err != nil {
			t.Fatalf("Verify() returned unexpected error: %v", err)
		}
		if report.Consistent || len(report.Unexpected) != 1 {
			t.Errorf("Expected one unexpected lot, got %+v", report)
		}
	})

	t.Run("tampered remaining quantity is a mismatch", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestReplayService(t, db)
		ledgerSvc := testutil.NewTestLedgerService(t, db)
		account := testutil.NewAccount().Build(t, db)
		vti := testutil.NewHolding("VTI").Build(t, db)
		res := buy(t, ledgerSvc, account.ID, vti.ID, testutil.Date(2024, 1, 1), "10", "1")

		if _, err := db.Exec(`UPDATE tax_lot SET remaining_quantity = '7' WHERE id = ?`, res.Lot.ID); err != nil {
			t.Fatalf("Failed to tamper lot: %v", err)
		}

		report, err := svc.Verify(context.Background(), testutil.TestUserID)
		if err != nil {
			t.Fatalf("Verify() returned unexpected error: %v", err)
		}
		if len(report.Mismatched) != 1 || report.Mismatched[0].TransactionID != res.Transaction.ID {
			t.Errorf("Expected a mismatch for the buy, got %+v", report.Mismatched)
		}
	})

	t.Run("deleted lot is missing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestReplayService(t, db)
		ledgerSvc := testutil.NewTestLedgerService(t, db)
		account := testutil.NewAccount().Build(t, db)
		vti := testutil.NewHolding("VTI").Build(t, db)
		res := buy(t, ledgerSvc, account.ID, vti.ID, testutil.Date(2024, 1, 1), "10", "1")

		if _, err := db.Exec(`DELETE FROM tax_lot WHERE id = ?`, res.Lot.ID); err != nil {
			t.Fatalf("Failed to delete lot: %v", err)
		}

		report, err := svc.Verify(context.Background(), testutil.TestUserID)
		if err != nil {
			t.Fatalf("Verify() returned unexpected error: %v", err)
		}
		if len(report.Missing) != 1 {
			t.Errorf("Expected one missing lot, got %+v", report)
		}
	})
}
