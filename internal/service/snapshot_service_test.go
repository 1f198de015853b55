package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/ndewijer/portfolio-rebalancer/internal/logging"
	"github.com/ndewijer/portfolio-rebalancer/internal/service"
	"github.com/ndewijer/portfolio-rebalancer/internal/testutil"
)

// daysSince counts the calendar days from start to today inclusive.
func daysSince(start time.Time) int {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	return int(today.Sub(start).Hours()/24) + 1
}

// TestSnapshotService_Refresh tests materializing the aggregate history.
//
// WHY: The history endpoint reads snapshots instead of replaying years of
// transactions. A refresh must store exactly one row per day and replace,
// never append to, what was stored before.
func TestSnapshotService_Refresh(t *testing.T) {
	t.Run("stores one snapshot per day since the first transaction", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSnapshotService(t, db)
		ledgerSvc := testutil.NewTestLedgerService(t, db)
		account := testutil.NewAccount().Build(t, db)
		vti := testutil.NewHolding("VTI").Build(t, db)
		buy(t, ledgerSvc, account.ID, vti.ID, testutil.Date(2024, 1, 1), "10", "100")
		testutil.CreatePrice(t, db, vti.ID, testutil.Date(2024, 1, 1), 100)

		n, err := svc.Refresh(context.Background(), testutil.TestUserID)
		if err != nil {
			t.Fatalf("Refresh() returned unexpected error: %v", err)
		}
		if want := daysSince(testutil.Date(2024, 1, 1)); n != want {
			t.Errorf("Expected %d snapshots, got %d", want, n)
		}
		testutil.AssertRowCount(t, db, "performance_snapshot", n)

		count, err := svc.Count(context.Background(), testutil.TestUserID, testutil.Date(2024, 1, 1), testutil.Date(2024, 1, 31))
		if err != nil {
			t.Fatalf("Count() returned unexpected error: %v", err)
		}
		if count != 31 {
			t.Errorf("Expected 31 snapshots in January, got %d", count)
		}

		// A second refresh replaces the rows
		if _, err := svc.Refresh(context.Background(), testutil.TestUserID); err != nil {
			t.Fatalf("Refresh() returned unexpected error: %v", err)
		}
		testutil.AssertRowCount(t, db, "performance_snapshot", n)
	})

	t.Run("user without transactions stores nothing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSnapshotService(t, db)

		n, err := svc.Refresh(context.Background(), testutil.TestUserID)
		if err != nil {
			t.Fatalf("Refresh() returned unexpected error: %v", err)
		}
		if n != 0 {
			t.Errorf("Expected 0 snapshots, got %d", n)
		}
	})

	t.Run("refresh all covers every user with an account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSnapshotService(t, db)
		mine := testutil.NewAccount().Build(t, db)
		theirs := testutil.NewAccount().WithUser("other-user").Build(t, db)
		testutil.NewTransaction(mine.ID).WithDate(testutil.Date(2025, 1, 1)).Build(t, db)
		testutil.NewTransaction(theirs.ID).WithUser("other-user").WithDate(testutil.Date(2025, 1, 1)).Build(t, db)

		if err := svc.RefreshAll(context.Background()); err != nil {
			t.Fatalf("RefreshAll() returned unexpected error: %v", err)
		}

		var users int
		if err := db.QueryRow(`SELECT COUNT(DISTINCT user_id) FROM performance_snapshot`).Scan(&users); err != nil {
			t.Fatalf("Failed to count snapshot users: %v", err)
		}
		if users != 2 {
			t.Errorf("Expected snapshots for 2 users, got %d", users)
		}
	})
}

// TestSnapshotService_GetHistoryWithFallback tests the choice between stored and replayed history.
//
// WHY: Stale snapshots must never be served for a range they do not cover,
// and an empty snapshot table must not produce an empty chart.
func TestSnapshotService_GetHistoryWithFallback(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestSnapshotService(t, db)
	ledgerSvc := testutil.NewTestLedgerService(t, db)
	account := testutil.NewAccount().Build(t, db)
	vti := testutil.NewHolding("VTI").Build(t, db)
	buy(t, ledgerSvc, account.ID, vti.ID, testutil.Date(2024, 1, 1), "10", "100")
	testutil.CreatePrice(t, db, vti.ID, testutil.Date(2024, 1, 1), 100)
	testutil.CreatePrice(t, db, vti.ID, testutil.Date(2024, 1, 3), 110)

	start := testutil.Date(2024, 1, 1)
	end := testutil.Date(2024, 1, 3)

	t.Run("replays when nothing is stored", func(t *testing.T) {
		points, err := svc.GetHistoryWithFallback(context.Background(), testutil.TestUserID, start, end)
		if err != nil {
			t.Fatalf("GetHistoryWithFallback() returned unexpected error: %v", err)
		}
		if len(points) != 3 {
			t.Fatalf("Expected 3 points, got %d", len(points))
		}
		if points[2].PortfolioValue != 1100 || points[2].Return != 10 {
			t.Errorf("Expected value 1100 and return 10, got %+v", points[2])
		}
	})

	t.Run("serves stored snapshots after a refresh", func(t *testing.T) {
		if _, err := svc.Refresh(context.Background(), testutil.TestUserID); err != nil {
			t.Fatalf("Refresh() returned unexpected error: %v", err)
		}

		stored, err := svc.GetHistoryMaterialized(context.Background(), testutil.TestUserID, start, end)
		if err != nil {
			t.Fatalf("GetHistoryMaterialized() returned unexpected error: %v", err)
		}
		if len(stored) != 3 {
			t.Fatalf("Expected 3 stored points, got %d", len(stored))
		}

		points, err := svc.GetHistoryWithFallback(context.Background(), testutil.TestUserID, start, end)
		if err != nil {
			t.Fatalf("GetHistoryWithFallback() returned unexpected error: %v", err)
		}
		if len(points) != 3 || points[2].PortfolioValue != stored[2].PortfolioValue {
			t.Errorf("Expected the stored history, got %+v", points)
		}
	})
}

// TestSnapshotScheduler tests scheduler lifecycle.
func TestSnapshotScheduler(t *testing.T) {
	t.Run("rejects an invalid schedule", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		scheduler := service.NewSnapshotScheduler(testutil.NewTestSnapshotService(t, db), logging.Discard())

		if err := scheduler.Start("not a cron expression"); err == nil {
			t.Fatal("Expected an error for an invalid schedule")
		}
	})

	t.Run("starts and stops with the default schedule", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		scheduler := service.NewSnapshotScheduler(testutil.NewTestSnapshotService(t, db), logging.Discard())

		if err := scheduler.Start(""); err != nil {
			t.Fatalf("Start() returned unexpected error: %v", err)
		}
		scheduler.Stop()
	})
}
