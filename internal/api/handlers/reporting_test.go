package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/testutil"
)

// seedPortfolio stores one group with VTI and BND at 50/50, VTI bought at 10
// and BND at 20, both now priced at 10 on 2024-06-01.
func seedPortfolio(t *testing.T, db *sql.DB) (model.Holding, model.Holding) {
	t.Helper()

	account := testutil.NewAccount().Build(t, db)
	group := testutil.NewGroup().WithTarget(100).WithThresholds(5, 5).Build(t, db)
	vti := testutil.NewHolding("VTI").InGroup(group.ID, 50).Build(t, db)
	bnd := testutil.NewHolding("BND").InGroup(group.ID, 50).WithTags("bond", "us").Build(t, db)

	ledger := NewLedgerHandler(testutil.NewTestLedgerService(t, db), testutil.NewTestReplayService(t, db))
	postTransaction(t, ledger, tradeBody("buy", account.ID, vti.ID, "2024-01-02", "70", "10"))
	postTransaction(t, ledger, tradeBody("buy", account.ID, bnd.ID, "2024-01-02", "30", "20"))

	testutil.CreatePrice(t, db, vti.ID, testutil.Date(2024, 1, 2), 10)
	testutil.CreatePrice(t, db, bnd.ID, testutil.Date(2024, 1, 2), 20)
	testutil.CreatePrice(t, db, vti.ID, testutil.Date(2024, 6, 1), 10)
	testutil.CreatePrice(t, db, bnd.ID, testutil.Date(2024, 6, 1), 10)
	return vti, bnd
}

func TestRebalanceHandler_GetRebalance(t *testing.T) {
	setup := func(t *testing.T) (*RebalanceHandler, *sql.DB) {
		t.Helper()
		db := testutil.SetupTestDB(t)
		return NewRebalanceHandler(testutil.NewTestRebalanceService(t, db)), db
	}

	t.Run("returns the drift of every holding", func(t *testing.T) {
		handler, db := setup(t)
		vti, bnd := seedPortfolio(t, db)

		req := testutil.WithUser(testutil.NewRequestWithQueryParams(http.MethodGet, "/api/rebalance",
			map[string]string{"as_of": "2024-06-01"}), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.GetRebalance(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var report model.RebalanceReport
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&report)

		if report.TotalValue != 1000 {
			t.Errorf("Expected total value 1000, got %v", report.TotalValue)
		}
		actions := map[string]model.Action{}
		for _, h := range report.Holdings {
			actions[h.HoldingID] = h.Action
		}
		if actions[vti.ID] != model.ActionSell || actions[bnd.ID] != model.ActionBuy {
			t.Errorf("Expected sell VTI and buy BND, got %v", actions)
		}
	})

	t.Run("returns 404 for an unknown group filter", func(t *testing.T) {
		handler, db := setup(t)
		seedPortfolio(t, db)

		req := testutil.WithUser(testutil.NewRequestWithQueryParams(http.MethodGet, "/api/rebalance",
			map[string]string{"group": testutil.MakeID()}), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.GetRebalance(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("returns 400 for a malformed flag", func(t *testing.T) {
		handler, _ := setup(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/rebalance", map[string]string{"tax_aware": "perhaps"})
		w := httptest.NewRecorder()

		handler.GetRebalance(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})
}

func TestPerformanceHandler(t *testing.T) {
	setup := func(t *testing.T) (*PerformanceHandler, *sql.DB) {
		t.Helper()
		db := testutil.SetupTestDB(t)
		return NewPerformanceHandler(testutil.NewTestPerformanceService(t, db, ""), testutil.NewTestSnapshotService(t, db)), db
	}

	t.Run("returns one series per holding", func(t *testing.T) {
		handler, db := setup(t)
		seedPortfolio(t, db)

		req := testutil.WithUser(testutil.NewRequestWithQueryParams(http.MethodGet, "/api/performance",
			map[string]string{
				"start_date": "2024-01-02",
				"end_date":   "2024-06-01",
				"lens":       "holding",
				"aggregate":  "true",
			}), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.GetPerformance(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var report model.PerformanceReport
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&report)

		if len(report.Series) != 3 {
			t.Fatalf("Expected VTI, BND and total series, got %d", len(report.Series))
		}
		for _, s := range report.Series {
			if s.Key == model.TotalSeriesKey {
				last := s.Points[len(s.Points)-1]
				// 700 + 300 at the end, 700 + 600 paid
				if last.PortfolioValue != 1000 || last.Unrealized != -300 {
					t.Errorf("Expected value 1000 and unrealized -300, got %+v", last)
				}
			}
		}
	})

	t.Run("returns 400 for an unknown lens", func(t *testing.T) {
		handler, _ := setup(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/performance", map[string]string{"lens": "sector"})
		w := httptest.NewRecorder()

		handler.GetPerformance(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("returns 400 for an inverted range", func(t *testing.T) {
		handler, _ := setup(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/performance",
			map[string]string{"start_date": "2024-06-01", "end_date": "2024-01-01"})
		w := httptest.NewRecorder()

		handler.GetPerformance(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("history replays when nothing is stored", func(t *testing.T) {
		handler, db := setup(t)
		seedPortfolio(t, db)

		req := testutil.WithUser(testutil.NewRequestWithQueryParams(http.MethodGet, "/api/performance/history",
			map[string]string{"start_date": "2024-05-30", "end_date": "2024-06-01"}), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.GetHistory(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var points []model.PerformancePoint
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&points)

		if len(points) != 3 {
			t.Errorf("Expected 3 daily points, got %d", len(points))
		}
	})
}
