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

func setupAllocationHandler(t *testing.T) (*AllocationHandler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewAllocationHandler(testutil.NewTestAllocationService(t, db), testutil.NewTestPriceService(t, db)), db
}

func TestAllocationHandler_SaveGroup(t *testing.T) {
	t.Run("creates then updates a group", func(t *testing.T) {
		handler, _ := setupAllocationHandler(t)
		id := testutil.MakeID()

		for _, target := range []string{"60", "70"} {
			body := `{"name": "Equity", "targetPct": ` + target + `, "upsideThreshold": 5, "downsideThreshold": 5}`
			req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPut, "/api/groups/"+id, body,
				map[string]string{"uuid": id}), testutil.TestUserID)
			w := httptest.NewRecorder()

			handler.SaveGroup(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
			}
		}

		req := testutil.WithUser(httptest.NewRequest(http.MethodGet, "/api/groups", nil), testutil.TestUserID)
		w := httptest.NewRecorder()
		handler.GetGroups(w, req)

		var groups []model.Group
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&groups)

		if len(groups) != 1 || groups[0].TargetPct != 70 {
			t.Errorf("Expected one group at 70%%, got %+v", groups)
		}
	})

	t.Run("returns 400 for a target above 100", func(t *testing.T) {
		handler, db := setupAllocationHandler(t)
		id := testutil.MakeID()

		req := testutil.NewRequestWithBody(http.MethodPut, "/api/groups/"+id, `{"name": "Equity", "targetPct": 101}`,
			map[string]string{"uuid": id})
		w := httptest.NewRecorder()

		handler.SaveGroup(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
		testutil.AssertRowCount(t, db, "asset_group", 0)
	})

	t.Run("returns 404 when the id belongs to another user", func(t *testing.T) {
		handler, db := setupAllocationHandler(t)
		other := testutil.NewGroup().WithUser("someone-else").Build(t, db)

		req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPut, "/api/groups/"+other.ID,
			`{"name": "Hijack", "targetPct": 10}`, map[string]string{"uuid": other.ID}), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.SaveGroup(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestAllocationHandler_SaveTarget(t *testing.T) {
	t.Run("moves a holding into a group", func(t *testing.T) {
		handler, db := setupAllocationHandler(t)
		group := testutil.NewGroup().Build(t, db)
		holding := testutil.NewHolding("VTI").Build(t, db)

		req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPut, "/api/targets/"+holding.ID,
			`{"groupId": "`+group.ID+`", "targetPct": 40}`, map[string]string{"uuid": holding.ID}), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.SaveTarget(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var got model.Holding
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&got)

		if got.Target == nil || got.Target.GroupID != group.ID || got.Target.TargetPct != 40 {
			t.Errorf("Expected target 40%% in %s, got %+v", group.ID, got.Target)
		}
	})

	t.Run("returns 404 for an unknown group", func(t *testing.T) {
		handler, db := setupAllocationHandler(t)
		holding := testutil.NewHolding("VTI").Build(t, db)

		req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPut, "/api/targets/"+holding.ID,
			`{"groupId": "`+testutil.MakeID()+`", "targetPct": 40}`, map[string]string{"uuid": holding.ID}), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.SaveTarget(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestAllocationHandler_SavePrices(t *testing.T) {
	t.Run("stores a batch", func(t *testing.T) {
		handler, db := setupAllocationHandler(t)
		holding := testutil.NewHolding("VTI").Build(t, db)

		body := `{"prices": [
			{"holdingId": "` + holding.ID + `", "date": "2024-01-02", "price": 101.5},
			{"holdingId": "` + holding.ID + `", "date": "2024-01-03", "price": 102}
		]}`
		req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPost, "/api/prices", body, nil), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.SavePrices(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp SavePricesResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&resp)

		if resp.Saved != 2 {
			t.Errorf("Expected 2 saved, got %d", resp.Saved)
		}
		testutil.AssertRowCount(t, db, "price_point", 2)
	})

	t.Run("rejects the whole batch for an unknown holding", func(t *testing.T) {
		handler, db := setupAllocationHandler(t)
		holding := testutil.NewHolding("VTI").Build(t, db)

		body := `{"prices": [
			{"holdingId": "` + holding.ID + `", "date": "2024-01-02", "price": 101.5},
			{"holdingId": "` + testutil.MakeID() + `", "date": "2024-01-02", "price": 50}
		]}`
		req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPost, "/api/prices", body, nil), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.SavePrices(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
		}
		testutil.AssertRowCount(t, db, "price_point", 0)
	})

	t.Run("returns 400 for a non-positive price", func(t *testing.T) {
		handler, db := setupAllocationHandler(t)
		holding := testutil.NewHolding("VTI").Build(t, db)

		body := `{"prices": [{"holdingId": "` + holding.ID + `", "date": "2024-01-02", "price": 0}]}`
		req := testutil.NewRequestWithBody(http.MethodPost, "/api/prices", body, nil)
		w := httptest.NewRecorder()

		handler.SavePrices(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestAllocationHandler_Accounts(t *testing.T) {
	t.Run("creates a taxable account by default", func(t *testing.T) {
		handler, _ := setupAllocationHandler(t)

		req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPost, "/api/accounts",
			`{"name": "Brokerage"}`, nil), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.CreateAccount(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}

		req = testutil.WithUser(httptest.NewRequest(http.MethodGet, "/api/accounts", nil), testutil.TestUserID)
		w = httptest.NewRecorder()
		handler.GetAccounts(w, req)

		var accounts []model.Account
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&accounts)

		if len(accounts) != 1 || accounts[0].TaxStatus != model.TaxStatusTaxable {
			t.Errorf("Expected one taxable account, got %+v", accounts)
		}
	})

	t.Run("returns 400 for an unknown tax status", func(t *testing.T) {
		handler, db := setupAllocationHandler(t)

		req := testutil.NewRequestWithBody(http.MethodPost, "/api/accounts",
			`{"name": "Offshore", "taxStatus": "exempt"}`, nil)
		w := httptest.NewRecorder()

		handler.CreateAccount(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
		testutil.AssertRowCount(t, db, "account", 0)
	})
}

func TestAllocationHandler_Holdings(t *testing.T) {
	t.Run("creates a holding in a group", func(t *testing.T) {
		handler, db := setupAllocationHandler(t)
		group := testutil.NewGroup().Build(t, db)

		req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPost, "/api/holdings",
			`{"ticker": "vxus", "name": "Total International", "geography": "intl", "groupId": "`+group.ID+`"}`, nil),
			testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.CreateHolding(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}

		var holding model.Holding
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&holding)

		if holding.Ticker != "VXUS" || holding.GroupID != group.ID {
			t.Errorf("Unexpected holding %+v", holding)
		}
	})

	t.Run("returns 400 for a duplicate ticker", func(t *testing.T) {
		handler, db := setupAllocationHandler(t)
		testutil.NewHolding("VTI").Build(t, db)

		req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPost, "/api/holdings",
			`{"ticker": "VTI"}`, nil), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.CreateHolding(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("returns 404 for an unknown group", func(t *testing.T) {
		handler, db := setupAllocationHandler(t)

		req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPost, "/api/holdings",
			`{"ticker": "VTI", "groupId": "`+testutil.MakeID()+`"}`, nil), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.CreateHolding(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
		}
		testutil.AssertRowCount(t, db, "holding", 0)

		req = testutil.WithUser(httptest.NewRequest(http.MethodGet, "/api/holdings", nil), testutil.TestUserID)
		w = httptest.NewRecorder()
		handler.GetHoldings(w, req)

		if w.Code != http.StatusOK || w.Body.String() != "[]\n" {
			t.Errorf("Expected an empty list, got %d: %q", w.Code, w.Body.String())
		}
	})
}
