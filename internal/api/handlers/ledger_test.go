package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/response"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/service"
	"github.com/ndewijer/portfolio-rebalancer/internal/testutil"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupLedgerHandler(t *testing.T) (*LedgerHandler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewLedgerHandler(testutil.NewTestLedgerService(t, db), testutil.NewTestReplayService(t, db)), db
}

func postTransaction(t *testing.T, h *LedgerHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPost, "/api/transactions", body, nil), testutil.TestUserID)
	w := httptest.NewRecorder()
	h.CreateTransaction(w, req)
	return w
}

func tradeBody(typ, accountID, holdingID, date, quantity, price string) string {
	return fmt.Sprintf(`{
		"accountId": %q,
		"holdingId": %q,
		"date": %q,
		"type": %q,
		"quantity": %s,
		"price": %s
	}`, accountID, holdingID, date, typ, quantity, price)
}

func TestLedgerHandler_CreateTransaction(t *testing.T) {
	t.Run("records a buy and opens a lot", func(t *testing.T) {
		handler, db := setupLedgerHandler(t)
		account := testutil.NewAccount().Build(t, db)
		holding := testutil.NewHolding("VTI").Build(t, db)

		w := postTransaction(t, handler, tradeBody("buy", account.ID, holding.ID, "2024-01-15", "10", "100"))

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}

		var result service.BuyResult
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&result)

		if result.Transaction.ID == "" || result.Lot.ID == "" {
			t.Errorf("Expected transaction and lot ids, got %+v", result)
		}
		if result.Lot.TransactionID != result.Transaction.ID {
			t.Errorf("Expected lot linked to transaction %s, got %s", result.Transaction.ID, result.Lot.TransactionID)
		}
		if !result.Transaction.Amount.Equal(dec("-1000")) {
			t.Errorf("Expected amount -1000, got %s", result.Transaction.Amount)
		}
		testutil.AssertRowCount(t, db, "tax_lot", 1)
	})

	t.Run("records a sell with realized gain", func(t *testing.T) {
		handler, db := setupLedgerHandler(t)
		account := testutil.NewAccount().Build(t, db)
		holding := testutil.NewHolding("VTI").Build(t, db)

		postTransaction(t, handler, tradeBody("buy", account.ID, holding.ID, "2024-01-15", "10", "100"))
		w := postTransaction(t, handler, tradeBody("sell", account.ID, holding.ID, "2024-02-15", "4", "120"))

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}

		var result service.SellResult
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&result)

		if !result.Transaction.RealizedGain.Equal(dec("80")) {
			t.Errorf("Expected realized gain 80, got %s", result.Transaction.RealizedGain)
		}
	})

	t.Run("records a deposit", func(t *testing.T) {
		handler, db := setupLedgerHandler(t)
		account := testutil.NewAccount().Build(t, db)

		body := `{"accountId": "` + account.ID + `", "date": "2024-01-01", "type": "deposit", "amount": "2500.50"}`
		w := postTransaction(t, handler, body)

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
		}

		var tx model.Transaction
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&tx)

		if tx.Type != model.TransactionDeposit || !tx.Amount.Equal(dec("2500.50")) {
			t.Errorf("Expected deposit of 2500.50, got %s %s", tx.Type, tx.Amount)
		}
	})

	t.Run("returns 409 when selling more than is open", func(t *testing.T) {
		handler, db := setupLedgerHandler(t)
		account := testutil.NewAccount().Build(t, db)
		holding := testutil.NewHolding("VTI").Build(t, db)

		postTransaction(t, handler, tradeBody("buy", account.ID, holding.ID, "2024-01-15", "5", "100"))
		w := postTransaction(t, handler, tradeBody("sell", account.ID, holding.ID, "2024-02-15", "6", "100"))

		if w.Code != http.StatusConflict {
			t.Fatalf("Expected 409, got %d: %s", w.Code, w.Body.String())
		}

		var resp response.ErrorResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&resp)

		details, ok := resp.Details.(map[string]any)
		if !ok || details["available"] != "5" || details["requested"] != "6" {
			t.Errorf("Expected lot details in response, got %+v", resp.Details)
		}
		testutil.AssertRowCount(t, db, "\"transaction\"", 1)
	})

	t.Run("returns 404 for an unknown account", func(t *testing.T) {
		handler, db := setupLedgerHandler(t)
		holding := testutil.NewHolding("VTI").Build(t, db)

		w := postTransaction(t, handler, tradeBody("buy", testutil.MakeID(), holding.ID, "2024-01-15", "1", "1"))

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("returns 404 for another user's account", func(t *testing.T) {
		handler, db := setupLedgerHandler(t)
		account := testutil.NewAccount().WithUser("someone-else").Build(t, db)
		holding := testutil.NewHolding("VTI").Build(t, db)

		w := postTransaction(t, handler, tradeBody("buy", account.ID, holding.ID, "2024-01-15", "1", "1"))

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("returns 400 on invalid JSON", func(t *testing.T) {
		handler, _ := setupLedgerHandler(t)

		w := postTransaction(t, handler, "invalid json")

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("returns 400 on unknown fields", func(t *testing.T) {
		handler, _ := setupLedgerHandler(t)

		w := postTransaction(t, handler, `{"portfolioFundId": "x"}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("returns 400 on validation failure", func(t *testing.T) {
		handler, db := setupLedgerHandler(t)
		account := testutil.NewAccount().Build(t, db)
		holding := testutil.NewHolding("VTI").Build(t, db)

		w := postTransaction(t, handler, tradeBody("buy", account.ID, holding.ID, "2024-01-15", "0", "100"))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
		testutil.AssertRowCount(t, db, "\"transaction\"", 0)
	})
}

func TestLedgerHandler_GetLots(t *testing.T) {
	t.Run("returns open lots filtered by account", func(t *testing.T) {
		handler, db := setupLedgerHandler(t)
		taxable := testutil.NewAccount().Build(t, db)
		ira := testutil.NewAccount().TaxAdvantaged().Build(t, db)
		holding := testutil.NewHolding("VTI").Build(t, db)

		postTransaction(t, handler, tradeBody("buy", taxable.ID, holding.ID, "2024-01-15", "10", "100"))
		postTransaction(t, handler, tradeBody("buy", ira.ID, holding.ID, "2024-01-16", "5", "100"))

		req := testutil.WithUser(testutil.NewRequestWithQueryParams(http.MethodGet, "/api/lots",
			map[string]string{"account": ira.ID}), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.GetLots(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var lots []model.TaxLot
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&lots)

		if len(lots) != 1 || lots[0].AccountID != ira.ID {
			t.Errorf("Expected the single IRA lot, got %+v", lots)
		}
	})

	t.Run("returns empty array for another user", func(t *testing.T) {
		handler, db := setupLedgerHandler(t)
		account := testutil.NewAccount().Build(t, db)
		holding := testutil.NewHolding("VTI").Build(t, db)
		postTransaction(t, handler, tradeBody("buy", account.ID, holding.ID, "2024-01-15", "10", "100"))

		req := testutil.WithUser(httptest.NewRequest(http.MethodGet, "/api/lots", nil), "someone-else")
		w := httptest.NewRecorder()

		handler.GetLots(w, req)

		if w.Body.String() != "[]\n" {
			t.Errorf("Expected empty array, got %s", w.Body.String())
		}
	})

	t.Run("returns 400 for malformed holding id", func(t *testing.T) {
		handler, _ := setupLedgerHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/lots", map[string]string{"holding": "abc"})
		w := httptest.NewRecorder()

		handler.GetLots(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})
}

func TestLedgerHandler_GetTransactions(t *testing.T) {
	t.Run("filters by date range", func(t *testing.T) {
		handler, db := setupLedgerHandler(t)
		account := testutil.NewAccount().Build(t, db)
		testutil.NewTransaction(account.ID).WithDate(testutil.Date(2024, 1, 1)).Build(t, db)
		testutil.NewTransaction(account.ID).WithDate(testutil.Date(2024, 3, 1)).Build(t, db)

		req := testutil.WithUser(testutil.NewRequestWithQueryParams(http.MethodGet, "/api/transactions",
			map[string]string{"start_date": "2024-02-01", "account": account.ID}), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.GetTransactions(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var txs []model.Transaction
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&txs)

		if len(txs) != 1 {
			t.Errorf("Expected 1 transaction, got %d", len(txs))
		}
	})

	t.Run("returns 400 for an inverted range", func(t *testing.T) {
		handler, _ := setupLedgerHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/transactions",
			map[string]string{"start_date": "2024-03-01", "end_date": "2024-01-01"})
		w := httptest.NewRecorder()

		handler.GetTransactions(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("returns 400 for malformed account ids", func(t *testing.T) {
		handler, _ := setupLedgerHandler(t)

		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/transactions",
			map[string]string{"account": "abc,def"})
		w := httptest.NewRecorder()

		handler.GetTransactions(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})
}

func TestLedgerHandler_Verify(t *testing.T) {
	t.Run("reports a consistent ledger", func(t *testing.T) {
		handler, db := setupLedgerHandler(t)
		account := testutil.NewAccount().Build(t, db)
		holding := testutil.NewHolding("VTI").Build(t, db)
		postTransaction(t, handler, tradeBody("buy", account.ID, holding.ID, "2024-01-15", "10", "100"))
		postTransaction(t, handler, tradeBody("sell", account.ID, holding.ID, "2024-02-15", "3", "110"))

		req := testutil.WithUser(httptest.NewRequest(http.MethodGet, "/api/ledger/verify", nil), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.Verify(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var report service.ReplayReport
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&report)

		if !report.Consistent || report.Transactions != 2 || report.StoredLots != 1 {
			t.Errorf("Expected a consistent ledger with 2 transactions and 1 lot, got %+v", report)
		}
	})

	t.Run("reports lots without an originating buy", func(t *testing.T) {
		handler, db := setupLedgerHandler(t)
		account := testutil.NewAccount().Build(t, db)
		holding := testutil.NewHolding("VTI").Build(t, db)
		testutil.CreateLot(t, db, holding.ID, account.ID, testutil.Date(2024, 1, 1), 10, 50)

		req := testutil.WithUser(httptest.NewRequest(http.MethodGet, "/api/ledger/verify", nil), testutil.TestUserID)
		w := httptest.NewRecorder()

		handler.Verify(w, req)

		var report service.ReplayReport
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&report)

		if report.Consistent || len(report.Unexpected) != 1 {
			t.Errorf("Expected one unexpected lot, got %+v", report)
		}
	})
}
