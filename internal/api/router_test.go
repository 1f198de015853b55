package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/middleware"
	"github.com/ndewijer/portfolio-rebalancer/internal/config"
	"github.com/ndewijer/portfolio-rebalancer/internal/logging"
	"github.com/ndewijer/portfolio-rebalancer/internal/model"
	"github.com/ndewijer/portfolio-rebalancer/internal/testutil"
)

func newTestServer(t *testing.T, limiters *middleware.LimiterStore) *httptest.Server {
	t.Helper()
	db := testutil.SetupTestDB(t)

	svc := testutil.NewTestServices(t, db)
	cfg := &config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}}

	srv := httptest.NewServer(NewRouter(svc, limiters, cfg, logging.Discard()))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, user, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if user != "" {
		req.Header.Set(middleware.UserIDHeader, user)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestRouter_EndToEnd drives a portfolio through the public routes.
//
// WHY: Handlers are unit tested on their own. This checks the wiring: route
// patterns, URL parameter names, user scoping from the header and the
// middleware order.
func TestRouter_EndToEnd(t *testing.T) {
	srv := newTestServer(t, middleware.NewLimiterStore(1000, 1000))
	const user = "alice"

	groupID := testutil.MakeID()
	resp := do(t, srv, http.MethodPut, "/api/groups/"+groupID, user,
		`{"name": "Equity", "targetPct": 100, "upsideThreshold": 5, "downsideThreshold": 5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT group: expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodPut, "/api/groups/not-a-uuid", user, `{"name": "x"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("PUT group with bad id: expected 400, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodGet, "/api/groups", user, "")
	var groups []model.Group
	//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
	json.NewDecoder(resp.Body).Decode(&groups)
	if len(groups) != 1 || groups[0].UserID != user {
		t.Fatalf("Expected alice's group, got %+v", groups)
	}

	resp = do(t, srv, http.MethodGet, "/api/groups", "bob", "")
	var bobGroups []model.Group
	//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
	json.NewDecoder(resp.Body).Decode(&bobGroups)
	if len(bobGroups) != 0 {
		t.Errorf("Expected bob to see no groups, got %+v", bobGroups)
	}

	resp = do(t, srv, http.MethodGet, "/api/system/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Health: expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Expected JSON response, got %q", resp.Header.Get("Content-Type"))
	}

	resp = do(t, srv, http.MethodGet, "/api/rebalance", user, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Rebalance: expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodGet, "/api/performance?lens=account", user, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Performance: expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodGet, "/api/ledger/verify", user, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Verify: expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodPost, "/api/transactions", user, `{"accountId": "`+testutil.MakeID()+`", "date": "2024-01-01", "type": "deposit", "amount": 10}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Deposit into unknown account: expected 404, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodPost, "/api/accounts", user, `{"name": "Brokerage"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST account: expected 201, got %d", resp.StatusCode)
	}
	var account model.Account
	//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
	json.NewDecoder(resp.Body).Decode(&account)

	resp = do(t, srv, http.MethodPost, "/api/holdings", user, `{"ticker": "VTI", "groupId": "`+groupID+`"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("POST holding: expected 201, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodPost, "/api/transactions", user, `{"accountId": "`+account.ID+`", "date": "2024-01-01", "type": "deposit", "amount": 10}`)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Deposit into new account: expected 201, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodGet, "/api/holdings", "bob", "")
	var bobHoldings []model.Holding
	//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
	json.NewDecoder(resp.Body).Decode(&bobHoldings)
	if len(bobHoldings) != 0 {
		t.Errorf("Expected bob to see no holdings, got %+v", bobHoldings)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	srv := newTestServer(t, middleware.NewLimiterStore(0.001, 2))

	for i := range 2 {
		if resp := do(t, srv, http.MethodGet, "/api/lots", "alice", ""); resp.StatusCode != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i, resp.StatusCode)
		}
	}

	resp := do(t, srv, http.MethodGet, "/api/lots", "alice", "")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Expected a Retry-After header")
	}

	// System routes are not limited
	if resp := do(t, srv, http.MethodGet, "/api/system/health", "alice", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("Health: expected 200, got %d", resp.StatusCode)
	}
}
