package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/portfolio-rebalancer/internal/api/middleware"
)

// TestUserScope tests that the user header scopes the request context.
//
// WHY: Every repository query filters by user id. A request that silently
// lost its user would read or write another user's portfolio.
func TestUserScope(t *testing.T) {
	capture := func(got *string) http.Handler {
		return http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			*got = middleware.UserID(r.Context())
		})
	}

	t.Run("uses the header value", func(t *testing.T) {
		var got string
		req := httptest.NewRequest(http.MethodGet, "/api/lots", nil)
		req.Header.Set(middleware.UserIDHeader, " alice ")

		middleware.UserScope(capture(&got)).ServeHTTP(httptest.NewRecorder(), req)

		if got != "alice" {
			t.Errorf("Expected user 'alice', got %q", got)
		}
	})

	t.Run("falls back to the default user", func(t *testing.T) {
		var got string
		req := httptest.NewRequest(http.MethodGet, "/api/lots", nil)

		middleware.UserScope(capture(&got)).ServeHTTP(httptest.NewRecorder(), req)

		if got != middleware.DefaultUserID {
			t.Errorf("Expected default user, got %q", got)
		}
	})

	t.Run("bare context reports the default user", func(t *testing.T) {
		if got := middleware.UserID(context.Background()); got != middleware.DefaultUserID {
			t.Errorf("Expected default user, got %q", got)
		}
	})
}
