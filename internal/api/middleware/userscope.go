package middleware

import (
	"context"
	"net/http"
	"strings"
)

// UserIDHeader carries the id of the user a request acts for.
const UserIDHeader = "X-User-ID"

// DefaultUserID is used when a request carries no user header.
const DefaultUserID = "default"

type userIDKey struct{}

// UserScope stores the requesting user id in the request context.
// Authentication happens upstream; this only scopes the data.
func UserScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			userID = DefaultUserID
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the user id stored by UserScope, or DefaultUserID.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok && id != "" {
		return id
	}
	return DefaultUserID
}
