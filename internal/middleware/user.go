package middleware

import (
	"context"
	"net/http"
	"strings"
)

// Identity headers set by the upstream identity proxy.
const (
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"

	RoleAdmin = "admin"

	IdentityContextKey contextKey = "identity"
)

// Identity is the caller as asserted by the identity proxy.
type Identity struct {
	UserID string
	Role   string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// WithIdentity reads the identity headers into the request context.
// Requests without headers pass through with an empty identity.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID: strings.TrimSpace(r.Header.Get(UserIDHeader)),
			Role:   strings.ToLower(strings.TrimSpace(r.Header.Get(UserRoleHeader))),
		}
		ctx := context.WithValue(r.Context(), IdentityContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects requests without a user id with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r.Context()).UserID == "" {
			respondUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests that are not from an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := GetIdentity(r.Context())
		if id.UserID == "" {
			respondUnauthorized(w, r)
			return
		}
		if !id.IsAdmin() {
			respondForbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetIdentity returns the caller identity, or the zero Identity.
func GetIdentity(ctx context.Context) Identity {
	id, _ := ctx.Value(IdentityContextKey).(Identity)
	return id
}

// GetUserID returns the caller's user id, or "".
func GetUserID(ctx context.Context) string {
	return GetIdentity(ctx).UserID
}
