package middleware

import (
	"net/http"

	"github.com/outreach-portal/server/internal/auth"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/login"

// RequireAuth passes requests carrying a resolved identity and redirects the
// rest to the login page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.IdentityFromContext(r.Context()); !ok {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin is RequireAuth plus the admin role. Non-admins get a generic
// 403, never a redirect.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		if !id.IsAdmin() {
			Forbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RequireSelfOrAdmin is RequireAuth plus either the admin role or a match
// between the session user and the numeric path value param. A missing or
// non-numeric value never matches.
func RequireSelfOrAdmin(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := auth.IdentityFromContext(r.Context())
			if !auth.CanAccessUser(id, r.PathValue(param)) {
				Forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
