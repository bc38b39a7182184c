package httpapi

import (
	"net/http"

	"fintrack.org/internal/auth"
)

// RequireRole is the coarse, token-based guard: it checks only the role-name
// snapshot carried by the claims, case-insensitively, with no directory
// round-trip. Routes that also declare a fine-grained permission must satisfy
// both this and the live permission check.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="fintrack"`)
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if !auth.AuthorizeRole(claims.Roles, role) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="fintrack"`)
				writeError(w, r, http.StatusForbidden, "You do not have permission to access this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ensureRole applies the coarse role guard inline and reports whether the
// request may proceed.
func (a *API) ensureRole(w http.ResponseWriter, r *http.Request, role string) bool {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}
	if !auth.AuthorizeRole(claims.Roles, role) {
		writeError(w, r, http.StatusForbidden, "You do not have permission to access this resource")
		return false
	}
	return true
}

// ensurePermission resolves the caller's effective permissions live against
// the directory; administrators bypass explicit grants.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, perm string) bool {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}
	allowed, err := a.gateway.Resolver().Authorize(r.Context(), userID, perm)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "authorization check failed")
		return false
	}
	if !allowed {
		writeError(w, r, http.StatusForbidden, "You do not have permission to access this resource")
		return false
	}
	return true
}
