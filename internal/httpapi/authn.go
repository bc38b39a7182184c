package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"fintrack.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Routes that must never require a prior session.
var publicPaths = []string{
	"/auth/login",
	"/auth/register",
	"/auth/forgot-password",
	"/metrics",
	"/healthz",
	"/readyz",
}

// withAuth verifies the bearer token and then applies the inactivity policy.
// Both checks run before any handler; the policy is stricter than the token's
// own expiry and can reject a signature-valid token.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.gateway.Tokens().Verify(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if err := a.gateway.Sessions().CheckInactivity(claims); err != nil {
			if errors.Is(err, auth.ErrSessionExpired) {
				writeError(w, r, http.StatusUnauthorized, "Session expired due to inactivity")
				return
			}
			writeError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
