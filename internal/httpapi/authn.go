package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"savdo.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	// accessCookie lets browser clients carry the access token in an
	// HTTP-only cookie; header and cookie are accepted interchangeably.
	accessCookie = "savdo_access"
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/external",
	"/v1/auth/refresh",
	"/v1/auth/logout",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractAccessToken(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		principal, _, err := a.auth.VerifyAndLoadAccess(r.Context(), token)
		if err != nil {
			status, msg := classifyAuthError(err)
			respondError(w, status, msg)
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCapability guards a route: 401 without a verified principal, 403
// when the principal's role does not grant the capability.
func RequireCapability(capability auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				respondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if !principal.HasCapability(capability) {
				respondError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// classifyAuthError maps verification failures onto uniform responses. The
// precise internal cause stays server-side.
func classifyAuthError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, auth.ErrStoreUnavailable):
		return http.StatusInternalServerError, "authentication error"
	default:
		return http.StatusUnauthorized, "invalid or expired token"
	}
}

// extractAccessToken accepts the Authorization header or the access cookie,
// in that order.
func extractAccessToken(r *http.Request) (string, error) {
	if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
		return extractBearerToken(header)
	}
	if cookie, err := r.Cookie(accessCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", errors.New("missing bearer token")
}

func extractBearerToken(header string) (string, error) {
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
