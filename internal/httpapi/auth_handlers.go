package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"savdo.org/internal/audit"
	"savdo.org/internal/auth"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type externalLoginRequest struct {
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	User             userBody  `json:"user"`
}

type userBody struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role"`
}

func userBodyFrom(u auth.User) userBody {
	return userBody{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, pair, err := a.auth.AuthenticateWithPassword(r.Context(), req.Identifier, req.Password)
	if err != nil {
		audit.Event(r.Context(), a.logger, "login_rejected", zap.String("method", "password"))
		writeError(w, r, statusForLoginError(err), "invalid credentials")
		return
	}
	audit.Event(r.Context(), a.logger, "login",
		zap.String("method", "password"),
		zap.String("user_id", user.ID),
		zap.String("session_id", pair.SessionID),
	)
	a.setAccessCookie(w, pair)
	writeJSON(w, http.StatusOK, pairResponse(user, pair))
}

func (a *API) handleExternalLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req externalLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	hints := auth.ProfileHints{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	user, pair, err := a.auth.AuthenticateWithExternalIdentity(r.Context(), req.ExternalID, hints)
	if err != nil {
		audit.Event(r.Context(), a.logger, "login_rejected", zap.String("method", "external"))
		writeError(w, r, statusForLoginError(err), "invalid credentials")
		return
	}
	audit.Event(r.Context(), a.logger, "login",
		zap.String("method", "external"),
		zap.String("user_id", user.ID),
		zap.String("session_id", pair.SessionID),
	)
	a.setAccessCookie(w, pair)
	writeJSON(w, http.StatusOK, pairResponse(user, pair))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}
	user, pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		audit.Event(r.Context(), a.logger, "refresh_rejected")
		writeError(w, r, statusForRefreshError(err), "invalid or expired token")
		return
	}
	audit.Event(r.Context(), a.logger, "refresh",
		zap.String("user_id", user.ID),
		zap.String("session_id", pair.SessionID),
	)
	a.setAccessCookie(w, pair)
	writeJSON(w, http.StatusOK, pairResponse(user, pair))
}

// handleLogout revokes what it is given and always answers 204. Revoking an
// already-dead token is not an error worth surfacing.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req logoutRequest
	_ = decodeJSON(r, &req)

	accessToken, _ := extractAccessToken(r)
	a.auth.Logout(r.Context(), accessToken, req.RefreshToken, "")
	audit.Event(r.Context(), a.logger, "logout")
	a.clearAccessCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	resolved := auth.CapabilitiesFor(principal.User.Role)
	caps := make([]string, 0, len(resolved))
	for _, c := range resolved {
		caps = append(caps, string(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         userBodyFrom(principal.User),
		"capabilities": caps,
	})
}

func pairResponse(user auth.User, pair auth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		User:             userBodyFrom(user),
	}
}

func (a *API) setAccessCookie(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearAccessCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func statusForLoginError(err error) int {
	switch {
	case errors.Is(err, auth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrAccountInactive):
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

func statusForRefreshError(err error) int {
	switch {
	case errors.Is(err, auth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrAccountInactive):
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}
