package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"savdo.org/internal/audit"
	"savdo.org/internal/auth"
)

type sessionBody struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Current   bool      `json:"current,omitempty"`
}

// handleSessions lists the caller's live sessions, oldest first.
func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	list, err := a.auth.Sessions(r.Context(), principal.User.ID)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	current := ""
	if token, ok := auth.TokenFromContext(r.Context()); ok {
		if sid, ok := auth.UnverifiedSessionID(token); ok {
			current = sid
		}
	}
	out := make([]sessionBody, 0, len(list))
	for _, info := range list {
		out = append(out, sessionBody{
			ID:        info.ID,
			CreatedAt: info.CreatedAt,
			Current:   info.ID == current,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// handleSessionByID destroys one of the caller's own sessions. Sessions the
// caller does not own are indistinguishable from absent ones.
func (a *API) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	sessionID := strings.TrimPrefix(r.URL.Path, "/v1/auth/sessions/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	if err := a.auth.DestroyOwnSession(r.Context(), principal.User.ID, sessionID); err != nil {
		writeError(w, r, http.StatusNotFound, "session not found")
		return
	}
	audit.Event(r.Context(), a.logger, "session_destroyed", zap.String("session_id", sessionID))
	w.WriteHeader(http.StatusNoContent)
}
