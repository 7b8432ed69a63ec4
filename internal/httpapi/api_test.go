package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"savdo.org/internal/auth"
)

const (
	apiTestAccessSecret  = "access-secret-0123456789-0123456789-ab"
	apiTestRefreshSecret = "refresh-secret-0123456789-0123456789-a"
)

func newTestAPI(t *testing.T) (*API, http.Handler, *auth.MemoryUserStore) {
	t.Helper()
	users := auth.NewMemoryUserStore(nil)
	sessions := auth.NewMemorySessionStore(720*time.Hour, true, nil)
	ledger := auth.NewMemoryRevocationLedger(nil)

	codec, err := auth.NewCodec(apiTestAccessSecret, apiTestRefreshSecret, 30*time.Minute, 720*time.Hour)
	require.NoError(t, err)
	svc, err := auth.NewService(users, sessions, ledger, codec, auth.NewHasher(10))
	require.NoError(t, err)

	api := New(svc, ReadyProbe{}, nil, "test")
	return api, api.Handler(), users
}

func seedAPIUser(t *testing.T, users *auth.MemoryUserStore, id, email, password string, role auth.Role) {
	t.Helper()
	hash, err := auth.NewHasher(10).Hash(password)
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &auth.User{
		ID: id, Email: email, Username: id, Role: role, Active: true, PasswordHash: hash,
	}))
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeTokens(t *testing.T, rr *httptest.ResponseRecorder) tokenResponse {
	t.Helper()
	var out tokenResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func TestLoginEndpoint(t *testing.T) {
	_, h, users := newTestAPI(t)
	seedAPIUser(t, users, "u1", "u1@example.com", "pw-one", auth.RoleCustomer)

	rr := postJSON(t, h, "/v1/auth/login", map[string]string{
		"identifier": "u1@example.com",
		"password":   "pw-one",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	tokens := decodeTokens(t, rr)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	require.Equal(t, "u1", tokens.User.ID)
	require.Equal(t, "customer", tokens.User.Role)

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == accessCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "login must set the access cookie")
	require.True(t, cookie.HttpOnly)
	require.Equal(t, tokens.AccessToken, cookie.Value)
}

func TestLoginEndpointUniformRejection(t *testing.T) {
	_, h, users := newTestAPI(t)
	seedAPIUser(t, users, "u1", "u1@example.com", "pw-one", auth.RoleCustomer)

	for name, body := range map[string]map[string]string{
		"wrong password": {"identifier": "u1@example.com", "password": "nope"},
		"unknown user":   {"identifier": "ghost@example.com", "password": "pw-one"},
	} {
		rr := postJSON(t, h, "/v1/auth/login", body)
		require.Equal(t, http.StatusUnauthorized, rr.Code, name)

		var out map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
		require.Equal(t, "invalid credentials", out["error"], name)
		require.NotEmpty(t, out["request_id"], name)
	}
}

func TestMeRequiresToken(t *testing.T) {
	_, h, users := newTestAPI(t)
	seedAPIUser(t, users, "u1", "u1@example.com", "pw-one", auth.RoleVendor)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	login := postJSON(t, h, "/v1/auth/login", map[string]string{
		"identifier": "u1@example.com", "password": "pw-one",
	})
	tokens := decodeTokens(t, login)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		User         userBody `json:"user"`
		Capabilities []string `json:"capabilities"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	require.Equal(t, "u1", out.User.ID)
	require.Contains(t, out.Capabilities, "catalog.write")
	require.NotContains(t, out.Capabilities, "users.manage")
}

func TestMeAcceptsCookie(t *testing.T) {
	_, h, users := newTestAPI(t)
	seedAPIUser(t, users, "u1", "u1@example.com", "pw-one", auth.RoleCustomer)

	login := postJSON(t, h, "/v1/auth/login", map[string]string{
		"identifier": "u1@example.com", "password": "pw-one",
	})
	tokens := decodeTokens(t, login)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: accessCookie, Value: tokens.AccessToken})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRefreshEndpointRotates(t *testing.T) {
	_, h, users := newTestAPI(t)
	seedAPIUser(t, users, "u1", "u1@example.com", "pw-one", auth.RoleCustomer)

	login := postJSON(t, h, "/v1/auth/login", map[string]string{
		"identifier": "u1@example.com", "password": "pw-one",
	})
	first := decodeTokens(t, login)

	rr := postJSON(t, h, "/v1/auth/refresh", map[string]string{"refresh_token": first.RefreshToken})
	require.Equal(t, http.StatusOK, rr.Code)
	second := decodeTokens(t, rr)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// Replaying the rotated token is refused with the generic message.
	rr = postJSON(t, h, "/v1/auth/refresh", map[string]string{"refresh_token": first.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	var out map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	require.Equal(t, "invalid or expired token", out["error"])
}

func TestLogoutEndpoint(t *testing.T) {
	_, h, users := newTestAPI(t)
	seedAPIUser(t, users, "u1", "u1@example.com", "pw-one", auth.RoleCustomer)

	login := postJSON(t, h, "/v1/auth/login", map[string]string{
		"identifier": "u1@example.com", "password": "pw-one",
	})
	tokens := decodeTokens(t, login)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout",
		bytes.NewReader([]byte(`{"refresh_token":"`+tokens.RefreshToken+`"}`)))
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	// The pair is dead afterwards.
	me := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	me.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, me)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = postJSON(t, h, "/v1/auth/refresh", map[string]string{"refresh_token": tokens.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestExternalLoginIgnoresSmuggledRole(t *testing.T) {
	_, h, _ := newTestAPI(t)

	rr := postJSON(t, h, "/v1/auth/external", map[string]string{
		"external_id": "ext-42",
		"username":    "wanderer",
		"role":        "admin",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	tokens := decodeTokens(t, rr)
	require.Equal(t, "customer", tokens.User.Role)
	require.Equal(t, "wanderer", tokens.User.Username)
}

func TestSessionEndpoints(t *testing.T) {
	_, h, users := newTestAPI(t)
	seedAPIUser(t, users, "u1", "u1@example.com", "pw-one", auth.RoleCustomer)
	seedAPIUser(t, users, "u2", "u2@example.com", "pw-two", auth.RoleCustomer)

	first := decodeTokens(t, postJSON(t, h, "/v1/auth/login", map[string]string{
		"identifier": "u1@example.com", "password": "pw-one",
	}))
	second := decodeTokens(t, postJSON(t, h, "/v1/auth/login", map[string]string{
		"identifier": "u1@example.com", "password": "pw-one",
	}))
	other := decodeTokens(t, postJSON(t, h, "/v1/auth/login", map[string]string{
		"identifier": "u2@example.com", "password": "pw-two",
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+second.AccessToken)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var listed struct {
		Sessions []sessionBody `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&listed))
	require.Len(t, listed.Sessions, 2)

	// Someone else's session is indistinguishable from an absent one.
	req = httptest.NewRequest(http.MethodDelete, "/v1/auth/sessions/"+other.User.ID, nil)
	req.Header.Set("Authorization", "Bearer "+second.AccessToken)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)

	// Destroying the first session invalidates its access token.
	var firstID string
	for _, s := range listed.Sessions {
		if !s.Current {
			firstID = s.ID
		}
	}
	require.NotEmpty(t, firstID)
	req = httptest.NewRequest(http.MethodDelete, "/v1/auth/sessions/"+firstID, nil)
	req.Header.Set("Authorization", "Bearer "+second.AccessToken)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	me := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	me.Header.Set("Authorization", "Bearer "+first.AccessToken)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, me)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHealthz(t *testing.T) {
	_, h, _ := newTestAPI(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var out map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	require.Equal(t, "ok", out["status"])
	require.Equal(t, serviceName, out["service"])
}

func TestMethodNotAllowed(t *testing.T) {
	_, h, _ := newTestAPI(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/auth/login", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	require.Equal(t, http.MethodPost, rr.Header().Get("Allow"))
}
