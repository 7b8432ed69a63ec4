package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const (
	testAccessSecret  = "access-secret-0123456789-0123456789-ab"
	testRefreshSecret = "refresh-secret-0123456789-0123456789-a"
)

func newTestCodec(t *testing.T, now func() time.Time) *Codec {
	t.Helper()
	c, err := NewCodec(testAccessSecret, testRefreshSecret, 30*time.Minute, 720*time.Hour, WithCodecClock(now))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func testUser() User {
	return User{
		ID:     "usr-1",
		Email:  "u1@example.com",
		Role:   RoleCustomer,
		Active: true,
	}
}

func TestNewCodecRejectsWeakSecrets(t *testing.T) {
	if _, err := NewCodec("short", testRefreshSecret, time.Minute, time.Hour); err == nil {
		t.Fatal("expected error for short access secret")
	}
	if _, err := NewCodec(testAccessSecret, testAccessSecret, time.Minute, time.Hour); err == nil {
		t.Fatal("expected error for identical secrets")
	}
	if _, err := NewCodec(testAccessSecret, testRefreshSecret, 0, time.Hour); err == nil {
		t.Fatal("expected error for zero access lifetime")
	}
}

func TestSignAndVerifyAccess(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, fixedClock(base))

	token, exp, err := c.SignAccess(testUser(), "sess-1")
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	if !exp.Equal(base.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := c.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "usr-1" || claims.SessionID != "sess-1" || claims.Role != string(RoleCustomer) {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenType != tokenTypeAccess {
		t.Fatalf("unexpected token type %q", claims.TokenType)
	}
}

func TestVerifyAccessExpiryBoundary(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c := newTestCodec(t, func() time.Time { return now })

	token, exp, err := c.SignAccess(testUser(), "sess-1")
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}

	// At the exact expiry second the token is still valid.
	now = exp
	if _, err := c.VerifyAccess(token); err != nil {
		t.Fatalf("token should be valid at expiry instant: %v", err)
	}

	// Sub-second past expiry still rounds to the same whole second.
	now = exp.Add(500 * time.Millisecond)
	if _, err := c.VerifyAccess(token); err != nil {
		t.Fatalf("token should be valid within the expiry second: %v", err)
	}

	now = exp.Add(time.Second)
	if _, err := c.VerifyAccess(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRefreshExpiry(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c := newTestCodec(t, func() time.Time { return now })

	token, exp, err := c.SignRefresh("usr-1", "sess-1", "fam-1", 1)
	if err != nil {
		t.Fatalf("SignRefresh: %v", err)
	}

	claims, err := c.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if claims.Family != "fam-1" || claims.Version != 1 || claims.SessionID != "sess-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	now = exp.Add(time.Second)
	if _, err := c.VerifyRefresh(token); !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("expected ErrRefreshExpired, got %v", err)
	}
}

func TestCrossKindRejection(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, fixedClock(base))

	access, _, err := c.SignAccess(testUser(), "sess-1")
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	refresh, _, err := c.SignRefresh("usr-1", "sess-1", "fam-1", 1)
	if err != nil {
		t.Fatalf("SignRefresh: %v", err)
	}

	// Different secrets: the cross-kind parse fails at the signature, well
	// before the audience check would catch it.
	if _, err := c.VerifyRefresh(access); err == nil {
		t.Fatal("access token must not verify as refresh")
	}
	if _, err := c.VerifyAccess(refresh); err == nil {
		t.Fatal("refresh token must not verify as access")
	}
}

func TestVerifyAccessTampered(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, fixedClock(base))

	token, _, err := c.SignAccess(testUser(), "sess-1")
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}

	segments := strings.Split(token, ".")
	tampered := segments[0] + "." + segments[1] + "x." + segments[2]
	if _, err := c.VerifyAccess(tampered); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for tampered payload, got %v", err)
	}

	if _, err := c.VerifyAccess(""); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for empty token, got %v", err)
	}
	if _, err := c.VerifyAccess("not-a-jwt"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for garbage, got %v", err)
	}
}

func TestVerifyAccessWrongSecret(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, fixedClock(base))
	other, err := NewCodec(
		"other-access-secret-0123456789-012345",
		testRefreshSecret+"x",
		30*time.Minute, 720*time.Hour,
		WithCodecClock(fixedClock(base)),
	)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	token, _, err := other.SignAccess(testUser(), "sess-1")
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	if _, err := c.VerifyAccess(token); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for wrong secret, got %v", err)
	}
}

func TestUnverifiedHelpers(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCodec(t, fixedClock(base))

	token, exp, err := c.SignAccess(testUser(), "sess-9")
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}

	got, ok := UnverifiedExpiry(token)
	if !ok || !got.Equal(exp.Truncate(time.Second)) {
		t.Fatalf("UnverifiedExpiry = %v, %v; want %v", got, ok, exp)
	}
	sid, ok := UnverifiedSessionID(token)
	if !ok || sid != "sess-9" {
		t.Fatalf("UnverifiedSessionID = %q, %v", sid, ok)
	}

	if _, ok := UnverifiedExpiry("garbage"); ok {
		t.Fatal("expected failure on garbage token")
	}
	if _, ok := UnverifiedSessionID("a.b"); ok {
		t.Fatal("expected failure on two-segment token")
	}
}
