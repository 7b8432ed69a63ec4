package auth

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"savdo.org/internal/obs"
)

func TestRedisRevocationFailsOpenOnBackendError(t *testing.T) {
	client := unreachableRedis()
	defer client.Close()
	l := NewRedisRevocationLedger(client, nil, nil)
	ctx := context.Background()

	// Fail-open: a dead backend reads as "not revoked", and every such lookup
	// bumps the outage counter so the degradation is visible.
	before := testutil.ToFloat64(obs.RevocationCheckFailures)
	if l.IsRevoked(ctx, "some.jwt.token") {
		t.Fatal("lookup against a dead backend must fail open")
	}
	if l.IsFamilyRevoked(ctx, "fam-1") {
		t.Fatal("family lookup against a dead backend must fail open")
	}
	after := testutil.ToFloat64(obs.RevocationCheckFailures)
	if after != before+2 {
		t.Fatalf("expected 2 counted failures, got %v", after-before)
	}
}

func TestRedisRevocationWriteSurfacesBackendError(t *testing.T) {
	client := unreachableRedis()
	defer client.Close()
	l := NewRedisRevocationLedger(client, nil, nil)
	ctx := context.Background()

	// Writes are not fail-open: the rotation path needs to know the old token
	// could not be blacklisted.
	if err := l.Revoke(ctx, "some.jwt.token", ReasonRotated); err == nil {
		t.Fatal("revoking against a dead backend must surface the error")
	}
	if err := l.RevokeFamily(ctx, "fam-1", ReasonReuse, 0); err == nil {
		t.Fatal("family revocation against a dead backend must surface the error")
	}
}
