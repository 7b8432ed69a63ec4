package auth

import (
	"context"
	"time"
)

// UserStore is the narrow contract onto the external user records. The
// relational schema behind it belongs to the surrounding platform; this
// subsystem only reads users and updates the handful of fields that
// authentication owns.
type UserStore interface {
	// FindByIdentifier resolves a login identifier (email or username).
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByExternalID(ctx context.Context, externalID string) (*User, error)
	Create(ctx context.Context, u *User) error
	// UpdateProfile overwrites display fields from non-empty hints. Role and
	// active status are not reachable through this method.
	UpdateProfile(ctx context.Context, userID string, hints ProfileHints) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// SessionStore keeps session records with a TTL equal to the refresh-token
// lifetime. Two implementations exist: Redis when a shared cache is
// configured, an in-process map otherwise. Behavior is identical except for
// persistence across restarts and replicas.
type SessionStore interface {
	// Create idempotently writes the record.
	Create(ctx context.Context, sessionID, userID string) error
	// ValidateAndTouch reports liveness and refreshes last-used. It returns
	// false, never an error, on any structural mismatch or backend failure:
	// the session check fails closed.
	ValidateAndTouch(ctx context.Context, sessionID, userID string) bool
	// Destroy removes the record; idempotent.
	Destroy(ctx context.Context, sessionID string) error
	// SessionsForUser lists the user's live sessions, oldest first.
	SessionsForUser(ctx context.Context, userID string) ([]SessionInfo, error)
}

// RevocationLedger is the keyed blacklist of revoked token hashes. Entries
// carry a TTL equal to the remaining token lifetime so the ledger never grows
// unbounded.
type RevocationLedger interface {
	Revoke(ctx context.Context, token, reason string) error
	// IsRevoked fails OPEN: a backend error reports "not revoked" so a cache
	// outage degrades availability instead of locking every user out. The
	// failure is counted for alerting.
	IsRevoked(ctx context.Context, token string) bool
	// RevokeFamily blacklists an entire refresh-token family; every
	// descendant token dies with it.
	RevokeFamily(ctx context.Context, family, reason string, ttl time.Duration) error
	IsFamilyRevoked(ctx context.Context, family string) bool
}

// Sweepable is implemented by the in-process fallback stores; the shared
// cache relies on TTL expiry and needs no sweeping.
type Sweepable interface {
	// Sweep removes entries past their deadline and reports how many.
	Sweep(now time.Time) int
}
