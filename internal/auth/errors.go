package auth

import "errors"

// Error kinds surfaced at the orchestrator boundary. Internal store and
// backend failures are logged server-side and mapped onto one of these before
// they reach a caller.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountInactive    = errors.New("auth: account inactive or missing")

	ErrTokenMalformed = errors.New("auth: token malformed")
	ErrTokenExpired   = errors.New("auth: token expired")
	ErrTokenRevoked   = errors.New("auth: token revoked")
	ErrTokenWrongType = errors.New("auth: token wrong type")

	ErrSessionInvalid = errors.New("auth: session invalid")
	ErrRoleChanged    = errors.New("auth: role changed since issuance")

	ErrRefreshInvalid = errors.New("auth: refresh token invalid")
	ErrRefreshExpired = errors.New("auth: refresh token expired")
	ErrRefreshRevoked = errors.New("auth: refresh token revoked")

	ErrHashing = errors.New("auth: password hashing failed")

	// ErrStoreUnavailable is returned only by operations that must fail
	// closed (session creation at login). The revocation lookup never
	// returns it: that check fails open by design.
	ErrStoreUnavailable = errors.New("auth: store unavailable")

	ErrNotFound = errors.New("auth: not found")
)
