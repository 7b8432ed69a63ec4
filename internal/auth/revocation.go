package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// defaultRevocationTTL sizes entries whose token carries no parseable expiry.
const defaultRevocationTTL = 24 * time.Hour

// tokenHash keys the ledger: the first 32 hex characters of SHA-256 over the
// raw token string. Half the digest is plenty for a denial list and keeps
// keys short.
func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:32]
}

// revocationTTL computes how long an entry must outlive its token: the
// remaining token lifetime, or the default when the expiry is absent or
// unparseable.
func revocationTTL(token string, now time.Time) time.Duration {
	exp, ok := UnverifiedExpiry(token)
	if !ok {
		return defaultRevocationTTL
	}
	remaining := exp.Sub(now)
	if remaining <= 0 {
		// Already expired; keep a short entry so an immediate replay still
		// reads as revoked rather than merely expired.
		return time.Minute
	}
	return remaining
}
