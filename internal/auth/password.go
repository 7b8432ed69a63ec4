package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher produces and checks self-salted bcrypt password hashes.
type Hasher struct {
	cost int
}

// NewHasher clamps the work factor into the supported [10,15] range; values
// outside it indicate a misconfiguration upstream but must not weaken hashing.
func NewHasher(cost int) Hasher {
	if cost < 10 {
		cost = 10
	}
	if cost > 15 {
		cost = 15
	}
	return Hasher{cost: cost}
}

// Hash hashes a plaintext password. It fails only on catastrophic internal
// failure (bcrypt input limits, entropy exhaustion).
func (h Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: empty password", ErrHashing)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(hash), nil
}

// Verify compares plaintext against a stored hash. It fails closed: malformed
// hashes, empty input, and internal errors all report false, never an error.
func (h Hasher) Verify(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
