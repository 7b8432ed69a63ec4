package auth

import "time"

// User is the external identity record this subsystem reads and, during
// authentication, minimally updates. The surrounding platform owns its schema.
type User struct {
	ID           string
	Email        string
	ExternalID   string
	Username     string
	FirstName    string
	LastName     string
	Role         Role
	Active       bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// View returns a copy safe to hand to callers: no password hash.
func (u User) View() User {
	u.PasswordHash = ""
	return u
}

// ProfileHints carries display fields supplied by an external-identity
// provider. Role and active status are deliberately absent: nothing arriving
// on the external path may elevate privileges or reactivate an account.
type ProfileHints struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// TokenPair is one live access/refresh credential pair bound to a session.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
}

// SessionRecord is the server-side state binding a login instance to a user.
type SessionRecord struct {
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// SessionInfo pairs a session id with its creation time, for the per-user
// session cap.
type SessionInfo struct {
	ID        string
	CreatedAt time.Time
}

// RevocationEntry records why and when a token hash was blacklisted.
type RevocationEntry struct {
	Reason    string    `json:"reason"`
	RevokedAt time.Time `json:"revoked_at"`
}
