package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer          = "savdo"
	audienceAccess  = "savdo/access"
	audienceRefresh = "savdo/refresh"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AccessClaims are embedded in every access token.
type AccessClaims struct {
	ExternalID string `json:"ext,omitempty"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	SessionID  string `json:"sid"`
	TokenType  string `json:"token_type"`
	jwt.RegisteredClaims
}

// RefreshClaims are embedded in every refresh token. Family is minted once
// per login; Version increments on each rotation so a reused ancestor can be
// told apart from the live descendant.
type RefreshClaims struct {
	Family    string `json:"family"`
	Version   int    `json:"version"`
	SessionID string `json:"sid"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies the two token kinds with distinct secrets. It is
// stateless; revocation and session liveness are the orchestrator's concern.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithCodecClock overrides the time source (useful for tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec validates the secret material and constructs a codec. Both secrets
// must carry at least 32 bytes and must differ; sharing one secret across the
// two kinds would make the audience split the only line of defense.
func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...CodecOption) (*Codec, error) {
	if len(accessSecret) < 32 || len(refreshSecret) < 32 {
		return nil, errors.New("auth: token secrets must be at least 32 bytes")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	c := &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessTTL exposes the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL exposes the configured refresh-token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// SignAccess mints an access token bound to the session and the user's
// current role.
func (c *Codec) SignAccess(user User, sessionID string) (string, time.Time, error) {
	now := c.now().UTC()
	exp := now.Add(c.accessTTL)
	claims := AccessClaims{
		ExternalID: user.ExternalID,
		Email:      user.Email,
		Role:       string(user.Role),
		SessionID:  sessionID,
		TokenType:  tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audienceAccess},
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// SignRefresh mints a refresh token for the given family and version.
func (c *Codec) SignRefresh(userID, sessionID, family string, version int) (string, time.Time, error) {
	now := c.now().UTC()
	exp := now.Add(c.refreshTTL)
	claims := RefreshClaims{
		Family:    family,
		Version:   version,
		SessionID: sessionID,
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audienceRefresh},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, exp, nil
}

// VerifyAccess checks signature, issuer, audience, algorithm and token type.
// Failures map onto exactly one of ErrTokenExpired, ErrTokenMalformed,
// ErrTokenWrongType.
func (c *Codec) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(token, claims, c.accessSecret); err != nil {
		return nil, mapParseError(err, ErrTokenExpired, ErrTokenMalformed)
	}
	if err := c.validateRegistered(&claims.RegisteredClaims, audienceAccess); err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, ErrTokenWrongType
	}
	if claims.SessionID == "" || !Role(claims.Role).Valid() {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// VerifyRefresh is the refresh-side counterpart of VerifyAccess. Failures map
// onto ErrRefreshExpired or ErrRefreshInvalid.
func (c *Codec) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(token, claims, c.refreshSecret); err != nil {
		return nil, mapParseError(err, ErrRefreshExpired, ErrRefreshInvalid)
	}
	if err := c.validateRegistered(&claims.RegisteredClaims, audienceRefresh); err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			return nil, ErrRefreshExpired
		default:
			return nil, ErrRefreshInvalid
		}
	}
	if claims.TokenType != tokenTypeRefresh {
		return nil, ErrRefreshInvalid
	}
	if claims.Family == "" || claims.Version < 1 || claims.SessionID == "" {
		return nil, ErrRefreshInvalid
	}
	return claims, nil
}

// parse checks structure and signature only; temporal and identity claims are
// validated separately so expiry semantics stay in whole seconds under an
// injectable clock.
func (c *Codec) parse(token string, claims jwt.Claims, secret []byte) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return jwt.ErrTokenMalformed
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenSignatureInvalid
	}
	return nil
}

// validateRegistered enforces issuer, audience and the clock rules: a token
// is expired strictly when now > exp in whole seconds, so a comparison at the
// exact expiry instant still passes.
func (c *Codec) validateRegistered(rc *jwt.RegisteredClaims, wantAudience string) error {
	if rc.Issuer != issuer {
		return ErrTokenMalformed
	}
	if !containsAudience(rc.Audience, wantAudience) {
		return ErrTokenWrongType
	}
	if rc.ExpiresAt == nil || rc.IssuedAt == nil || strings.TrimSpace(rc.Subject) == "" {
		return ErrTokenMalformed
	}
	now := c.now().Unix()
	if now > rc.ExpiresAt.Unix() {
		return ErrTokenExpired
	}
	if rc.ExpiresAt.Unix() < rc.IssuedAt.Unix() {
		return ErrTokenMalformed
	}
	return nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

// mapParseError folds golang-jwt parse failures onto this package's kinds.
func mapParseError(err error, expired, malformed error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return expired
	}
	return malformed
}

// UnverifiedExpiry decodes a token's exp claim without checking the
// signature. The revocation ledger sizes TTLs with it and the auto-refresh
// path uses it to decide whether a rotation is due; neither grants any trust
// to the value beyond that.
func UnverifiedExpiry(token string) (time.Time, bool) {
	payload, ok := unverifiedPayload(token)
	if !ok {
		return time.Time{}, false
	}
	var body struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Exp <= 0 {
		return time.Time{}, false
	}
	return time.Unix(body.Exp, 0).UTC(), true
}

// UnverifiedSessionID decodes a token's sid claim without checking the
// signature. Used only by best-effort logout to locate the session record.
func UnverifiedSessionID(token string) (string, bool) {
	payload, ok := unverifiedPayload(token)
	if !ok {
		return "", false
	}
	var body struct {
		SessionID string `json:"sid"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.SessionID == "" {
		return "", false
	}
	return body.SessionID, true
}

func unverifiedPayload(token string) ([]byte, bool) {
	segments := strings.Split(strings.TrimSpace(token), ".")
	if len(segments) != 3 {
		return nil, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return nil, false
	}
	return payload, true
}
