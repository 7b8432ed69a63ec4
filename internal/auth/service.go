package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"savdo.org/internal/ids"
	"savdo.org/internal/obs"
)

// Revocation reasons recorded in the ledger.
const (
	ReasonLogout      = "logout"
	ReasonRotated     = "rotated"
	ReasonRoleChanged = "role_changed"
	ReasonReuse       = "refresh_reuse"
)

const (
	defaultMaxSessions  = 5
	defaultRefreshGrace = 2 * time.Minute
)

// Service composes the hasher, codec and stores into the authentication
// lifecycle: issue, verify, rotate, revoke. It holds no mutable state of its
// own beyond the injected backends and is safe for concurrent use.
type Service struct {
	users       UserStore
	sessions    SessionStore
	revocations RevocationLedger
	codec       *Codec
	hasher      Hasher

	logger *zap.Logger
	now    func() time.Time

	autoRefresh  bool
	refreshGrace time.Duration
	maxSessions  int
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxSessions caps concurrent sessions per user; the oldest session is
// evicted once the cap is exceeded.
func WithMaxSessions(n int) ServiceOption {
	return func(s *Service) {
		if n >= 1 {
			s.maxSessions = n
		}
	}
}

// WithRefreshGrace sets the window before access expiry in which
// AutoRefreshIfNeeded rotates the pair.
func WithRefreshGrace(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.refreshGrace = d
		}
	}
}

// WithAutoRefresh toggles the auto-refresh decision path.
func WithAutoRefresh(enabled bool) ServiceOption {
	return func(s *Service) {
		s.autoRefresh = enabled
	}
}

// NewService wires the orchestrator.
func NewService(users UserStore, sessions SessionStore, revocations RevocationLedger, codec *Codec, hasher Hasher, opts ...ServiceOption) (*Service, error) {
	if users == nil || sessions == nil || revocations == nil || codec == nil {
		return nil, errors.New("auth: all backends are required")
	}
	s := &Service{
		users:        users,
		sessions:     sessions,
		revocations:  revocations,
		codec:        codec,
		hasher:       hasher,
		logger:       zap.NewNop(),
		now:          time.Now,
		autoRefresh:  true,
		refreshGrace: defaultRefreshGrace,
		maxSessions:  defaultMaxSessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AuthenticateWithPassword checks an identifier/password pair and issues a
// fresh token pair. Absent user, inactive account, missing hash and wrong
// password are indistinguishable to the caller: all ErrInvalidCredentials.
func (s *Service) AuthenticateWithPassword(ctx context.Context, identifier, password string) (User, TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		obs.LoginsTotal.WithLabelValues("password", "rejected").Inc()
		return User{}, TokenPair{}, ErrInvalidCredentials
	}
	user, err := s.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("user lookup failed", zap.Error(err))
		}
		obs.LoginsTotal.WithLabelValues("password", "rejected").Inc()
		return User{}, TokenPair{}, ErrInvalidCredentials
	}
	if !user.Active || user.PasswordHash == "" {
		obs.LoginsTotal.WithLabelValues("password", "rejected").Inc()
		return User{}, TokenPair{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		obs.LoginsTotal.WithLabelValues("password", "rejected").Inc()
		return User{}, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.IssuePair(ctx, *user)
	if err != nil {
		obs.LoginsTotal.WithLabelValues("password", "error").Inc()
		return User{}, TokenPair{}, err
	}
	obs.LoginsTotal.WithLabelValues("password", "success").Inc()
	return user.View(), pair, nil
}

// AuthenticateWithExternalIdentity loads or creates a user keyed by an
// external-identity id (e.g. a messaging-platform account) and issues a pair.
// New users always receive the lowest-privilege role; hints touch display
// fields only, never role or active status.
func (s *Service) AuthenticateWithExternalIdentity(ctx context.Context, externalID string, hints ProfileHints) (User, TokenPair, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		obs.LoginsTotal.WithLabelValues("external", "rejected").Inc()
		return User{}, TokenPair{}, ErrInvalidCredentials
	}
	user, err := s.users.FindByExternalID(ctx, externalID)
	switch {
	case errors.Is(err, ErrNotFound):
		user = &User{
			ID:         ids.New(),
			ExternalID: externalID,
			Username:   hints.Username,
			FirstName:  hints.FirstName,
			LastName:   hints.LastName,
			Role:       LowestPrivilegeRole,
			Active:     true,
		}
		if err := s.users.Create(ctx, user); err != nil {
			s.logger.Error("external user creation failed", zap.Error(err))
			obs.LoginsTotal.WithLabelValues("external", "error").Inc()
			return User{}, TokenPair{}, fmt.Errorf("%w: user store", ErrStoreUnavailable)
		}
	case err != nil:
		s.logger.Error("external user lookup failed", zap.Error(err))
		obs.LoginsTotal.WithLabelValues("external", "error").Inc()
		return User{}, TokenPair{}, fmt.Errorf("%w: user store", ErrStoreUnavailable)
	default:
		if !user.Active {
			obs.LoginsTotal.WithLabelValues("external", "rejected").Inc()
			return User{}, TokenPair{}, ErrAccountInactive
		}
		if hints != (ProfileHints{}) {
			if err := s.users.UpdateProfile(ctx, user.ID, hints); err != nil {
				// Display-field refresh is not worth failing a login over.
				s.logger.Warn("profile hint update failed", zap.Error(err))
			} else {
				applyHints(user, hints)
			}
		}
	}
	pair, err := s.IssuePair(ctx, *user)
	if err != nil {
		obs.LoginsTotal.WithLabelValues("external", "error").Inc()
		return User{}, TokenPair{}, err
	}
	obs.LoginsTotal.WithLabelValues("external", "success").Inc()
	return user.View(), pair, nil
}

func applyHints(user *User, hints ProfileHints) {
	if hints.Username != "" {
		user.Username = hints.Username
	}
	if hints.FirstName != "" {
		user.FirstName = hints.FirstName
	}
	if hints.LastName != "" {
		user.LastName = hints.LastName
	}
}

// IssuePair starts a brand-new session and token family for the user.
func (s *Service) IssuePair(ctx context.Context, user User) (TokenPair, error) {
	return s.issuePair(ctx, user, uuid.NewString(), 1)
}

// issuePair creates the session record and signs both tokens. Session
// creation fails closed: without a live session record the access token would
// never verify, so there is no point handing it out.
func (s *Service) issuePair(ctx context.Context, user User, family string, version int) (TokenPair, error) {
	s.enforceSessionCap(ctx, user.ID)

	sessionID := ids.New()
	if err := s.sessions.Create(ctx, sessionID, user.ID); err != nil {
		s.logger.Error("session creation failed", zap.Error(err), zap.String("user_id", user.ID))
		return TokenPair{}, fmt.Errorf("%w: session store", ErrStoreUnavailable)
	}
	access, accessExp, err := s.codec.SignAccess(user, sessionID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.codec.SignRefresh(user.ID, sessionID, family, version)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		SessionID:        sessionID,
	}, nil
}

// enforceSessionCap destroys the oldest sessions once the per-user cap is
// reached, making room for exactly one new session. Cap enforcement is
// policy, not a security boundary; a listing failure is logged and login
// proceeds.
func (s *Service) enforceSessionCap(ctx context.Context, userID string) {
	list, err := s.sessions.SessionsForUser(ctx, userID)
	if err != nil {
		s.logger.Warn("session cap check failed", zap.Error(err), zap.String("user_id", userID))
		return
	}
	excess := len(list) - s.maxSessions + 1
	for i := 0; i < excess && i < len(list); i++ {
		if err := s.sessions.Destroy(ctx, list[i].ID); err != nil {
			s.logger.Warn("session eviction failed", zap.Error(err), zap.String("session_id", list[i].ID))
			continue
		}
		obs.SessionsEvicted.Inc()
	}
}

// VerifyAndLoadAccess runs the full access-token verification path:
// revocation ledger, signature/claims, session liveness, live user state and
// role agreement. Both the session check and the individual blacklist are
// always consulted; destroying a session invalidates its tokens even when
// they were never individually revoked.
func (s *Service) VerifyAndLoadAccess(ctx context.Context, token string) (Principal, *AccessClaims, error) {
	if s.revocations.IsRevoked(ctx, token) {
		return Principal{}, nil, ErrTokenRevoked
	}
	claims, err := s.codec.VerifyAccess(token)
	if err != nil {
		return Principal{}, nil, err
	}
	if !s.sessions.ValidateAndTouch(ctx, claims.SessionID, claims.Subject) {
		return Principal{}, nil, ErrSessionInvalid
	}
	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, nil, ErrAccountInactive
		}
		s.logger.Error("user reload failed", zap.Error(err))
		return Principal{}, nil, fmt.Errorf("%w: user store", ErrStoreUnavailable)
	}
	if !user.Active {
		return Principal{}, nil, ErrAccountInactive
	}
	if string(user.Role) != claims.Role {
		// The stale token must not retain old permissions for even one more
		// request: revoke it on the spot.
		if err := s.revocations.Revoke(ctx, token, ReasonRoleChanged); err != nil {
			s.logger.Error("stale-role token revocation failed", zap.Error(err))
		}
		return Principal{}, nil, ErrRoleChanged
	}
	return NewPrincipal(*user), claims, nil
}

// Refresh exchanges a refresh token for a brand-new session and pair. The
// presented token is single-use; presenting an already-revoked one is treated
// as replay and burns the whole token family.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (User, TokenPair, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		obs.RefreshesTotal.WithLabelValues("rejected").Inc()
		return User{}, TokenPair{}, err
	}
	if s.revocations.IsRevoked(ctx, refreshToken) {
		// Reuse of a rotated token: revoke the family so every descendant
		// minted from this login dies with it.
		ttl := claims.ExpiresAt.Time.Sub(s.now())
		if err := s.revocations.RevokeFamily(ctx, claims.Family, ReasonReuse, ttl); err != nil {
			s.logger.Error("family revocation failed", zap.Error(err), zap.String("family", claims.Family))
		}
		obs.RefreshesTotal.WithLabelValues("revoked").Inc()
		return User{}, TokenPair{}, ErrRefreshRevoked
	}
	if s.revocations.IsFamilyRevoked(ctx, claims.Family) {
		obs.RefreshesTotal.WithLabelValues("revoked").Inc()
		return User{}, TokenPair{}, ErrRefreshRevoked
	}
	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.RefreshesTotal.WithLabelValues("rejected").Inc()
			return User{}, TokenPair{}, ErrAccountInactive
		}
		s.logger.Error("user reload failed", zap.Error(err))
		obs.RefreshesTotal.WithLabelValues("error").Inc()
		return User{}, TokenPair{}, fmt.Errorf("%w: user store", ErrStoreUnavailable)
	}
	if !user.Active {
		obs.RefreshesTotal.WithLabelValues("rejected").Inc()
		return User{}, TokenPair{}, ErrAccountInactive
	}

	// Rotation: revoke first, then issue. A crash between the two steps
	// leaves the old token dead and no new pair out, which forces a
	// re-authentication instead of two clients sharing a live refresh token.
	if err := s.revocations.Revoke(ctx, refreshToken, ReasonRotated); err != nil {
		s.logger.Error("refresh revocation failed", zap.Error(err))
		obs.RefreshesTotal.WithLabelValues("error").Inc()
		return User{}, TokenPair{}, fmt.Errorf("%w: revocation ledger", ErrStoreUnavailable)
	}
	// The superseded session is destroyed, not merely abandoned: access
	// tokens bound to it fail their session check immediately.
	if err := s.sessions.Destroy(ctx, claims.SessionID); err != nil {
		s.logger.Warn("superseded session destroy failed", zap.Error(err), zap.String("session_id", claims.SessionID))
	}

	pair, err := s.issuePair(ctx, *user, claims.Family, claims.Version+1)
	if err != nil {
		obs.RefreshesTotal.WithLabelValues("error").Inc()
		return User{}, TokenPair{}, err
	}
	obs.RefreshesTotal.WithLabelValues("success").Inc()
	return user.View(), pair, nil
}

// Logout revokes whichever tokens are presented and destroys the session when
// one can be located. The three sub-operations run independently; logout is
// best-effort and never reports failure to the caller.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken, sessionID string) {
	if accessToken != "" {
		if err := s.revocations.Revoke(ctx, accessToken, ReasonLogout); err != nil {
			s.logger.Warn("access revocation failed during logout", zap.Error(err))
		}
		if sessionID == "" {
			if sid, ok := UnverifiedSessionID(accessToken); ok {
				sessionID = sid
			}
		}
	}
	if refreshToken != "" {
		if err := s.revocations.Revoke(ctx, refreshToken, ReasonLogout); err != nil {
			s.logger.Warn("refresh revocation failed during logout", zap.Error(err))
		}
		if sessionID == "" {
			if sid, ok := UnverifiedSessionID(refreshToken); ok {
				sessionID = sid
			}
		}
	}
	if sessionID != "" {
		if err := s.sessions.Destroy(ctx, sessionID); err != nil {
			s.logger.Warn("session destroy failed during logout", zap.Error(err))
		}
	}
}

// AutoRefreshStatus is the tri-state outcome of AutoRefreshIfNeeded.
type AutoRefreshStatus int

const (
	// AutoRefreshNotNeeded: the access token is comfortably inside its
	// lifetime (or auto-refresh is disabled).
	AutoRefreshNotNeeded AutoRefreshStatus = iota
	// AutoRefreshRotated: a new pair was issued.
	AutoRefreshRotated
	// AutoRefreshFailed: a refresh was due but could not be performed. The
	// caller must re-authenticate; this is not a transient error.
	AutoRefreshFailed
)

// AutoRefreshIfNeeded inspects the access token's expiry (without verifying
// its signature) and rotates the pair when expiry falls inside the configured
// grace window.
func (s *Service) AutoRefreshIfNeeded(ctx context.Context, accessToken, refreshToken string) (AutoRefreshStatus, TokenPair, error) {
	if !s.autoRefresh {
		return AutoRefreshNotNeeded, TokenPair{}, nil
	}
	exp, ok := UnverifiedExpiry(accessToken)
	if ok && exp.Sub(s.now()) > s.refreshGrace {
		return AutoRefreshNotNeeded, TokenPair{}, nil
	}
	_, pair, err := s.Refresh(ctx, refreshToken)
	if err != nil {
		return AutoRefreshFailed, TokenPair{}, err
	}
	return AutoRefreshRotated, pair, nil
}

// Sessions lists the user's live sessions, oldest first.
func (s *Service) Sessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	return s.sessions.SessionsForUser(ctx, userID)
}

// DestroyOwnSession destroys one of the user's own sessions. A session that
// does not exist or belongs to someone else reports ErrNotFound either way.
func (s *Service) DestroyOwnSession(ctx context.Context, userID, sessionID string) error {
	list, err := s.sessions.SessionsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: session store", ErrStoreUnavailable)
	}
	for _, info := range list {
		if info.ID == sessionID {
			return s.sessions.Destroy(ctx, sessionID)
		}
	}
	return ErrNotFound
}

// SetPassword hashes and stores a new password for the user. Exposed for the
// registration/password-change glue around this subsystem.
func (s *Service) SetPassword(ctx context.Context, userID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordHash(ctx, userID, hash)
}
