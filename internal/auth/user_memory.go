package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryUserStore is a map-backed UserStore for local demos and tests. It is
// not meant to survive restarts; production deployments use Postgres.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*User
	now   func() time.Time
}

func NewMemoryUserStore(now func() time.Time) *MemoryUserStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryUserStore{
		users: make(map[string]*User),
		now:   now,
	}
}

func (s *MemoryUserStore) FindByIdentifier(ctx context.Context, identifier string) (*User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.ToLower(u.Email) == identifier || strings.ToLower(u.Username) == identifier {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryUserStore) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ExternalID != "" && u.ExternalID == externalID {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) Create(ctx context.Context, u *User) error {
	if u == nil || u.ID == "" {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	stored := *u
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.users[stored.ID] = &stored
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (s *MemoryUserStore) UpdateProfile(ctx context.Context, userID string, hints ProfileHints) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	applyHints(u, hints)
	u.UpdatedAt = s.now()
	return nil
}

func (s *MemoryUserStore) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now()
	return nil
}
