package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memorySession struct {
	record    SessionRecord
	expiresAt time.Time
}

// MemorySessionStore is the process-local fallback used when no shared cache
// is configured. A mutex guards the map: concurrent requests create, touch
// and destroy sessions simultaneously.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession

	ttl           time.Duration
	extendOnTouch bool
	now           func() time.Time
}

var (
	_ SessionStore = (*MemorySessionStore)(nil)
	_ Sweepable    = (*MemorySessionStore)(nil)
)

// NewMemorySessionStore builds the fallback store. ttl is the refresh-token
// lifetime; extendOnTouch enables activity extension.
func NewMemorySessionStore(ttl time.Duration, extendOnTouch bool, now func() time.Time) *MemorySessionStore {
	if now == nil {
		now = time.Now
	}
	return &MemorySessionStore{
		sessions:      make(map[string]memorySession),
		ttl:           ttl,
		extendOnTouch: extendOnTouch,
		now:           now,
	}
}

func (s *MemorySessionStore) Create(_ context.Context, sessionID, userID string) error {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sessionID]; ok && existing.record.UserID == userID {
		return nil
	}
	s.sessions[sessionID] = memorySession{
		record:    SessionRecord{UserID: userID, CreatedAt: now, LastUsedAt: now},
		expiresAt: now.Add(s.ttl),
	}
	return nil
}

func (s *MemorySessionStore) ValidateAndTouch(_ context.Context, sessionID, userID string) bool {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	if now.After(entry.expiresAt) {
		delete(s.sessions, sessionID)
		return false
	}
	if entry.record.UserID != userID {
		return false
	}
	entry.record.LastUsedAt = now
	if s.extendOnTouch {
		entry.expiresAt = now.Add(s.ttl)
	}
	s.sessions[sessionID] = entry
	return true
}

func (s *MemorySessionStore) Destroy(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemorySessionStore) SessionsForUser(_ context.Context, userID string) ([]SessionInfo, error) {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SessionInfo
	for id, entry := range s.sessions {
		if entry.record.UserID != userID || now.After(entry.expiresAt) {
			continue
		}
		out = append(out, SessionInfo{ID: id, CreatedAt: entry.record.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Sweep drops sessions past their deadline. Entries still within TTL survive
// arbitrarily long idle periods.
func (s *MemorySessionStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
