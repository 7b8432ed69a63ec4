package auth

import (
	"context"
	"sync"
	"time"

	"savdo.org/internal/obs"
)

type memoryRevocation struct {
	entry     RevocationEntry
	expiresAt time.Time
}

// MemoryRevocationLedger is the process-local fallback blacklist.
type MemoryRevocationLedger struct {
	mu      sync.Mutex
	entries map[string]memoryRevocation

	now func() time.Time
}

var (
	_ RevocationLedger = (*MemoryRevocationLedger)(nil)
	_ Sweepable        = (*MemoryRevocationLedger)(nil)
)

// NewMemoryRevocationLedger builds the fallback ledger.
func NewMemoryRevocationLedger(now func() time.Time) *MemoryRevocationLedger {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocationLedger{
		entries: make(map[string]memoryRevocation),
		now:     now,
	}
}

func (l *MemoryRevocationLedger) Revoke(_ context.Context, token, reason string) error {
	now := l.now().UTC()
	ttl := revocationTTL(token, now)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[tokenHash(token)] = memoryRevocation{
		entry:     RevocationEntry{Reason: reason, RevokedAt: now},
		expiresAt: now.Add(ttl),
	}
	obs.RevocationsTotal.WithLabelValues(reason).Inc()
	return nil
}

func (l *MemoryRevocationLedger) IsRevoked(_ context.Context, token string) bool {
	return l.lookup(tokenHash(token))
}

func (l *MemoryRevocationLedger) RevokeFamily(_ context.Context, family, reason string, ttl time.Duration) error {
	now := l.now().UTC()
	if ttl <= 0 {
		ttl = defaultRevocationTTL
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[familyHashKey(family)] = memoryRevocation{
		entry:     RevocationEntry{Reason: reason, RevokedAt: now},
		expiresAt: now.Add(ttl),
	}
	obs.RevocationsTotal.WithLabelValues(reason).Inc()
	return nil
}

func (l *MemoryRevocationLedger) IsFamilyRevoked(_ context.Context, family string) bool {
	return l.lookup(familyHashKey(family))
}

func (l *MemoryRevocationLedger) lookup(key string) bool {
	now := l.now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		return false
	}
	if now.After(entry.expiresAt) {
		delete(l.entries, key)
		return false
	}
	return true
}

// Sweep drops entries past their computed expiry.
func (l *MemoryRevocationLedger) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, entry := range l.entries {
		if now.After(entry.expiresAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

func familyHashKey(family string) string {
	return "family:" + family
}
