package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"savdo.org/internal/obs"
)

const (
	revokedKeyPrefix       = "revoked:"
	revokedFamilyKeyPrefix = "revoked:family:"
)

// RedisRevocationLedger is the shared-cache blacklist. Entries self-expire
// via TTL; no sweeping required.
type RedisRevocationLedger struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

var _ RevocationLedger = (*RedisRevocationLedger)(nil)

// NewRedisRevocationLedger builds the shared-cache ledger.
func NewRedisRevocationLedger(client *redis.Client, logger *zap.Logger, now func() time.Time) *RedisRevocationLedger {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRevocationLedger{client: client, logger: logger, now: now}
}

func (l *RedisRevocationLedger) Revoke(ctx context.Context, token, reason string) error {
	now := l.now().UTC()
	ttl := revocationTTL(token, now)
	entry := RevocationEntry{Reason: reason, RevokedAt: now}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal revocation entry: %w", err)
	}
	key := revokedKeyPrefix + tokenHash(token)
	if err := l.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("write revocation entry: %w", err)
	}
	obs.RevocationsTotal.WithLabelValues(reason).Inc()
	return nil
}

func (l *RedisRevocationLedger) IsRevoked(ctx context.Context, token string) bool {
	return l.exists(ctx, revokedKeyPrefix+tokenHash(token))
}

func (l *RedisRevocationLedger) RevokeFamily(ctx context.Context, family, reason string, ttl time.Duration) error {
	now := l.now().UTC()
	if ttl <= 0 {
		ttl = defaultRevocationTTL
	}
	entry := RevocationEntry{Reason: reason, RevokedAt: now}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal revocation entry: %w", err)
	}
	if err := l.client.Set(ctx, revokedFamilyKeyPrefix+family, data, ttl).Err(); err != nil {
		return fmt.Errorf("write family revocation: %w", err)
	}
	obs.RevocationsTotal.WithLabelValues(reason).Inc()
	return nil
}

func (l *RedisRevocationLedger) IsFamilyRevoked(ctx context.Context, family string) bool {
	return l.exists(ctx, revokedFamilyKeyPrefix+family)
}

// exists fails open: a backend error reports "not revoked" and bumps the
// outage counter so the degradation is visible on a dashboard instead of
// silently locking everyone out.
func (l *RedisRevocationLedger) exists(ctx context.Context, key string) bool {
	n, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		obs.RevocationCheckFailures.Inc()
		l.logger.Error("revocation lookup failed open", zap.Error(err))
		return false
	}
	return n > 0
}
