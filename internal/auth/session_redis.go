package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	sessionKeyPrefix    = "session:"
	userSessionsKeyTmpl = "user:%s:sessions"
)

// RedisSessionStore is the shared-cache implementation. Every operation is a
// single atomic key read/write with TTL, safe under arbitrary concurrency
// across replicas.
type RedisSessionStore struct {
	client *redis.Client
	logger *zap.Logger

	ttl           time.Duration
	extendOnTouch bool
	now           func() time.Time
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore builds the shared-cache store. ttl is the
// refresh-token lifetime; extendOnTouch enables activity extension.
func NewRedisSessionStore(client *redis.Client, logger *zap.Logger, ttl time.Duration, extendOnTouch bool, now func() time.Time) *RedisSessionStore {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSessionStore{
		client:        client,
		logger:        logger,
		ttl:           ttl,
		extendOnTouch: extendOnTouch,
		now:           now,
	}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func userSessionsKey(userID string) string {
	return fmt.Sprintf(userSessionsKeyTmpl, userID)
}

func (s *RedisSessionStore) Create(ctx context.Context, sessionID, userID string) error {
	now := s.now().UTC()
	record := SessionRecord{UserID: userID, CreatedAt: now, LastUsedAt: now}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	indexKey := userSessionsKey(userID)
	if err := s.client.SAdd(ctx, indexKey, sessionID).Err(); err != nil {
		s.logger.Error("session index update failed", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("index session record: %w", err)
	}
	// The index must outlive the longest-lived member.
	if err := s.client.Expire(ctx, indexKey, s.ttl).Err(); err != nil {
		s.logger.Warn("session index TTL not applied", zap.Error(err), zap.String("user_id", userID))
	}
	return nil
}

func (s *RedisSessionStore) ValidateAndTouch(ctx context.Context, sessionID, userID string) bool {
	key := sessionKey(sessionID)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Error("session lookup failed", zap.Error(err))
		}
		return false
	}
	record, err := decodeSessionRecord(data)
	if err != nil {
		// Unexpected shape means cross-version or poisoned data; reject it.
		s.logger.Warn("session record rejected", zap.Error(err))
		return false
	}
	if record.UserID != userID {
		return false
	}
	record.LastUsedAt = s.now().UTC()
	updated, err := json.Marshal(record)
	if err != nil {
		return false
	}
	var ttl time.Duration = redis.KeepTTL
	if s.extendOnTouch {
		ttl = s.ttl
	}
	if err := s.client.Set(ctx, key, updated, ttl).Err(); err != nil {
		s.logger.Error("session touch failed", zap.Error(err))
		return false
	}
	return true
}

func (s *RedisSessionStore) Destroy(ctx context.Context, sessionID string) error {
	key := sessionKey(sessionID)
	data, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		if record, decodeErr := decodeSessionRecord(data); decodeErr == nil {
			if err := s.client.SRem(ctx, userSessionsKey(record.UserID), sessionID).Err(); err != nil {
				s.logger.Warn("session index cleanup failed", zap.Error(err))
			}
		}
	} else if err != redis.Nil {
		return fmt.Errorf("read session record: %w", err)
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete session record: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) SessionsForUser(ctx context.Context, userID string) ([]SessionInfo, error) {
	indexKey := userSessionsKey(userID)
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}
	var out []SessionInfo
	for _, id := range ids {
		data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
		if err == redis.Nil {
			// TTL already expired the record; drop the dangling index entry.
			_ = s.client.SRem(ctx, indexKey, id).Err()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read user session: %w", err)
		}
		record, err := decodeSessionRecord(data)
		if err != nil {
			continue
		}
		out = append(out, SessionInfo{ID: id, CreatedAt: record.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// decodeSessionRecord rejects payloads whose key set is not a subset of the
// expected schema. Shared storage may be written by other services or an
// attacker; unknown fields are treated as poison, not as forward
// compatibility.
func decodeSessionRecord(data []byte) (SessionRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var record SessionRecord
	if err := dec.Decode(&record); err != nil {
		return SessionRecord{}, err
	}
	if record.UserID == "" || record.CreatedAt.IsZero() {
		return SessionRecord{}, fmt.Errorf("session record missing required fields")
	}
	return record, nil
}
