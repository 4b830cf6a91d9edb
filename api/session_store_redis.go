package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSessionPrefix = "picis:session:"

// RedisSessionStore persists sessions in Redis so several instances can
// share them. Each session lives under its own key with a TTL matching its
// absolute expiry; the idle timeout is enforced on read.
type RedisSessionStore struct {
	client      *redis.Client
	idleTimeout time.Duration
	logger      *slog.Logger
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore creates a Redis-backed session store.
// idleTimeout of 0 disables idle timeout checking.
func NewRedisSessionStore(client *redis.Client, idleTimeout time.Duration, logger *slog.Logger) *RedisSessionStore {
	return &RedisSessionStore{
		client:      client,
		idleTimeout: idleTimeout,
		logger:      logger.With("component", "session_store"),
	}
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (AuthSession, bool) {
	raw, err := s.client.Get(ctx, redisSessionPrefix+token).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("redis session read failed", "error", err)
		}
		return AuthSession{}, false
	}

	var session AuthSession
	if err := json.Unmarshal(raw, &session); err != nil {
		s.logger.Warn("corrupt session record", "error", err)
		s.client.Del(ctx, redisSessionPrefix+token)
		return AuthSession{}, false
	}
	if time.Now().After(session.ExpiresAt) {
		s.client.Del(ctx, redisSessionPrefix+token)
		return AuthSession{}, false
	}
	if s.idleTimeout > 0 && time.Since(session.LastAccessedAt) > s.idleTimeout {
		s.client.Del(ctx, redisSessionPrefix+token)
		return AuthSession{}, false
	}

	session.LastAccessedAt = time.Now()
	s.Put(ctx, token, session)
	return session, true
}

func (s *RedisSessionStore) Put(ctx context.Context, token string, session AuthSession) {
	raw, err := json.Marshal(session)
	if err != nil {
		s.logger.Error("failed to encode session", "error", err)
		return
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		s.client.Del(ctx, redisSessionPrefix+token)
		return
	}
	if err := s.client.Set(ctx, redisSessionPrefix+token, raw, ttl).Err(); err != nil {
		s.logger.Warn("redis session write failed", "error", err)
	}
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) {
	if err := s.client.Del(ctx, redisSessionPrefix+token).Err(); err != nil {
		s.logger.Warn("redis session delete failed", "error", err)
	}
}
