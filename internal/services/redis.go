package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/career-mentor/mentor-web-ui/internal/models"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// RedisStore keeps sessions in Redis as JSON values that expire after the TTL, so a session ends once
// the user has been idle for that long.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore connects to the Redis server at url and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return RedisStore{}, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return RedisStore{}, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return RedisStore{rdb: rdb, ttl: ttl}, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Session loads the session, returning a fresh one when the key is absent or has expired.
func (r RedisStore) Session(ctx context.Context, id string) (models.Session, error) {
	data, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NewSession(id), nil
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	return decodeSession(data)
}

// SaveSession writes the session and refreshes its expiry.
func (r RedisStore) SaveSession(ctx context.Context, session models.Session) error {
	session.UpdatedAt = time.Now()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.rdb.Set(ctx, sessionKey(session.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// DeleteSession removes the session key.
func (r RedisStore) DeleteSession(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (r RedisStore) Close() error {
	return r.rdb.Close()
}
