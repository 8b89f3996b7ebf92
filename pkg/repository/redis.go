package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/config"
	"github.com/go-redis/redis/v8"
)

var ErrCacheMiss = errors.New("cache miss")

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

// Ping checks the connection to Redis.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// SetJSON stores value as JSON under key.
func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// GetJSONEx decodes the value at key into dest and resets the key's
// expiration. A missing key is ErrCacheMiss.
func (r *RedisRepository) GetJSONEx(ctx context.Context, key string, dest interface{}, expiration time.Duration) error {
	return decodeJSON(r.client.GetEx(ctx, key, expiration), dest)
}

func decodeJSON(cmd *redis.StringCmd, dest interface{}) error {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	return json.Unmarshal(data, dest)
}

// Close closes the underlying client.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// SessionStore keeps browser sessions in Redis. Every load or save pushes
// the expiry one TTL out, so a session lives as long as it is used.
type SessionStore struct {
	redis *RedisRepository
	ttl   time.Duration
}

// NewSessionStore creates a session store whose entries expire ttl after
// their last use.
func NewSessionStore(r *RedisRepository, ttl time.Duration) *SessionStore {
	return &SessionStore{redis: r, ttl: ttl}
}

// Load returns the session with the given id, or cart.ErrSessionNotFound.
func (s *SessionStore) Load(ctx context.Context, id string) (*cart.Session, error) {
	var session cart.Session
	err := s.redis.GetJSONEx(ctx, sessionKey(id), &session, s.ttl)
	if errors.Is(err, ErrCacheMiss) {
		return nil, cart.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	session.ID = id
	session.Normalize()
	return &session, nil
}

// Save writes the session and marks it clean.
func (s *SessionStore) Save(ctx context.Context, session *cart.Session) error {
	if err := s.redis.SetJSON(ctx, sessionKey(session.ID), session, s.ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	session.Saved()
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, sessionKey(id)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
