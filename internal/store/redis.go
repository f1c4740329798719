package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/BTreeMap/ReviewPipe/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultSessionKeyPrefix namespaces session keys in Redis.
const DefaultSessionKeyPrefix = "reviewpipe:session:"

// RedisSessionStore keeps sessions in Redis as JSON values. Each write
// refreshes the key's TTL, so idle sessions expire on their own.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisSessionStore connects to the Redis server named by the RedisURL
// option and verifies the connection.
func NewRedisSessionStore(ctx context.Context, opts ...Option) (*RedisSessionStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL not set")
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		slog.Error("RedisSessionStore: ping failed", "error", err, "addr", redisOpts.Addr)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Debug("RedisSessionStore: connected", "addr", redisOpts.Addr, "ttl", cfg.SessionTTL)
	return NewRedisSessionStoreWithClient(client, cfg.KeyPrefix, cfg.SessionTTL), nil
}

// NewRedisSessionStoreWithClient wraps an existing client. An empty prefix
// selects DefaultSessionKeyPrefix; a zero ttl disables expiry.
func NewRedisSessionStoreWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisSessionStore {
	if prefix == "" {
		prefix = DefaultSessionKeyPrefix
	}
	return &RedisSessionStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisSessionStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisSessionStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		slog.Error("RedisSessionStore.GetSession failed", "error", err, "sessionID", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return decodeSession(val)
}

func (r *RedisSessionStore) PutSession(ctx context.Context, sess models.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sess.ID, err)
	}
	if err := r.client.Set(ctx, r.key(sess.ID), payload, r.ttl).Err(); err != nil {
		slog.Error("RedisSessionStore.PutSession failed", "error", err, "sessionID", sess.ID)
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return nil
}

func (r *RedisSessionStore) DeleteSession(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListSessions scans the key space under the store's prefix.
func (r *RedisSessionStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	out := []models.Session{}
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read session key %s: %w", iter.Val(), err)
		}
		sess, err := decodeSession(val)
		if err != nil {
			slog.Warn("RedisSessionStore.ListSessions skipping undecodable session", "key", iter.Val(), "error", err)
			continue
		}
		out = append(out, *sess)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Close closes the Redis client.
func (r *RedisSessionStore) Close() error {
	return r.client.Close()
}
