package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository implements Repository using Redis as the backing store.
// Sessions are stored as JSON under key "<prefix><id>" with TTL = expiresAt - now,
// so Redis drops them on expiry without a sweeper.
type RedisRepository struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisRepository creates a Redis-based session repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + id
}

func (r *RedisRepository) ttl(expiresAt time.Time) time.Duration {
	d := expiresAt.Sub(r.now())
	if d < time.Second {
		// ensure a minimal TTL so Redis won't store expired sessions
		d = time.Second
	}
	return d
}

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.key(s.ID), b, r.ttl(s.ExpiresAt)).Result()
	if err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*Session, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	// If session expired from perspective of stored value, treat as missing
	if s.Expired(r.now().UTC()) {
		_ = r.client.Del(ctx, r.key(id)).Err()
		return nil, ErrNotFound
	}
	return &s, nil
}

// Touch rewrites the stored value with the new expiry. SET XX never resurrects
// a session that expired or was deleted concurrently.
func (r *RedisRepository) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	s.ExpiresAt = expiresAt.UTC()
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	err = r.client.SetArgs(ctx, r.key(id), b, redis.SetArgs{Mode: "XX", TTL: r.ttl(expiresAt)}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis touch session: %w", err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}
