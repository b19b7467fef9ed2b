package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*mr.Miniredis, *redis.Client) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return m, client
}

func TestRedisRepository_CreateGetDelete(t *testing.T) {
	_, client := newTestRedis(t)
	repo := NewRedisRepository(client, "test:session:")

	ctx := context.Background()
	s := &Session{
		ID:        "s1",
		UserID:    "user-1",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(5 * time.Second),
	}

	require.NoError(t, repo.Create(ctx, s))
	require.ErrorIs(t, repo.Create(ctx, s), ErrDuplicate)

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, s.UserID, got.UserID)

	// test deletion
	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "s1"))
}

func TestRedisRepository_TTLExpiry(t *testing.T) {
	m, client := newTestRedis(t)
	repo := NewRedisRepository(client, "test:session:")

	ctx := context.Background()
	s := &Session{
		ID:        "s2",
		UserID:    "user-2",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(1 * time.Second),
	}

	require.NoError(t, repo.Create(ctx, s))

	// visible immediately
	_, err := repo.Get(ctx, "s2")
	require.NoError(t, err)

	// advance miniredis clock past TTL
	m.FastForward(2 * time.Second)

	_, err = repo.Get(ctx, "s2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRepository_Touch(t *testing.T) {
	m, client := newTestRedis(t)
	repo := NewRedisRepository(client, "")
	now := time.Now().UTC()
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	s := &Session{ID: "s3", UserID: "u3", CreatedAt: now, ExpiresAt: now.Add(10 * time.Second)}
	require.NoError(t, repo.Create(ctx, s))
	require.Equal(t, 10*time.Second, m.TTL("session:s3"))

	require.NoError(t, repo.Touch(ctx, "s3", now.Add(time.Hour)))
	require.Equal(t, time.Hour, m.TTL("session:s3"))

	got, err := repo.Get(ctx, "s3")
	require.NoError(t, err)
	require.True(t, got.ExpiresAt.Equal(now.Add(time.Hour)))

	require.ErrorIs(t, repo.Touch(ctx, "missing", now.Add(time.Hour)), ErrNotFound)
}

func TestService_WithRedisRepository(t *testing.T) {
	_, client := newTestRedis(t)
	svc := NewService(NewRedisRepository(client, "svc:"), time.Hour)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "u9")
	require.NoError(t, err)
	got, _, err := svc.Resolve(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, "u9", got.UserID)

	require.NoError(t, svc.DeleteSession(ctx, sess.ID))
	_, _, err = svc.Resolve(ctx, sess.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
