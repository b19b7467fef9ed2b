package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records bearer tokens revoked by logout until they expire on
// their own. A nil Denylist, or one without a client, is a no-op.
type Denylist struct {
	client *redis.Client
	prefix string
}

func NewDenylist(client *redis.Client) *Denylist {
	return &Denylist{client: client, prefix: "denylist:access:"}
}

// keys hold a digest so raw tokens never sit in Redis
func (d *Denylist) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return d.prefix + hex.EncodeToString(sum[:])
}

// Revoke stores the token in the denylist with TTL.
func (d *Denylist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if d == nil || d.client == nil || ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, d.key(token), "1", ttl).Err()
}

// IsRevoked returns true when the token exists in the denylist.
func (d *Denylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if d == nil || d.client == nil {
		return false, nil
	}
	n, err := d.client.Exists(ctx, d.key(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
