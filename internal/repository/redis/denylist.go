// Package redis keeps the token denylist in Redis so that several server
// instances behind a load balancer agree on which tokens were logged out.
//
// Each revoked token is one key with a TTL equal to the token's remaining
// lifetime, so Redis forgets it at the moment the token would have expired
// anyway. No cleanup job is needed.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sakif/sprintium/internal/repository"
)

const keyPrefix = "sprintium:revoked:"

var _ repository.TokenDenylist = (*Denylist)(nil)

// Denylist implements repository.TokenDenylist on a Redis client.
type Denylist struct {
	client goredis.UniversalClient
}

// New connects to the Redis server at url (redis://[:password@]host:port/db)
// and verifies the connection.
func New(ctx context.Context, url string) (*Denylist, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parsing url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: pinging server: %w", err)
	}

	return &Denylist{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client goredis.UniversalClient) *Denylist {
	return &Denylist{client: client}
}

// Close closes the underlying client.
func (d *Denylist) Close() error {
	return d.client.Close()
}

// Revoke stores tokenID until `until`. An already-expired token needs no
// entry. A second revoke never shortens an existing entry.
func (d *Denylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}

	key := keyPrefix + tokenID

	current, err := d.client.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis: reading ttl of revoked token: %w", err)
	}
	if current >= ttl {
		return nil
	}

	if err := d.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis: revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether a live entry exists for tokenID.
func (d *Denylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, err := d.client.Get(ctx, keyPrefix+tokenID).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis: checking revoked token: %w", err)
	}
	return true, nil
}
