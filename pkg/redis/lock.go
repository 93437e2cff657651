package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock provides a lease-based distributed lock.
// The lease expires on its own, so a crashed holder never needs manual cleanup.
type Lock struct {
	client *Client
	prefix string
}

// NewLock creates a new lock helper.
func NewLock(client *Client, prefix string) *Lock {
	return &Lock{
		client: client,
		prefix: prefix,
	}
}

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Acquire tries to take the lease for key with the given TTL.
// Returns (release, true) on success; (nil, false) when another holder owns it.
// When Redis is disabled every acquisition succeeds with a no-op release.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if !l.client.Enabled() {
		return func(context.Context) error { return nil }, true, nil
	}

	token, err := newToken()
	if err != nil {
		return nil, false, err
	}

	fullKey := fmt.Sprintf("%s:lock:%s", l.prefix, key)
	ok, err := l.client.Redis().SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock acquire failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client.Redis(), []string{fullKey}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("lock release failed: %w", err)
		}
		return nil
	}
	return release, true, nil
}

// newToken returns a random holder token so a lock is never released by a
// later holder after lease expiry.
func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("lock token generation failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
