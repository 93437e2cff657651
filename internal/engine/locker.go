package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/pkg/redis"
)

// ErrAlreadyRunning is returned when a recompute for the same (market, day)
// is already in flight.
var ErrAlreadyRunning = errors.New("recompute already running for this market and day")

// RunLocker grants the single-flight lease for one (market, day) recompute.
// The release function must be safe to call even after the lease expired.
type RunLocker interface {
	Acquire(ctx context.Context, market string, day contracts.Day) (release func(context.Context) error, acquired bool, err error)
}

func runKey(market string, day contracts.Day) string {
	return fmt.Sprintf("recompute:%s:%s", market, day)
}

// MemoryLocker is an in-process RunLocker for single-instance deployments
// and tests.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLocker creates a new MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, market string, day contracts.Day) (func(context.Context) error, bool, error) {
	key := runKey(market, day)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}
	return release, true, nil
}

// RedisLocker is a RunLocker backed by a Redis lease, for multi-instance
// deployments. The lease TTL bounds how long a crashed run can block a
// retry.
type RedisLocker struct {
	lock *redis.Lock
	ttl  time.Duration
}

// NewRedisLocker creates a new RedisLocker.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		lock: redis.NewLock(client, "quantrank"),
		ttl:  ttl,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, market string, day contracts.Day) (func(context.Context) error, bool, error) {
	return l.lock.Acquire(ctx, runKey(market, day), l.ttl)
}
