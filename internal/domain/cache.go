package domain

import (
	"context"
	"time"
)

// SignalBus is a fire-and-forget pub/sub channel for lifecycle events.
// Delivery is best-effort and never gates a transaction outcome.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter bounds request rates per key.
type RateLimiter interface {
	// Allow reports whether a request under key is permitted and counts it.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed mutual exclusion, used so only one
// instance runs a sweep tick at a time. Acquire returns an unlock function
// on success and ErrLockHeld when another holder owns the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
