// Package core declares the ports between the sync services and their
// storage, cache and analysis collaborators.
package core

import (
	"context"
	"time"
)

// CacheRepository is the key-value cache used for cross-instance coordination.
type CacheRepository interface {
	// Get returns nil when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetIfNotExists atomically sets a key only if it is absent and reports
	// whether it was set.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// DeleteIfValue removes key only while it still holds value, so a holder
	// whose entry expired cannot delete a newer holder's entry.
	DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// ReleaseFunc gives up a lock obtained from RunLocker.
type ReleaseFunc func(ctx context.Context) error

// RunLocker grants at most one holder per key across instances.
type RunLocker interface {
	// TryLock returns ok=false without error when another holder owns key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error)
}
