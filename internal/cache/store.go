// Package cache provides the expiring key-value store that backs
// verification sessions.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss is returned when a key is absent or has expired.
	ErrMiss = errors.New("cache: key not found")
	// ErrContention is returned when an optimistic update lost every retry.
	ErrContention = errors.New("cache: concurrent update contention")
	// ErrUnavailable wraps transport failures talking to the backend.
	ErrUnavailable = errors.New("cache: backend unavailable")
)

// UpdateFunc receives the current value and returns the replacement.
// Returning a nil slice with a nil error leaves the key untouched.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is a byte/TTL service with no knowledge of what it stores.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Take atomically reads and deletes key. At most one caller observes
	// a given value.
	Take(ctx context.Context, key string) ([]byte, error)

	// Update applies fn to key under optimistic concurrency and writes the
	// result with ttl. ErrMiss is returned without calling fn if the key
	// does not exist.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error

	Ping(ctx context.Context) error
}
