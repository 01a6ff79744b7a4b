package cache

import (
	"context"
	"time"
)

// Store is a keyed cache with per-entry expiry. Deployments with more than
// one API instance must use the Redis-backed store; the in-memory store is
// only correct for a single process.
type Store interface {
	// Get returns the value for key, or ok=false if absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value only if the key is absent. Returns true if the
	// value was stored, false if the key already existed.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key.
	Delete(ctx context.Context, key string) error
}
