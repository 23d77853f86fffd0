package cache

import (
	"context"
	"time"
)

// Provider is the shared cache tier: a key/value store reachable by every
// gate instance guarding the same folder, usually over the network. Values
// are opaque bytes; TwoTier handles encoding. Implementations apply their
// configured namespace to every key.
//
// Providers must be safe for concurrent use. No cross-key atomicity is
// required: a Get racing a Remove may return the removed value.
type Provider interface {
	// Get returns the value stored under key. A missing or expired key is
	// (nil, false, nil); errors are reserved for transport failures.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for the given TTL. A non-positive TTL
	// stores the value without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear removes every key in this provider's namespace.
	Clear(ctx context.Context) error

	// Close releases the provider's resources.
	Close() error
}
