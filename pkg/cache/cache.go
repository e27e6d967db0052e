// Package cache stores derived results keyed by content hashes.
//
// Rollup results are a pure function of the subgraph under a root and the
// rollup options. The [Keyer] derives keys from the subgraph's canonical
// signature, so a cached entry can never be served for a graph that has
// changed since it was computed; stale entries simply stop being looked up
// and age out through their TTL.
//
// Backends:
//   - [NullCache]: caching disabled (the default)
//   - [FileCache]: one JSON file per entry under a directory, for the CLI
//   - [RedisCache]: shared cache for the HTTP server
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value and true on a hit, or false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases resources held by the backend.
	Close() error
}

// Keyer generates cache keys.
type Keyer interface {
	// RollupKey keys a rollup of the given kind ("numeric", "weight") over
	// a subgraph with the given signature.
	RollupKey(kind, signature string, opts any) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// RollupKey implements Keyer.
func (DefaultKeyer) RollupKey(kind, signature string, opts any) string {
	return rollupKey(kind, signature, opts)
}

// ScopedKeyer prefixes every key, giving several BOM datasets that share one
// cache backend separate namespaces.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer uses
// [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// RollupKey implements Keyer.
func (k *ScopedKeyer) RollupKey(kind, signature string, opts any) string {
	return k.prefix + k.inner.RollupKey(kind, signature, opts)
}
