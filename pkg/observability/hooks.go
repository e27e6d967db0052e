// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register hooks
// at startup to receive events about graph mutations, rollups, snapshots,
// cache operations and API requests.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// The prom subpackage implements every hook with Prometheus collectors.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    m := prom.New(prometheus.DefaultRegisterer)
//	    observability.SetGraphHooks(m)
//	    observability.SetRollupHooks(m)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	// ... mutate the graph ...
//	observability.Graph().OnMutation(ctx, "upsert_relationship", time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Graph Hooks
// =============================================================================

// GraphHooks receives events from graph mutations.
type GraphHooks interface {
	// OnMutation records a completed write operation. err is nil on success.
	OnMutation(ctx context.Context, op string, duration time.Duration, err error)

	// OnCycleRejected records an edge insertion refused by the cycle check.
	OnCycleRejected(ctx context.Context, parent, child string)
}

// =============================================================================
// Rollup Hooks
// =============================================================================

// RollupHooks receives events from the rollup engine.
type RollupHooks interface {
	// OnRollupComplete records a rollup of the given kind ("numeric",
	// "weight"). cached reports whether the result came from the cache.
	OnRollupComplete(ctx context.Context, kind string, entries int, cached bool, duration time.Duration, err error)
}

// =============================================================================
// Snapshot Hooks
// =============================================================================

// SnapshotHooks receives events from the snapshot store and diff engine.
type SnapshotHooks interface {
	// OnSnapshotCreated records a snapshot create. deduplicated is true when
	// an existing snapshot was returned.
	OnSnapshotCreated(ctx context.Context, root string, deduplicated bool, parts, relationships int)

	// OnDiff records a snapshot comparison.
	OnDiff(ctx context.Context, equal bool, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the API server.
type HTTPHooks interface {
	// OnRequest records a served request. route is the matched pattern.
	OnRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopGraphHooks is a no-op implementation of GraphHooks.
type NoopGraphHooks struct{}

func (NoopGraphHooks) OnMutation(context.Context, string, time.Duration, error) {}
func (NoopGraphHooks) OnCycleRejected(context.Context, string, string)          {}

// NoopRollupHooks is a no-op implementation of RollupHooks.
type NoopRollupHooks struct{}

func (NoopRollupHooks) OnRollupComplete(context.Context, string, int, bool, time.Duration, error) {
}

// NoopSnapshotHooks is a no-op implementation of SnapshotHooks.
type NoopSnapshotHooks struct{}

func (NoopSnapshotHooks) OnSnapshotCreated(context.Context, string, bool, int, int) {}
func (NoopSnapshotHooks) OnDiff(context.Context, bool, time.Duration)               {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	graphHooks    GraphHooks    = NoopGraphHooks{}
	rollupHooks   RollupHooks   = NoopRollupHooks{}
	snapshotHooks SnapshotHooks = NoopSnapshotHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetGraphHooks registers custom graph hooks.
// This should be called once at application startup.
func SetGraphHooks(h GraphHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		graphHooks = h
	}
}

// SetRollupHooks registers custom rollup hooks.
func SetRollupHooks(h RollupHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		rollupHooks = h
	}
}

// SetSnapshotHooks registers custom snapshot hooks.
func SetSnapshotHooks(h SnapshotHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		snapshotHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Graph returns the registered graph hooks.
func Graph() GraphHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return graphHooks
}

// Rollup returns the registered rollup hooks.
func Rollup() RollupHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return rollupHooks
}

// Snapshot returns the registered snapshot hooks.
func Snapshot() SnapshotHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return snapshotHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	graphHooks = NoopGraphHooks{}
	rollupHooks = NoopRollupHooks{}
	snapshotHooks = NoopSnapshotHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
