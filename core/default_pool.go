package core

import (
	"sync"
)

// =============================================================================
// Process-wide default pool (ref-counted singleton)
// =============================================================================

var (
	defaultPool     *GoroutineTaskPool
	defaultPoolRefs int
	defaultPoolMu   sync.Mutex
)

// AcquireDefaultPool returns the process-wide GoroutineTaskPool, creating and
// preparing it on first use, and takes a reference on it.
// Every call must be balanced by ReleaseDefaultPool.
func AcquireDefaultPool() *GoroutineTaskPool {
	defaultPoolMu.Lock()
	defer defaultPoolMu.Unlock()

	if defaultPool == nil {
		defaultPool = NewGoroutineTaskPool(&PoolConfig{Name: "default-pool"})
		_ = defaultPool.Prepare()
	}
	defaultPoolRefs++
	return defaultPool
}

// ReleaseDefaultPool drops a reference on pool taken by AcquireDefaultPool.
// The last reference cleans the pool up; the next Acquire creates a new one.
// Releasing an instance already torn down by CleanupAll is a no-op.
func ReleaseDefaultPool(pool *GoroutineTaskPool) {
	defaultPoolMu.Lock()
	if pool == nil || pool != defaultPool || defaultPoolRefs == 0 {
		defaultPoolMu.Unlock()
		return
	}
	defaultPoolRefs--
	if defaultPoolRefs > 0 {
		defaultPoolMu.Unlock()
		return
	}
	defaultPool = nil
	defaultPoolMu.Unlock()

	pool.Cleanup()
}

// DefaultPoolRefs returns the number of outstanding default pool references.
func DefaultPoolRefs() int {
	defaultPoolMu.Lock()
	defer defaultPoolMu.Unlock()
	return defaultPoolRefs
}

// CleanupAll tears the default pool down regardless of outstanding
// references, waiting for its running work. Call it before process exit.
func CleanupAll() {
	defaultPoolMu.Lock()
	pool := defaultPool
	defaultPool = nil
	defaultPoolRefs = 0
	defaultPoolMu.Unlock()

	if pool != nil {
		pool.Cleanup()
	}
}
