package taskloop

import (
	"sync"

	"github.com/Swind/go-task-loop/core"
)

// =============================================================================
// Global Shared Pool Helper (Singleton)
// =============================================================================

var (
	globalSharedPool *SharedTaskPool
	globalMu         sync.Mutex
)

// InitGlobalSharedPool creates and prepares the global shared pool with at
// most maxThreads workers (0 means unbounded). Later calls are no-ops until
// ShutdownGlobalSharedPool.
func InitGlobalSharedPool(maxThreads int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalSharedPool != nil {
		return // Already initialized
	}

	cfg := core.DefaultPoolConfig()
	cfg.Name = "global-pool"
	cfg.MaxThreads = maxThreads
	globalSharedPool = core.NewSharedTaskPool(cfg)
	_ = globalSharedPool.Prepare()
}

// GetGlobalSharedPool returns the global shared pool instance.
// It panics if InitGlobalSharedPool has not been called.
func GetGlobalSharedPool() *SharedTaskPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalSharedPool == nil {
		panic("GlobalSharedPool not initialized. Call InitGlobalSharedPool() first.")
	}
	return globalSharedPool
}

// ShutdownGlobalSharedPool cleans the global shared pool up, waiting for
// the work on it. Tasks using it must be joined first or their run loops
// keep Cleanup waiting.
func ShutdownGlobalSharedPool() {
	globalMu.Lock()
	pool := globalSharedPool
	globalSharedPool = nil
	globalMu.Unlock()

	if pool != nil {
		pool.Cleanup()
	}
}

// CreateTask creates a task that runs on the global shared pool.
// This is the recommended way to get a new Task.
func CreateTask(fn TaskFunc, opts ...TaskOption) *Task {
	pool := GetGlobalSharedPool()
	return core.NewTask(fn, append([]TaskOption{core.WithPool(pool)}, opts...)...)
}
