package core

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// PanicHandler: Interface for handling work panics
// =============================================================================

// PanicHandler is called when pushed work or a task function panics.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a work item panics.
	//
	// Parameters:
	// - ctx: The context the work ran with (carries the task for task run loops)
	// - poolName: The name of the pool whose worker caught the panic
	// - workerID: The ID of the worker, -1 when the worker has no stable identity
	// - panicInfo: The panic value recovered from the work
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, poolName string, workerID int, panicInfo any, stackTrace []byte)
}

// LogPanicHandler reports panics through a Logger.
type LogPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic at error level.
func (h *LogPanicHandler) HandlePanic(ctx context.Context, poolName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("work panicked",
		F("pool", poolName),
		F("worker", workerID),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting pool execution metrics.
// Methods should be non-blocking and fast to avoid impacting work execution.
type Metrics interface {
	// RecordWorkDuration records how long one pushed item took to execute.
	RecordWorkDuration(poolName string, duration time.Duration)

	// RecordWorkPanic records that a pushed item panicked.
	RecordWorkPanic(poolName string, panicInfo any)

	// RecordQueueDepth records the number of items waiting for a worker.
	RecordQueueDepth(poolName string, depth int)

	// RecordPushRejected records that Push refused an item.
	// reason is "not_prepared", "spawn_failed" or "nil_runnable".
	RecordPushRejected(poolName string, reason string)

	// RecordPushPath records how Push placed an accepted item: on an idle
	// worker, on a newly started worker or in the queue.
	RecordPushPath(poolName string, path PushPath)

	// RecordWorkerRetired records that a worker exited.
	RecordWorkerRetired(poolName string, reason RetireReason)
}

// PushPath names the route an accepted item took to a worker.
type PushPath string

const (
	PushHandoff PushPath = "handoff"
	PushSpawn   PushPath = "spawn"
	PushQueued  PushPath = "queued"
)

// RetireReason names why a worker exited.
type RetireReason string

const (
	// RetireShrink is a worker above a lowered MaxThreads.
	RetireShrink RetireReason = "shrink"
	// RetireCleanup is a worker stopped by Cleanup.
	RetireCleanup RetireReason = "cleanup"
)

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordWorkDuration(poolName string, duration time.Duration) {}
func (m *NilMetrics) RecordWorkPanic(poolName string, panicInfo any)             {}
func (m *NilMetrics) RecordQueueDepth(poolName string, depth int)                {}
func (m *NilMetrics) RecordPushRejected(poolName string, reason string)          {}
func (m *NilMetrics) RecordPushPath(poolName string, path PushPath)               {}
func (m *NilMetrics) RecordWorkerRetired(poolName string, reason RetireReason)    {}

// =============================================================================
// Spawner: the thread primitive pools start workers with
// =============================================================================

// Spawner starts fn concurrently with the caller.
// A non-nil error means fn will never run.
type Spawner interface {
	Spawn(fn func()) error
}

// GoroutineSpawner starts each worker on a new goroutine.
// With LockOSThread the goroutine is wired to its own OS thread until it exits.
type GoroutineSpawner struct {
	LockOSThread bool
}

// Spawn never fails.
func (s GoroutineSpawner) Spawn(fn func()) error {
	go func() {
		if s.LockOSThread {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
		}
		fn()
	}()
	return nil
}

// =============================================================================
// PoolConfig: Configuration for task pools
// =============================================================================

// PoolConfig holds configuration options for GoroutineTaskPool and SharedTaskPool.
// All handlers are optional; if not provided, default implementations will be used.
type PoolConfig struct {
	// Name identifies the pool in logs and metrics. Defaults to "pool-<random>".
	Name string

	// MaxThreads bounds the live workers of a SharedTaskPool; 0 means unbounded.
	// Ignored by GoroutineTaskPool.
	MaxThreads int

	// Logger receives diagnostics. Defaults to the global zap logger.
	Logger Logger

	// PanicHandler is called when work panics. Defaults to LogPanicHandler.
	PanicHandler PanicHandler

	// Metrics records pool activity. Defaults to NilMetrics.
	Metrics Metrics

	// Spawner starts workers. Defaults to GoroutineSpawner{}.
	Spawner Spawner
}

// DefaultPoolConfig returns a config with default handlers and one shared worker.
func DefaultPoolConfig() *PoolConfig {
	logger := NewDefaultLogger()
	return &PoolConfig{
		MaxThreads:   1,
		Logger:       logger,
		PanicHandler: &LogPanicHandler{Logger: logger},
		Metrics:      &NilMetrics{},
		Spawner:      GoroutineSpawner{},
	}
}

// withDefaults returns a copy of c with every unset field filled in.
func (c *PoolConfig) withDefaults() PoolConfig {
	var out PoolConfig
	if c != nil {
		out = *c
	}
	if out.Name == "" {
		out.Name = "pool-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	}
	if out.MaxThreads < 0 {
		out.MaxThreads = 0
	}
	if out.Logger == nil {
		out.Logger = NewDefaultLogger()
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &LogPanicHandler{Logger: out.Logger}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.Spawner == nil {
		out.Spawner = GoroutineSpawner{}
	}
	return out
}
