package taskloop

import "github.com/Swind/go-task-loop/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskloop package for most use cases.

// Task repeatedly runs a TaskFunc on a pool worker
type Task = core.Task

// TaskFunc is the body of a Task
type TaskFunc = core.TaskFunc

// TaskState is the lifecycle state of a Task
type TaskState = core.TaskState

// TaskOption configures a Task at construction
type TaskOption = core.TaskOption

// TaskPool is the interface tasks push their run loops to
type TaskPool = core.TaskPool

// Handle identifies one pushed work item
type Handle = core.Handle

// Runnable is the unit of work a TaskPool executes
type Runnable = core.Runnable

// RunnableFunc adapts a plain function to Runnable
type RunnableFunc = core.RunnableFunc

// PoolConfig configures a pool
type PoolConfig = core.PoolConfig

// GoroutineTaskPool starts a new worker for every push
type GoroutineTaskPool = core.GoroutineTaskPool

// SharedTaskPool reuses a bounded set of workers
type SharedTaskPool = core.SharedTaskPool

// RecMutex is a re-entrant mutex
type RecMutex = core.RecMutex

// ParallelizedRunner fans a function out over inputs on a pool
type ParallelizedRunner[T any] = core.ParallelizedRunner[T]

// State constants
const (
	TaskStopped = core.TaskStopped
	TaskStarted = core.TaskStarted
	TaskPaused  = core.TaskPaused
)

// Task options
var (
	WithName         = core.WithName
	WithLock         = core.WithLock
	WithPool         = core.WithPool
	WithLogger       = core.WithLogger
	WithPanicHandler = core.WithPanicHandler
)

// NewTask creates a stopped task running fn on the default pool unless
// WithPool is given.
func NewTask(fn TaskFunc, opts ...TaskOption) *Task {
	return core.NewTask(fn, opts...)
}

// NewGoroutineTaskPool creates an unprepared pool that starts a worker per push.
func NewGoroutineTaskPool(cfg *PoolConfig) *GoroutineTaskPool {
	return core.NewGoroutineTaskPool(cfg)
}

// NewSharedTaskPool creates an unprepared pool bounded by cfg.MaxThreads.
func NewSharedTaskPool(cfg *PoolConfig) *SharedTaskPool {
	return core.NewSharedTaskPool(cfg)
}

// NewParallelizedRunner creates a runner using up to nThreads workers of pool.
func NewParallelizedRunner[T any](nThreads int, pool TaskPool, async bool) (*ParallelizedRunner[T], error) {
	return core.NewParallelizedRunner[T](nThreads, pool, async)
}

// CurrentTask returns the task whose run loop is executing with ctx
var CurrentTask = core.CurrentTask

// CleanupAll tears down the process-wide default pool
var CleanupAll = core.CleanupAll
