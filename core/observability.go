package core

import "time"

// WorkRecord captures one completed pool work item.
type WorkRecord struct {
	HandleID   uint64
	WorkerID   int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// PoolStats represents runtime observability state for a task pool.
type PoolStats struct {
	ID         string
	Type       string
	MaxThreads int
	Workers    int
	Idle       int
	Queued     int
	Active     int
	Prepared   bool
}

// TaskStats represents runtime observability state for a task.
type TaskStats struct {
	Name       string
	State      TaskState
	Iterations uint64
	Running    bool
	PoolID     string
}
