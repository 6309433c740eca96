package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNilRunnable is returned by Push when no work is given.
	ErrNilRunnable = errors.New("runnable must not be nil")

	// ErrNotPrepared is matched by pool errors raised before Prepare or after Cleanup.
	ErrNotPrepared = errors.New("task pool not prepared")

	// ErrSpawnFailed is matched by pool errors raised when no worker could be started.
	ErrSpawnFailed = errors.New("failed to spawn worker")

	// ErrNoLock is returned by Start and Pause when no lock was set on the task.
	ErrNoLock = errors.New("task has no lock")

	// ErrTaskStopped is returned by Resume on a stopped task.
	ErrTaskStopped = errors.New("task is stopped")

	// ErrNotStarted is returned by Join on a task that was never started.
	ErrNotStarted = errors.New("task was never started")

	// ErrSelfJoin is returned by Join when called from the task's own run loop.
	ErrSelfJoin = errors.New("task cannot join itself")

	// ErrLockAfterStart is returned by SetLock once the task has been started.
	ErrLockAfterStart = errors.New("cannot change lock of a started task")
)

// PoolErrorKind classifies a PoolError.
type PoolErrorKind int

const (
	PoolErrorNotPrepared PoolErrorKind = iota + 1
	PoolErrorSpawnFailed
)

func (k PoolErrorKind) String() string {
	switch k {
	case PoolErrorNotPrepared:
		return "not prepared"
	case PoolErrorSpawnFailed:
		return "spawn failed"
	default:
		return "unknown"
	}
}

// PoolError reports a resource failure of a TaskPool.
type PoolError struct {
	Pool string
	Kind PoolErrorKind
	Err  error
}

func (e *PoolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task pool %q: %s: %v", e.Pool, e.Kind, e.Err)
	}
	return fmt.Sprintf("task pool %q: %s", e.Pool, e.Kind)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a PoolError against ErrNotPrepared and ErrSpawnFailed.
func (e *PoolError) Is(target error) bool {
	switch target {
	case ErrNotPrepared:
		return e.Kind == PoolErrorNotPrepared
	case ErrSpawnFailed:
		return e.Kind == PoolErrorSpawnFailed
	}
	return false
}

func notPrepared(pool string) error {
	return &PoolError{Pool: pool, Kind: PoolErrorNotPrepared}
}

func spawnFailed(pool string, err error) error {
	return &PoolError{Pool: pool, Kind: PoolErrorSpawnFailed, Err: err}
}
