package core

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Runnable is the unit of work a TaskPool executes.
type Runnable interface {
	Run(ctx context.Context)
}

// RunnableFunc adapts a plain function to Runnable.
type RunnableFunc func(ctx context.Context)

// Run calls f(ctx).
func (f RunnableFunc) Run(ctx context.Context) { f(ctx) }

// TaskPool runs pushed work asynchronously and lets callers wait for it later.
type TaskPool interface {
	// Prepare sets the pool up for use. Calling it on a prepared pool is a no-op.
	Prepare() error

	// Push schedules r and returns a handle for Join. It does not wait for r.
	Push(r Runnable) (*Handle, error)

	// Join blocks until the work identified by h has finished.
	Join(h *Handle)

	// Cleanup waits for all outstanding work and releases the pool.
	// Push fails after Cleanup until the pool is prepared again.
	Cleanup()
}

var handleSeq atomic.Uint64

// Handle identifies one pushed work item. It is a ticket, not a worker:
// a SharedTaskPool may run many handles on the same worker over time.
type Handle struct {
	id   uint64
	done chan struct{}
}

func newHandle() *Handle {
	return &Handle{id: handleSeq.Add(1), done: make(chan struct{})}
}

// ID returns the process-unique id of the handle.
func (h *Handle) ID() uint64 {
	if h == nil {
		return 0
	}
	return h.id
}

// Done returns a channel closed when the work has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) wait() {
	if h == nil {
		return
	}
	<-h.done
}

// workItem couples pushed work with its completion ticket.
type workItem struct {
	runnable Runnable
	handle   *Handle
}

// execute runs the item on the calling worker, reports panics and always
// completes the handle. The record is added to history, when given, before
// the handle completes.
func execute(item workItem, cfg *PoolConfig, workerID int, history *workHistory) {
	record := WorkRecord{
		HandleID:  item.handle.id,
		WorkerID:  workerID,
		StartedAt: time.Now(),
	}
	ctx := context.Background()

	func() {
		defer func() {
			if r := recover(); r != nil {
				record.Panicked = true
				cfg.Metrics.RecordWorkPanic(cfg.Name, r)
				cfg.PanicHandler.HandlePanic(ctx, cfg.Name, workerID, r, debug.Stack())
			}
		}()
		item.runnable.Run(ctx)
	}()

	record.FinishedAt = time.Now()
	record.Duration = record.FinishedAt.Sub(record.StartedAt)
	cfg.Metrics.RecordWorkDuration(cfg.Name, record.Duration)
	if history != nil {
		history.Add(record)
	}
	close(item.handle.done)
}
