package core

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ParallelizedRunner fans a function out over a slice of inputs on a
// TaskPool. Each pushed worker keeps taking the next unprocessed input
// until none is left.
//
// In synchronous mode Run also processes inputs on the calling goroutine
// and returns once everything is done. In async mode Run returns right
// after pushing and Finish waits for the work.
type ParallelizedRunner[T any] struct {
	pool     TaskPool
	ownPool  bool
	nThreads int
	async    bool

	mu      sync.Mutex
	handles []*Handle
	fn      func(T)
	data    []T
	next    int
}

// NewParallelizedRunner creates a runner using up to nThreads workers.
// nThreads == 0 means runtime.GOMAXPROCS(0). With a nil pool the runner
// owns a SharedTaskPool of nThreads workers; with a SharedTaskPool,
// nThreads is clamped to its MaxThreads.
func NewParallelizedRunner[T any](nThreads int, pool TaskPool, async bool) (*ParallelizedRunner[T], error) {
	if nThreads <= 0 {
		nThreads = runtime.GOMAXPROCS(0)
	}

	r := &ParallelizedRunner[T]{
		pool:     pool,
		nThreads: nThreads,
		async:    async,
	}

	if pool == nil {
		shared := NewSharedTaskPool(&PoolConfig{Name: "parallelized-runner", MaxThreads: nThreads})
		if err := shared.Prepare(); err != nil {
			return nil, err
		}
		r.pool = shared
		r.ownPool = true
	} else if shared, ok := pool.(*SharedTaskPool); ok {
		// No reason to split the work between more workers than the pool runs.
		if limit := shared.MaxThreads(); limit > 0 && limit < r.nThreads {
			r.nThreads = limit
		}
	}
	return r, nil
}

// NThreads returns the number of workers a Run uses at most.
func (r *ParallelizedRunner[T]) NThreads() int {
	return r.nThreads
}

// Run applies fn to every element of data. A Run still in flight from an
// async call is finished first.
func (r *ParallelizedRunner[T]) Run(fn func(T), data []T) error {
	if fn == nil {
		return errors.New("parallelized runner: fn must not be nil")
	}
	r.Finish()

	r.mu.Lock()
	r.fn = fn
	r.data = data
	r.next = 0

	workers := min(r.nThreads, len(data))
	if !r.async && workers > 0 {
		// One share runs on the calling goroutine.
		workers--
	}

	var pushErr error
	for i := 0; i < workers; i++ {
		h, err := r.pool.Push(RunnableFunc(r.work))
		if err != nil {
			pushErr = err
			break
		}
		r.handles = append(r.handles, h)
	}
	r.mu.Unlock()

	if pushErr != nil {
		// Whatever could not be pushed is processed here.
		r.work(context.Background())
		r.Finish()
		return pushErr
	}

	if !r.async {
		r.work(context.Background())
		r.Finish()
	}
	return nil
}

// Finish waits for every pushed worker of the current Run.
func (r *ParallelizedRunner[T]) Finish() {
	for {
		r.mu.Lock()
		if len(r.handles) == 0 {
			r.fn = nil
			r.data = nil
			r.mu.Unlock()
			return
		}
		h := r.handles[0]
		r.handles = r.handles[1:]
		r.mu.Unlock()

		r.pool.Join(h)
	}
}

// Close finishes outstanding work and cleans up a pool the runner created.
func (r *ParallelizedRunner[T]) Close() {
	r.Finish()
	if r.ownPool {
		r.pool.Cleanup()
	}
}

func (r *ParallelizedRunner[T]) work(ctx context.Context) {
	for {
		r.mu.Lock()
		if r.next >= len(r.data) {
			r.mu.Unlock()
			return
		}
		item := r.data[r.next]
		fn := r.fn
		r.next++
		r.mu.Unlock()

		fn(item)
	}
}
