package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Swind/go-task-loop/internal/threadid"
)

// Ensure both pool strategies fully implement TaskPool
var (
	_ TaskPool = (*GoroutineTaskPool)(nil)
	_ TaskPool = (*SharedTaskPool)(nil)
)

func TestGoroutineTaskPool_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pool := NewGoroutineTaskPool(quietConfig("test-pool", 0))

	if pool.ID() != "test-pool" {
		t.Errorf("expected ID 'test-pool', got %s", pool.ID())
	}
	if pool.IsPrepared() {
		t.Error("pool should not be prepared initially")
	}

	if err := pool.Prepare(); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := pool.Prepare(); err != nil {
		t.Fatalf("second Prepare should be a no-op, got %v", err)
	}
	if !pool.IsPrepared() {
		t.Error("pool should be prepared after Prepare()")
	}

	pool.Cleanup()

	if pool.IsPrepared() {
		t.Error("pool should not be prepared after Cleanup()")
	}
}

// TestGoroutineTaskPool_PushRejected tests Push failures
// Main test items:
// 1. Push before Prepare fails with a not-prepared PoolError
// 2. Push after Cleanup fails the same way
// 3. nil work is rejected
func TestGoroutineTaskPool_PushRejected(t *testing.T) {
	metrics := newRecordingMetrics()
	pool := NewGoroutineTaskPool(&PoolConfig{Name: "rejecting", Logger: NewNoOpLogger(), Metrics: metrics})

	_, err := pool.Push(RunnableFunc(func(ctx context.Context) {}))
	if !errors.Is(err, ErrNotPrepared) {
		t.Fatalf("expected ErrNotPrepared before Prepare, got %v", err)
	}
	var poolErr *PoolError
	if !errors.As(err, &poolErr) || poolErr.Kind != PoolErrorNotPrepared || poolErr.Pool != "rejecting" {
		t.Fatalf("expected PoolError{rejecting, NotPrepared}, got %#v", err)
	}

	_ = pool.Prepare()
	pool.Cleanup()

	if _, err := pool.Push(RunnableFunc(func(ctx context.Context) {})); !errors.Is(err, ErrNotPrepared) {
		t.Fatalf("expected ErrNotPrepared after Cleanup, got %v", err)
	}
	if _, err := pool.Push(nil); !errors.Is(err, ErrNilRunnable) {
		t.Fatalf("expected ErrNilRunnable, got %v", err)
	}

	if got := metrics.rejected("not_prepared"); got != 2 {
		t.Errorf("expected 2 not_prepared rejections, got %d", got)
	}
	if got := metrics.rejected("nil_runnable"); got != 1 {
		t.Errorf("expected 1 nil_runnable rejection, got %d", got)
	}
}

// TestGoroutineTaskPool_SpawnsPerPush tests one worker per push
// Main test items:
// 1. Push N items that all block until released
// 2. Every item records a distinct goroutine identity
// 3. Join succeeds for every handle after release
func TestGoroutineTaskPool_SpawnsPerPush(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const n = 8
	pool := NewGoroutineTaskPool(quietConfig("per-push", 0))
	_ = pool.Prepare()
	defer pool.Cleanup()

	release := make(chan struct{})
	var started sync.WaitGroup
	var mu sync.Mutex
	ids := make(map[uint64]bool)

	started.Add(n)
	handles := make([]*Handle, 0, n)
	for i := 0; i < n; i++ {
		h, err := pool.Push(RunnableFunc(func(ctx context.Context) {
			mu.Lock()
			ids[threadid.Goroutine()] = true
			mu.Unlock()
			started.Done()
			<-release
		}))
		if err != nil {
			t.Fatalf("push %d failed: %v", i, err)
		}
		handles = append(handles, h)
	}

	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()
	waitFor(t, allStarted, "all items to block simultaneously")

	if active := pool.ActiveCount(); active != n {
		t.Errorf("expected %d active workers, got %d", n, active)
	}

	close(release)
	for _, h := range handles {
		pool.Join(h)
	}

	if len(ids) != n {
		t.Errorf("expected %d distinct goroutines, got %d", n, len(ids))
	}
}

func TestGoroutineTaskPool_SpawnFailure(t *testing.T) {
	metrics := newRecordingMetrics()
	pool := NewGoroutineTaskPool(&PoolConfig{
		Name:    "no-threads",
		Logger:  NewNoOpLogger(),
		Metrics: metrics,
		Spawner: &limitedSpawner{allow: 0},
	})
	_ = pool.Prepare()
	defer pool.Cleanup()

	var ran atomic.Bool
	h, err := pool.Push(RunnableFunc(func(ctx context.Context) { ran.Store(true) }))
	if !errors.Is(err, ErrSpawnFailed) {
		t.Fatalf("expected ErrSpawnFailed, got %v", err)
	}
	if !errors.Is(err, errNoThreads) {
		t.Errorf("expected the spawner error to be wrapped, got %v", err)
	}
	if h != nil {
		t.Error("expected no handle on spawn failure")
	}
	if ran.Load() {
		t.Error("work must never run when spawning failed")
	}
	if got := metrics.rejected("spawn_failed"); got != 1 {
		t.Errorf("expected 1 spawn_failed rejection, got %d", got)
	}
}

// TestGoroutineTaskPool_CleanupWaits tests that Cleanup waits for running work
// Main test items:
// 1. Push an item that sleeps briefly
// 2. Cleanup returns only after the item finished
func TestGoroutineTaskPool_CleanupWaits(t *testing.T) {
	pool := NewGoroutineTaskPool(quietConfig("cleanup", 0))
	_ = pool.Prepare()

	var finished atomic.Bool
	if _, err := pool.Push(RunnableFunc(func(ctx context.Context) {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	pool.Cleanup()

	if !finished.Load() {
		t.Error("Cleanup returned before outstanding work finished")
	}
}

func TestGoroutineTaskPool_PanicRecovered(t *testing.T) {
	handler := &recordingPanicHandler{}
	metrics := newRecordingMetrics()
	pool := NewGoroutineTaskPool(&PoolConfig{
		Name:         "panicky",
		Logger:       NewNoOpLogger(),
		PanicHandler: handler,
		Metrics:      metrics,
	})
	_ = pool.Prepare()
	defer pool.Cleanup()

	h, err := pool.Push(RunnableFunc(func(ctx context.Context) { panic("boom") }))
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	pool.Join(h)
	pool.Join(h) // joining a finished handle returns immediately

	if handler.count() != 1 {
		t.Errorf("expected 1 recorded panic, got %d", handler.count())
	}
	if metrics.panics != 1 {
		t.Errorf("expected 1 panic metric, got %d", metrics.panics)
	}
}

func TestGoroutineTaskPool_Stats(t *testing.T) {
	pool := NewGoroutineTaskPool(quietConfig("stats", 0))
	_ = pool.Prepare()
	defer pool.Cleanup()

	b := newBlocker(threadid.Goroutine)
	h, err := pool.Push(b)
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	waitFor(t, b.started, "blocker start")

	stats := pool.Stats()
	if stats.ID != "stats" || stats.Type != "goroutine" || !stats.Prepared || stats.Active != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	close(b.release)
	pool.Join(h)
}
