package taskloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestGlobalSharedPool_Lifecycle(t *testing.T) {
	InitGlobalSharedPool(2)
	defer ShutdownGlobalSharedPool()

	pool := GetGlobalSharedPool()
	if pool.ID() != "global-pool" {
		t.Errorf("expected ID 'global-pool', got %s", pool.ID())
	}
	if pool.MaxThreads() != 2 {
		t.Errorf("expected 2 max threads, got %d", pool.MaxThreads())
	}

	// Second init keeps the existing pool
	InitGlobalSharedPool(8)
	if GetGlobalSharedPool() != pool {
		t.Error("InitGlobalSharedPool should not replace an initialized pool")
	}
}

func TestGlobalSharedPool_GetBeforeInitPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic before InitGlobalSharedPool")
		}
	}()
	GetGlobalSharedPool()
}

// TestCreateTask_RunsOnGlobalPool tests tasks created from the global pool
// Main test items:
// 1. The task's run loop executes on the global shared pool
// 2. Join returns the worker to the pool
// 3. Shutdown succeeds once the task is joined
func TestCreateTask_RunsOnGlobalPool(t *testing.T) {
	InitGlobalSharedPool(1)

	var calls atomic.Int32
	task := CreateTask(func(ctx context.Context) {
		calls.Add(1)
		time.Sleep(time.Millisecond)
	}, WithLock(&RecMutex{}), WithName("global-task"))

	if task.Pool() != TaskPool(GetGlobalSharedPool()) {
		t.Fatal("CreateTask should use the global shared pool")
	}
	if err := task.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Fatal("task function never ran")
	}

	if err := task.Join(); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if stats := task.Stats(); stats.PoolID != "global-pool" || stats.State != TaskStopped {
		t.Errorf("unexpected stats after join: %+v", stats)
	}

	done := make(chan struct{})
	go func() {
		ShutdownGlobalSharedPool()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ShutdownGlobalSharedPool blocked after the task was joined")
	}
}
