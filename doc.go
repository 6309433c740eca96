// Package taskloop runs a function repeatedly on a worker borrowed from a
// task pool, with start, pause and stop controlled from other goroutines.
//
// A Task owns no goroutine of its own. Starting it pushes a run loop to a
// TaskPool; the loop calls the function over and over until the task is
// paused or stopped. State changes are serialized by a lock the caller
// supplies, so a task can share a lock with the object that controls it.
//
// # Quick Start
//
// Initialize the global shared pool at application startup:
//
//	taskloop.InitGlobalSharedPool(4) // at most 4 workers
//	defer taskloop.ShutdownGlobalSharedPool()
//
// Create a task on it and drive it:
//
//	lock := &taskloop.RecMutex{}
//	task := taskloop.CreateTask(func(ctx context.Context) {
//		// one iteration of work
//	}, taskloop.WithLock(lock))
//
//	task.Start()
//	task.Pause()
//	task.Resume()
//	task.Join() // stops the task and waits for its run loop
//
// # Key Concepts
//
// Task: a three state machine (stopped, started, paused). Start and Pause
// require a lock; Stop never blocks; Join waits for the run loop to exit.
// A task without a pool runs on the process-wide default pool, which is
// reference counted and torn down when the last task is joined.
//
// TaskPool: Prepare, Push, Join and Cleanup. GoroutineTaskPool starts a
// worker per push. SharedTaskPool reuses a bounded set of workers and queues
// pushes while all of them are busy.
//
// RecMutex: a re-entrant lock for controllers that change task state while
// already holding the task's lock.
//
// ParallelizedRunner: fans one function out over a slice of inputs on a pool.
//
// For more details, see https://github.com/Swind/go-task-loop
package taskloop
