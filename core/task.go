package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/Swind/go-task-loop/internal/threadid"
)

// TaskFunc is the body of a Task, invoked repeatedly while the task is started.
// Data the function needs is captured by the closure.
type TaskFunc func(ctx context.Context)

// TaskState is the lifecycle state of a Task.
type TaskState int

const (
	// TaskStopped is the initial state and the state a run ends in.
	TaskStopped TaskState = iota
	// TaskStarted means the run loop keeps invoking the function.
	TaskStarted
	// TaskPaused means the run loop is blocked until started or stopped.
	TaskPaused
)

func (s TaskState) String() string {
	switch s {
	case TaskStopped:
		return "stopped"
	case TaskStarted:
		return "started"
	case TaskPaused:
		return "paused"
	default:
		return fmt.Sprintf("TaskState(%d)", int(s))
	}
}

var taskSeq atomic.Uint64

// pushedRun is a run loop pushed to a pool, waited for by Join.
type pushedRun struct {
	pool   TaskPool
	handle *Handle
}

// Task repeatedly runs a TaskFunc on a worker obtained from a TaskPool.
//
// The caller-supplied lock serializes state changes. Start, Pause, Resume
// and Stop acquire it; the run loop holds it only while it inspects the
// state, never while the function runs. Lock order is the external lock
// first, then the task's own mutex.
type Task struct {
	fn           TaskFunc
	logger       Logger
	panicHandler PanicHandler

	mu          sync.Mutex
	cond        *sync.Cond
	name        string
	state       TaskState
	lock        sync.Locker
	pool        TaskPool
	everStarted bool

	// Current run: the pool it was pushed to and its handle. running is
	// true from the push until the run loop decides to exit.
	runPool     TaskPool
	handle      *Handle
	running     bool
	defaultPool *GoroutineTaskPool

	// Earlier run loops replaced by a restart before they were joined.
	superseded []pushedRun

	onEnter func(*Task)
	onLeave func(*Task)

	loopGID    atomic.Uint64
	iterations atomic.Uint64
}

// TaskOption configures a Task at construction.
type TaskOption func(*Task)

// WithName sets the task name used in logs and stats.
func WithName(name string) TaskOption {
	return func(t *Task) { t.name = name }
}

// WithLock sets the external lock, same as SetLock before the first start.
func WithLock(lock sync.Locker) TaskOption {
	return func(t *Task) { t.lock = lock }
}

// WithPool runs the task on pool instead of the process-wide default pool.
func WithPool(pool TaskPool) TaskOption {
	return func(t *Task) { t.pool = pool }
}

// WithLogger sets the logger receiving diagnostics.
func WithLogger(logger Logger) TaskOption {
	return func(t *Task) { t.logger = logger }
}

// WithPanicHandler sets the handler called when the function panics.
func WithPanicHandler(h PanicHandler) TaskOption {
	return func(t *Task) { t.panicHandler = h }
}

// NewTask creates a stopped task running fn.
// Panics if fn is nil.
func NewTask(fn TaskFunc, opts ...TaskOption) *Task {
	if fn == nil {
		panic("Task: fn must not be nil")
	}

	t := &Task{fn: fn}
	t.cond = sync.NewCond(&t.mu)
	for _, opt := range opts {
		opt(t)
	}
	if t.name == "" {
		t.name = fmt.Sprintf("task%d", taskSeq.Add(1)-1)
	}
	if t.logger == nil {
		t.logger = NewDefaultLogger()
	}
	if t.panicHandler == nil {
		t.panicHandler = &LogPanicHandler{Logger: t.logger}
	}
	return t
}

// =============================================================================
// Accessors
// =============================================================================

// Name returns the name of the task
func (t *Task) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// SetName sets the name of the task
func (t *Task) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
}

// State returns the current state.
func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// ExternalLock returns the lock set with SetLock, nil when none was set.
func (t *Task) ExternalLock() sync.Locker {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lock
}

// SetLock sets the external lock. Once the task has been started the lock
// is fixed: passing a different lock logs a warning, keeps the old lock
// and returns ErrLockAfterStart. Passing the current lock is harmless.
func (t *Task) SetLock(lock sync.Locker) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.everStarted {
		if lock == t.lock {
			return nil
		}
		t.logger.Warn("cannot change the lock of a task that was started", F("task", t.name))
		return ErrLockAfterStart
	}
	t.lock = lock
	return nil
}

// Pool returns the pool the next run is pushed to, nil for the default pool.
func (t *Task) Pool() TaskPool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pool
}

// SetPool selects the pool for the next run. A run already in flight
// keeps its pool until joined. nil selects the process-wide default pool.
func (t *Task) SetPool(pool TaskPool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pool = pool
}

// SetEnterCallback sets fn to be called on the worker when a run loop starts.
func (t *Task) SetEnterCallback(fn func(*Task)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnter = fn
}

// SetLeaveCallback sets fn to be called on the worker when a run loop exits.
func (t *Task) SetLeaveCallback(fn func(*Task)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLeave = fn
}

// Handle returns the pool handle of the current run, nil when no run is
// in flight or the last one was joined.
func (t *Task) Handle() *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle
}

// Iterations returns how many times the function has returned normally.
func (t *Task) Iterations() uint64 {
	return t.iterations.Load()
}

// Stats returns current observability data for this task.
func (t *Task) Stats() TaskStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := TaskStats{
		Name:       t.name,
		State:      t.state,
		Iterations: t.iterations.Load(),
		Running:    t.running,
	}
	pool := t.runPool
	if pool == nil {
		pool = t.pool
	}
	if named, ok := pool.(interface{ ID() string }); ok {
		stats.PoolID = named.ID()
	}
	return stats
}

// =============================================================================
// State transitions
// =============================================================================

// Start starts the task, pushing a run loop to the pool if none is in
// flight. Starting a paused task resumes it. Starting a started task is a no-op.
func (t *Task) Start() error {
	return t.SetState(TaskStarted)
}

// Pause pauses the task. Pausing a stopped task pushes a run loop that
// blocks before the first invocation until the task is started.
func (t *Task) Pause() error {
	return t.SetState(TaskPaused)
}

// Stop asks the run loop to exit and returns without waiting for it.
// Stopping a stopped task is a no-op.
func (t *Task) Stop() error {
	return t.SetState(TaskStopped)
}

// Resume continues a paused task. A stopped task has nothing to resume and
// yields ErrTaskStopped.
func (t *Task) Resume() error {
	lock := t.ExternalLock()
	if lock != nil {
		lock.Lock()
		defer lock.Unlock()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == TaskStopped {
		t.logger.Warn("cannot resume a stopped task", F("task", t.name))
		return ErrTaskStopped
	}
	return t.setStateLocked(TaskStarted)
}

// SetState moves the task to state. Started and paused require a lock.
func (t *Task) SetState(state TaskState) error {
	if state < TaskStopped || state > TaskPaused {
		return fmt.Errorf("task: invalid state %d", int(state))
	}

	lock := t.ExternalLock()
	if lock == nil {
		if state == TaskStopped {
			t.mu.Lock()
			defer t.mu.Unlock()
			return t.setStateLocked(TaskStopped)
		}
		t.logger.Warn("task has no lock, set one before starting it",
			F("task", t.Name()), F("state", state.String()))
		return ErrNoLock
	}

	lock.Lock()
	defer lock.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setStateLocked(state)
}

func (t *Task) setStateLocked(state TaskState) error {
	old := t.state
	if old == state {
		return nil
	}

	if old == TaskStopped && t.loopGID.Load() == threadid.Goroutine() {
		// A stopped task is not revived from inside its own run loop; the
		// stop already issued by the controller wins.
		t.logger.Debug("ignoring state change of a stopped task from its own run loop",
			F("task", t.name), F("state", state.String()))
		return nil
	}

	t.state = state
	if old == TaskStopped && !t.running {
		if err := t.pushLocked(); err != nil {
			t.state = TaskStopped
			return err
		}
	}
	t.cond.Broadcast()
	return nil
}

// pushLocked pushes a new run loop to the task's pool.
func (t *Task) pushLocked() error {
	pool := t.pool
	if pool == nil {
		if t.defaultPool == nil {
			t.defaultPool = AcquireDefaultPool()
		}
		pool = t.defaultPool
	}

	h, err := pool.Push(RunnableFunc(t.loop))
	if err != nil && t.pool == nil && errors.Is(err, ErrNotPrepared) {
		// The default pool was torn down by CleanupAll; take a fresh one.
		ReleaseDefaultPool(t.defaultPool)
		t.defaultPool = AcquireDefaultPool()
		pool = t.defaultPool
		h, err = pool.Push(RunnableFunc(t.loop))
	}
	if err != nil {
		if t.handle == nil && len(t.superseded) == 0 && t.defaultPool != nil {
			ReleaseDefaultPool(t.defaultPool)
			t.defaultPool = nil
		}
		t.logger.Warn("failed to push task run loop", F("task", t.name), F("error", err))
		return err
	}

	if t.handle != nil {
		t.superseded = appendPending(t.superseded, pushedRun{pool: t.runPool, handle: t.handle})
	}
	t.runPool = pool
	t.handle = h
	t.running = true
	t.everStarted = true
	return nil
}

// Join stops the task and waits until its run loops have exited, including
// one replaced by a restart that was never joined. Afterwards the task can
// be started again. Join from the task's own run loop logs a warning and
// returns ErrSelfJoin; Join on a never started task returns ErrNotStarted.
func (t *Task) Join() error {
	if gid := t.loopGID.Load(); gid != 0 && gid == threadid.Goroutine() {
		t.logger.Warn("task cannot join itself from its own run loop", F("task", t.Name()))
		return ErrSelfJoin
	}

	_ = t.Stop()

	t.mu.Lock()
	h, pool := t.handle, t.runPool
	if h == nil {
		everStarted := t.everStarted
		t.mu.Unlock()
		if !everStarted {
			return ErrNotStarted
		}
		return nil
	}
	earlier := t.superseded
	t.superseded = nil
	t.mu.Unlock()

	for _, run := range earlier {
		run.pool.Join(run.handle)
	}
	pool.Join(h)

	// The default pool is released outside t.mu: dropping the last
	// reference waits for every worker of that pool.
	var release *GoroutineTaskPool
	t.mu.Lock()
	if t.handle == h {
		t.handle = nil
		t.runPool = nil
		if !t.running && len(t.superseded) == 0 {
			release = t.defaultPool
			t.defaultPool = nil
		}
	}
	t.mu.Unlock()

	if release != nil {
		ReleaseDefaultPool(release)
	}
	return nil
}

// appendPending appends run to runs, dropping runs that already finished.
func appendPending(runs []pushedRun, run pushedRun) []pushedRun {
	pending := runs[:0]
	for _, r := range runs {
		select {
		case <-r.handle.Done():
		default:
			pending = append(pending, r)
		}
	}
	return append(pending, run)
}

// =============================================================================
// Run loop
// =============================================================================

type currentTaskKeyType struct{}

var currentTaskKey currentTaskKeyType

// CurrentTask returns the task whose run loop is executing with ctx.
func CurrentTask(ctx context.Context) *Task {
	if v := ctx.Value(currentTaskKey); v != nil {
		return v.(*Task)
	}
	return nil
}

func (t *Task) loop(ctx context.Context) {
	gid := threadid.Goroutine()
	t.loopGID.Store(gid)
	defer t.loopGID.CompareAndSwap(gid, 0)

	ctx = context.WithValue(ctx, currentTaskKey, t)

	t.mu.Lock()
	lock, onEnter, onLeave := t.lock, t.onEnter, t.onLeave
	t.mu.Unlock()

	if onEnter != nil {
		onEnter(t)
	}
	if onLeave != nil {
		defer onLeave(t)
	}

	for {
		lock.Lock()
		t.mu.Lock()
		for t.state == TaskPaused {
			lock.Unlock()
			t.cond.Wait()
			t.mu.Unlock()
			lock.Lock()
			t.mu.Lock()
		}
		if t.state == TaskStopped {
			t.running = false
			t.mu.Unlock()
			lock.Unlock()
			return
		}
		t.mu.Unlock()
		lock.Unlock()

		if !t.invoke(ctx) {
			t.stopAfterPanic(lock)
		}
	}
}

// invoke runs the function once and reports whether it returned normally.
func (t *Task) invoke(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			t.panicHandler.HandlePanic(ctx, t.Stats().PoolID, -1, r, debug.Stack())
		}
	}()

	t.fn(ctx)
	t.iterations.Add(1)
	return true
}

func (t *Task) stopAfterPanic(lock sync.Locker) {
	lock.Lock()
	defer lock.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.logger.Error("task function panicked, stopping task", F("task", t.name))
	t.state = TaskStopped
	t.cond.Broadcast()
}
