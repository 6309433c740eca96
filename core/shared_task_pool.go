package core

import (
	"sync"
)

// SharedTaskPool runs pushed work on a bounded set of reusable workers.
//
// Push hands the item to an idle worker when one exists, starts a new worker
// while fewer than MaxThreads are alive, and queues the item otherwise. A
// worker that finishes an item takes the oldest queued item before it goes
// idle, so nothing waits in the queue while a worker is free.
//
// If a worker cannot be started while others are alive, the item is queued
// and picked up by the next worker that frees up. The error only reaches the
// caller when no worker exists to drain the queue.
type SharedTaskPool struct {
	cfg PoolConfig

	mu           sync.Mutex
	maxThreads   int
	prepared     bool
	queue        *workQueue
	idle         []*sharedWorker
	live         int
	busy         int
	nextWorkerID int

	wg      sync.WaitGroup
	history *workHistory
}

type sharedWorker struct {
	id      int
	handoff chan workItem
}

// NewSharedTaskPool creates an unprepared pool bounded by cfg.MaxThreads.
// A nil cfg gives one worker, which mirrors DefaultPoolConfig.
func NewSharedTaskPool(cfg *PoolConfig) *SharedTaskPool {
	if cfg == nil {
		cfg = DefaultPoolConfig()
	}
	c := cfg.withDefaults()
	return &SharedTaskPool{
		cfg:        c,
		maxThreads: c.MaxThreads,
		queue:      newWorkQueue(),
		history:    newWorkHistory(defaultWorkHistoryCapacity),
	}
}

// ID returns the name of the pool
func (p *SharedTaskPool) ID() string {
	return p.cfg.Name
}

// MaxThreads returns the current worker limit; 0 means unbounded.
func (p *SharedTaskPool) MaxThreads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxThreads
}

// SetMaxThreads changes the worker limit, also while work is running.
// Surplus idle workers exit at once, busy ones after their current item.
// Raising the limit starts workers for queued items.
func (p *SharedTaskPool) SetMaxThreads(n int) {
	if n < 0 {
		n = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.maxThreads = n
	for n > 0 && p.live > n && len(p.idle) > 0 {
		p.retireIdleLocked(RetireShrink)
	}

	for p.prepared && p.canSpawnLocked() {
		item, ok := p.queue.Peek()
		if !ok {
			break
		}
		if err := p.spawnLocked(item); err != nil {
			p.cfg.Logger.Warn("failed to spawn worker for queued work", F("pool", p.cfg.Name), F("error", err))
			break
		}
		p.queue.Pop()
	}
	p.cfg.Metrics.RecordQueueDepth(p.cfg.Name, p.queue.Len())
}

// Prepare marks the pool ready for Push. Workers are started on demand.
func (p *SharedTaskPool) Prepare() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.prepared {
		return nil
	}
	p.prepared = true
	p.cfg.Logger.Debug("shared task pool prepared", F("pool", p.cfg.Name), F("max_threads", p.maxThreads))
	return nil
}

// Push schedules r on an idle worker, a new worker or the queue.
func (p *SharedTaskPool) Push(r Runnable) (*Handle, error) {
	if r == nil {
		p.cfg.Metrics.RecordPushRejected(p.cfg.Name, "nil_runnable")
		return nil, ErrNilRunnable
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.prepared {
		p.cfg.Metrics.RecordPushRejected(p.cfg.Name, "not_prepared")
		return nil, notPrepared(p.cfg.Name)
	}

	item := workItem{runnable: r, handle: newHandle()}

	if n := len(p.idle); n > 0 {
		w := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		p.busy++
		w.handoff <- item
		p.cfg.Metrics.RecordPushPath(p.cfg.Name, PushHandoff)
		return item.handle, nil
	}

	if p.canSpawnLocked() {
		err := p.spawnLocked(item)
		if err == nil {
			p.cfg.Metrics.RecordPushPath(p.cfg.Name, PushSpawn)
			return item.handle, nil
		}
		if p.live == 0 {
			p.cfg.Metrics.RecordPushRejected(p.cfg.Name, "spawn_failed")
			p.cfg.Logger.Warn("failed to spawn worker", F("pool", p.cfg.Name), F("error", err))
			return nil, spawnFailed(p.cfg.Name, err)
		}
		p.cfg.Logger.Debug("spawn failed, queueing work for a live worker",
			F("pool", p.cfg.Name), F("live", p.live), F("error", err))
	}

	p.queue.Push(item)
	p.cfg.Metrics.RecordPushPath(p.cfg.Name, PushQueued)
	p.cfg.Metrics.RecordQueueDepth(p.cfg.Name, p.queue.Len())
	return item.handle, nil
}

// Join waits for the work behind h, whichever worker runs it.
func (p *SharedTaskPool) Join(h *Handle) {
	h.wait()
}

// Cleanup rejects further pushes, lets workers drain the queue and waits
// for all of them to exit.
func (p *SharedTaskPool) Cleanup() {
	p.mu.Lock()
	wasPrepared := p.prepared
	p.prepared = false
	for len(p.idle) > 0 {
		p.retireIdleLocked(RetireCleanup)
	}
	p.mu.Unlock()

	p.wg.Wait()
	if wasPrepared {
		p.cfg.Logger.Debug("shared task pool cleaned up", F("pool", p.cfg.Name))
	}
}

// Stats returns current observability data for this pool.
func (p *SharedTaskPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		ID:         p.cfg.Name,
		Type:       "shared",
		MaxThreads: p.maxThreads,
		Workers:    p.live,
		Idle:       len(p.idle),
		Queued:     p.queue.Len(),
		Active:     p.busy,
		Prepared:   p.prepared,
	}
}

// RecentWork returns completed work records in newest-first order.
func (p *SharedTaskPool) RecentWork(limit int) []WorkRecord {
	return p.history.Recent(limit)
}

func (p *SharedTaskPool) canSpawnLocked() bool {
	return p.maxThreads == 0 || p.live < p.maxThreads
}

// spawnLocked starts a worker seeded with item. On error the pool
// bookkeeping is left unchanged and item has not run.
func (p *SharedTaskPool) spawnLocked(item workItem) error {
	w := &sharedWorker{
		id:      p.nextWorkerID,
		handoff: make(chan workItem, 1),
	}

	p.live++
	p.busy++
	p.wg.Add(1)
	if err := p.cfg.Spawner.Spawn(func() { p.workerLoop(w, item) }); err != nil {
		p.live--
		p.busy--
		p.wg.Done()
		return err
	}
	p.nextWorkerID++
	return nil
}

// retireIdleLocked stops the most recently idled worker.
func (p *SharedTaskPool) retireIdleLocked(reason RetireReason) {
	n := len(p.idle)
	w := p.idle[n-1]
	p.idle[n-1] = nil
	p.idle = p.idle[:n-1]
	p.live--
	close(w.handoff)
	p.cfg.Metrics.RecordWorkerRetired(p.cfg.Name, reason)
}

func (p *SharedTaskPool) workerLoop(w *sharedWorker, item workItem) {
	defer p.wg.Done()

	for {
		execute(item, &p.cfg, w.id, p.history)

		p.mu.Lock()
		if p.maxThreads > 0 && p.live > p.maxThreads {
			p.live--
			p.busy--
			p.cfg.Metrics.RecordWorkerRetired(p.cfg.Name, RetireShrink)
			p.mu.Unlock()
			return
		}
		if next, ok := p.queue.Pop(); ok {
			p.cfg.Metrics.RecordQueueDepth(p.cfg.Name, p.queue.Len())
			p.mu.Unlock()
			item = next
			continue
		}
		if !p.prepared {
			p.live--
			p.busy--
			p.cfg.Metrics.RecordWorkerRetired(p.cfg.Name, RetireCleanup)
			p.mu.Unlock()
			return
		}
		p.busy--
		p.idle = append(p.idle, w)
		p.mu.Unlock()

		next, ok := <-w.handoff
		if !ok {
			// The closer already took this worker off the live count.
			return
		}
		item = next
	}
}
