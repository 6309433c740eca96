package core

import (
	"sync"
	"sync/atomic"
)

// GoroutineTaskPool is the default TaskPool strategy.
// Every Push starts a brand-new worker through the configured Spawner.
type GoroutineTaskPool struct {
	cfg PoolConfig

	wg         sync.WaitGroup
	prepared   bool
	preparedMu sync.RWMutex

	active   atomic.Int32
	workerID atomic.Int32
}

// NewGoroutineTaskPool creates an unprepared pool.
func NewGoroutineTaskPool(cfg *PoolConfig) *GoroutineTaskPool {
	return &GoroutineTaskPool{cfg: cfg.withDefaults()}
}

// ID returns the name of the pool
func (p *GoroutineTaskPool) ID() string {
	return p.cfg.Name
}

// Prepare marks the pool ready for Push.
func (p *GoroutineTaskPool) Prepare() error {
	p.preparedMu.Lock()
	defer p.preparedMu.Unlock()

	if p.prepared {
		return nil
	}
	p.prepared = true
	p.cfg.Logger.Debug("task pool prepared", F("pool", p.cfg.Name))
	return nil
}

// Push spawns a new worker running r.
func (p *GoroutineTaskPool) Push(r Runnable) (*Handle, error) {
	if r == nil {
		p.cfg.Metrics.RecordPushRejected(p.cfg.Name, "nil_runnable")
		return nil, ErrNilRunnable
	}

	// Hold the read lock across wg.Add so Cleanup cannot start waiting
	// between the prepared check and the registration.
	p.preparedMu.RLock()
	defer p.preparedMu.RUnlock()

	if !p.prepared {
		p.cfg.Metrics.RecordPushRejected(p.cfg.Name, "not_prepared")
		return nil, notPrepared(p.cfg.Name)
	}

	item := workItem{runnable: r, handle: newHandle()}
	id := int(p.workerID.Add(1))

	p.wg.Add(1)
	p.active.Add(1)
	err := p.cfg.Spawner.Spawn(func() {
		defer p.wg.Done()
		defer p.active.Add(-1)
		execute(item, &p.cfg, id, nil)
	})
	if err != nil {
		p.active.Add(-1)
		p.wg.Done()
		p.cfg.Metrics.RecordPushRejected(p.cfg.Name, "spawn_failed")
		p.cfg.Logger.Warn("failed to spawn worker", F("pool", p.cfg.Name), F("error", err))
		return nil, spawnFailed(p.cfg.Name, err)
	}
	p.cfg.Metrics.RecordPushPath(p.cfg.Name, PushSpawn)
	return item.handle, nil
}

// Join waits for the work behind h.
func (p *GoroutineTaskPool) Join(h *Handle) {
	h.wait()
}

// Cleanup rejects further pushes and waits for every running worker.
func (p *GoroutineTaskPool) Cleanup() {
	p.preparedMu.Lock()
	wasPrepared := p.prepared
	p.prepared = false
	p.preparedMu.Unlock()

	p.wg.Wait()
	if wasPrepared {
		p.cfg.Logger.Debug("task pool cleaned up", F("pool", p.cfg.Name))
	}
}

// IsPrepared reports whether Push currently accepts work.
func (p *GoroutineTaskPool) IsPrepared() bool {
	p.preparedMu.RLock()
	defer p.preparedMu.RUnlock()
	return p.prepared
}

// ActiveCount returns the number of workers currently running.
func (p *GoroutineTaskPool) ActiveCount() int {
	return int(p.active.Load())
}

// Stats returns current observability data for this pool.
func (p *GoroutineTaskPool) Stats() PoolStats {
	active := p.ActiveCount()
	return PoolStats{
		ID:       p.cfg.Name,
		Type:     "goroutine",
		Workers:  active,
		Active:   active,
		Prepared: p.IsPrepared(),
	}
}
