package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-loop/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// TaskSnapshotProvider provides current task stats snapshots.
type TaskSnapshotProvider interface {
	Stats() core.TaskStats
}

// SnapshotPoller periodically exports pool and task Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	tasksMu sync.RWMutex
	tasks   map[string]TaskSnapshotProvider

	poolWorkers    *prom.GaugeVec
	poolIdle       *prom.GaugeVec
	poolQueued     *prom.GaugeVec
	poolActive     *prom.GaugeVec
	poolMaxThreads *prom.GaugeVec
	poolPrepared   *prom.GaugeVec

	taskState      *prom.GaugeVec
	taskIterations *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "taskloop",
			Name:      name,
			Help:      help,
		}, labels)
	}

	p := &SnapshotPoller{
		interval:       interval,
		pools:          make(map[string]PoolSnapshotProvider),
		tasks:          make(map[string]TaskSnapshotProvider),
		poolWorkers:    gauge("pool_workers", "Live workers per pool.", "pool", "type"),
		poolIdle:       gauge("pool_idle_workers", "Idle workers per pool.", "pool", "type"),
		poolQueued:     gauge("pool_queued", "Work waiting for a worker per pool.", "pool", "type"),
		poolActive:     gauge("pool_active", "Workers running pushed work per pool.", "pool", "type"),
		poolMaxThreads: gauge("pool_max_threads", "Worker limit per pool (0=unbounded).", "pool", "type"),
		poolPrepared:   gauge("pool_prepared", "Pool prepared state (1=prepared, 0=not prepared).", "pool", "type"),
		taskState:      gauge("task_state", "Task state (0=stopped, 1=started, 2=paused).", "task", "pool"),
		taskIterations: gauge("task_iterations", "Completed function invocations per task.", "task", "pool"),
	}

	for _, c := range []**prom.GaugeVec{
		&p.poolWorkers, &p.poolIdle, &p.poolQueued, &p.poolActive,
		&p.poolMaxThreads, &p.poolPrepared, &p.taskState, &p.taskIterations,
	} {
		registered, err := registerCollector(reg, *c)
		if err != nil {
			return nil, err
		}
		*c = registered
	}
	return p, nil
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = labelOr(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// AddTask adds or replaces a task snapshot provider by name.
func (p *SnapshotPoller) AddTask(name string, provider TaskSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = labelOr(name, "task")
	p.tasksMu.Lock()
	p.tasks[name] = provider
	p.tasksMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		typeLabel := labelOr(stats.Type, "unknown")
		p.poolWorkers.WithLabelValues(name, typeLabel).Set(float64(stats.Workers))
		p.poolIdle.WithLabelValues(name, typeLabel).Set(float64(stats.Idle))
		p.poolQueued.WithLabelValues(name, typeLabel).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name, typeLabel).Set(float64(stats.Active))
		p.poolMaxThreads.WithLabelValues(name, typeLabel).Set(float64(stats.MaxThreads))
		if stats.Prepared {
			p.poolPrepared.WithLabelValues(name, typeLabel).Set(1)
		} else {
			p.poolPrepared.WithLabelValues(name, typeLabel).Set(0)
		}
	}
	p.poolsMu.RUnlock()

	p.tasksMu.RLock()
	for name, provider := range p.tasks {
		stats := provider.Stats()
		poolID := labelOr(stats.PoolID, "none")
		p.taskState.WithLabelValues(name, poolID).Set(float64(stats.State))
		p.taskIterations.WithLabelValues(name, poolID).Set(float64(stats.Iterations))
	}
	p.tasksMu.RUnlock()
}
