package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-task-loop/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter reports what pools do with pushed work: the route each
// accepted item took to a worker, why items were refused, how long they ran
// and when workers were retired. It implements core.Metrics.
type MetricsExporter struct {
	// Push outcomes.
	pushPath     *prom.CounterVec
	pushRejected *prom.CounterVec
	queueDepth   *prom.GaugeVec

	// Work execution.
	workDuration *prom.HistogramVec
	workPanics   *prom.CounterVec

	// Worker lifecycle.
	workerRetired *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter registers the pool collectors on reg under namespace.
// Collectors already present on reg are reused, so two exporters with the
// same namespace share their series.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskloop"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	counter := func(name, help string, labels ...string) *prom.CounterVec {
		return prom.NewCounterVec(prom.CounterOpts{Namespace: namespace, Name: name, Help: help}, append([]string{"pool"}, labels...))
	}

	m := &MetricsExporter{
		pushPath:      counter("push_path_total", "Accepted pushes by route: handoff to an idle worker, spawn of a new worker or queued.", "path"),
		pushRejected:  counter("push_rejected_total", "Pushes refused by the pool.", "reason"),
		workPanics:    counter("work_panic_total", "Pushed items that panicked."),
		workerRetired: counter("worker_retired_total", "Workers that exited, by reason.", "reason"),
		queueDepth: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Items waiting for a free worker.",
		}, []string{"pool"}),
		workDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "work_duration_seconds",
			Help:      "Run time of pushed items in seconds.",
			Buckets:   buckets,
		}, []string{"pool"}),
	}

	var err error
	for _, c := range []**prom.CounterVec{&m.pushPath, &m.pushRejected, &m.workPanics, &m.workerRetired} {
		if *c, err = registerCollector(reg, *c); err != nil {
			return nil, err
		}
	}
	if m.queueDepth, err = registerCollector(reg, m.queueDepth); err != nil {
		return nil, err
	}
	if m.workDuration, err = registerCollector(reg, m.workDuration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MetricsExporter) RecordPushPath(poolName string, path core.PushPath) {
	if m == nil {
		return
	}
	m.pushPath.WithLabelValues(poolLabel(poolName), labelOr(string(path), "unknown")).Inc()
}

func (m *MetricsExporter) RecordPushRejected(poolName string, reason string) {
	if m == nil {
		return
	}
	m.pushRejected.WithLabelValues(poolLabel(poolName), labelOr(reason, "unknown")).Inc()
}

func (m *MetricsExporter) RecordQueueDepth(poolName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(poolLabel(poolName)).Set(float64(depth))
}

func (m *MetricsExporter) RecordWorkDuration(poolName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.workDuration.WithLabelValues(poolLabel(poolName)).Observe(duration.Seconds())
}

func (m *MetricsExporter) RecordWorkPanic(poolName string, panicInfo any) {
	if m == nil {
		return
	}
	m.workPanics.WithLabelValues(poolLabel(poolName)).Inc()
}

func (m *MetricsExporter) RecordWorkerRetired(poolName string, reason core.RetireReason) {
	if m == nil {
		return
	}
	m.workerRetired.WithLabelValues(poolLabel(poolName), labelOr(string(reason), "unknown")).Inc()
}

// poolLabel names unnamed pools "unnamed".
func poolLabel(name string) string {
	return labelOr(name, "unnamed")
}

func labelOr(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var already prom.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return collector, err
	}
	existing, ok := already.ExistingCollector.(T)
	if !ok {
		return collector, fmt.Errorf("collector %T registered with a different type", already.ExistingCollector)
	}
	return existing, nil
}
