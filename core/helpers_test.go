package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testTimeout = 2 * time.Second

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func assertNotYet(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("%s happened too early", what)
	case <-time.After(50 * time.Millisecond):
	}
}

func observedLogger() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewZapLogger(zap.New(core)), logs
}

func quietConfig(name string, maxThreads int) *PoolConfig {
	return &PoolConfig{Name: name, MaxThreads: maxThreads, Logger: NewNoOpLogger()}
}

// blocker is pushed work that signals when it starts and blocks until released.
type blocker struct {
	started chan struct{}
	release chan struct{}
	gid     atomic.Uint64
	run     func() uint64
}

func newBlocker(identity func() uint64) *blocker {
	return &blocker{
		started: make(chan struct{}),
		release: make(chan struct{}),
		run:     identity,
	}
}

func (b *blocker) Run(ctx context.Context) {
	if b.run != nil {
		b.gid.Store(b.run())
	}
	close(b.started)
	<-b.release
}

var errNoThreads = errors.New("no threads left")

// limitedSpawner starts up to allow workers and fails afterwards.
type limitedSpawner struct {
	mu    sync.Mutex
	allow int
}

func (s *limitedSpawner) Spawn(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allow <= 0 {
		return errNoThreads
	}
	s.allow--
	go fn()
	return nil
}

// recordingMetrics counts Metrics calls.
type recordingMetrics struct {
	mu         sync.Mutex
	durations  int
	panics     int
	depths     []int
	rejections map[string]int
	paths      map[PushPath]int
	retired    map[RetireReason]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		rejections: make(map[string]int),
		paths:      make(map[PushPath]int),
		retired:    make(map[RetireReason]int),
	}
}

func (m *recordingMetrics) RecordWorkDuration(poolName string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func (m *recordingMetrics) RecordWorkPanic(poolName string, panicInfo any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}

func (m *recordingMetrics) RecordQueueDepth(poolName string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depths = append(m.depths, depth)
}

func (m *recordingMetrics) RecordPushRejected(poolName string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections[reason]++
}

func (m *recordingMetrics) RecordPushPath(poolName string, path PushPath) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[path]++
}

func (m *recordingMetrics) RecordWorkerRetired(poolName string, reason RetireReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retired[reason]++
}

func (m *recordingMetrics) pushed(path PushPath) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paths[path]
}

func (m *recordingMetrics) retirements(reason RetireReason) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retired[reason]
}

func (m *recordingMetrics) rejected(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejections[reason]
}

// recordingPanicHandler remembers recovered panic values.
type recordingPanicHandler struct {
	mu     sync.Mutex
	values []any
}

func (h *recordingPanicHandler) HandlePanic(ctx context.Context, poolName string, workerID int, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values = append(h.values, panicInfo)
}

func (h *recordingPanicHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.values)
}
