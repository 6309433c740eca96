package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecMutex_Reentrant(t *testing.T) {
	var m RecMutex

	m.Lock()
	m.Lock()
	assert.True(t, m.HeldByCurrent())

	m.Unlock()
	assert.True(t, m.HeldByCurrent(), "one level still held")

	m.Unlock()
	assert.False(t, m.HeldByCurrent())
}

// TestRecMutex_ExcludesOtherGoroutines tests mutual exclusion
// Main test items:
// 1. A second goroutine blocks while the first holds the lock at depth 2
// 2. It acquires the lock only after both levels are released
func TestRecMutex_ExcludesOtherGoroutines(t *testing.T) {
	var m RecMutex
	m.Lock()
	m.Lock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
		m.Unlock()
	}()

	m.Unlock()
	select {
	case <-acquired:
		t.Fatal("other goroutine acquired a lock still held at depth 1")
	case <-time.After(50 * time.Millisecond):
	}

	m.Unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("other goroutine never acquired the released lock")
	}
}

func TestRecMutex_TryLock(t *testing.T) {
	var m RecMutex
	require.True(t, m.TryLock())
	require.True(t, m.TryLock(), "owner may re-enter")

	result := make(chan bool)
	go func() { result <- m.TryLock() }()
	assert.False(t, <-result)

	m.Unlock()
	m.Unlock()
}

func TestRecMutex_UnlockByNonOwnerPanics(t *testing.T) {
	var m RecMutex
	m.Lock()
	defer m.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.Panics(t, func() { m.Unlock() })
	}()
	wg.Wait()
}

func TestRecMutex_Contention(t *testing.T) {
	var m RecMutex
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.Lock()
				m.Lock()
				counter++
				m.Unlock()
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1600, counter)
}
