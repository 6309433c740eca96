package core

import (
	"sync"

	"github.com/Swind/go-task-loop/internal/threadid"
)

// RecMutex is a re-entrant mutex: the goroutine holding it may lock it
// again and must unlock it as many times. The zero value is unlocked.
//
// Tasks take their lock on Start, Pause, Resume and Stop. Sharing one
// RecMutex between a controller and its tasks lets code that already holds
// the lock change task state without deadlocking.
type RecMutex struct {
	mu    sync.Mutex
	cond  sync.Cond
	owner uint64
	depth int
}

// Lock acquires m, blocking while another goroutine holds it.
func (m *RecMutex) Lock() {
	gid := threadid.Goroutine()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner == gid {
		m.depth++
		return
	}
	if m.cond.L == nil {
		m.cond.L = &m.mu
	}
	for m.owner != 0 {
		m.cond.Wait()
	}
	m.owner = gid
	m.depth = 1
}

// TryLock acquires m without blocking and reports whether it succeeded.
func (m *RecMutex) TryLock() bool {
	gid := threadid.Goroutine()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.owner {
	case gid:
		m.depth++
		return true
	case 0:
		m.owner = gid
		m.depth = 1
		return true
	}
	return false
}

// Unlock releases one level of m. It panics when the caller is not the owner.
func (m *RecMutex) Unlock() {
	gid := threadid.Goroutine()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner != gid {
		panic("core: unlock of RecMutex not held by this goroutine")
	}
	m.depth--
	if m.depth > 0 {
		return
	}
	m.owner = 0
	if m.cond.L != nil {
		m.cond.Signal()
	}
}

// HeldByCurrent reports whether the calling goroutine holds m.
func (m *RecMutex) HeldByCurrent() bool {
	gid := threadid.Goroutine()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner == gid
}
