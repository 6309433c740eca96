//go:build linux

package threadid

import "golang.org/x/sys/unix"

// OSThread returns the kernel thread id the caller is running on.
// The value is only stable while the goroutine is locked with runtime.LockOSThread.
func OSThread() int {
	return unix.Gettid()
}
