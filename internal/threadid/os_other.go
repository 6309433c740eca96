//go:build !linux

package threadid

// OSThread falls back to the goroutine id where no thread id syscall is available.
func OSThread() int {
	return int(Goroutine())
}
