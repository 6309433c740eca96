// Package threadid exposes identity tokens for the calling goroutine and
// the OS thread it currently runs on.
package threadid

import "github.com/petermattis/goid"

// Goroutine returns the id of the calling goroutine.
func Goroutine() uint64 {
	return uint64(goid.Get())
}
