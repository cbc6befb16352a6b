//go:build !linux

package cpu

import (
	"runtime"
)

// Pin locks the goroutine to an OS thread.
// Core pinning is only implemented on Linux.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}
