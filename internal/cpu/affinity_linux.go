//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its OS thread and restricts that thread to
// the core workerID maps onto (modulo the number of CPUs). The returned release
// restores the thread's previous affinity and unlocks it.
//
// Pinning failures are reported, but the goroutine stays locked until release
// is called either way.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()

	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return runtime.UnlockOSThread, err
	}

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(Core(workerID))

	if err := unix.SchedSetaffinity(0, &mask); err != nil { // 0 = current thread
		return runtime.UnlockOSThread, err
	}

	return func() {
		_ = unix.SchedSetaffinity(0, &prev)
		runtime.UnlockOSThread()
	}, nil
}
