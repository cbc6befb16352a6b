// Package cpu binds pool workers to processor cores.
package cpu

import "runtime"

// Core maps a worker index onto a logical CPU in [0, runtime.NumCPU()).
func Core(workerID int) int {
	n := runtime.NumCPU()
	c := workerID % n
	if c < 0 {
		c += n
	}
	return c
}
